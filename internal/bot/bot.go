package bot

import (
	"context"
	"html"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gyaneshwarpardhi/pprelay/internal/dispatcher"
	"github.com/gyaneshwarpardhi/pprelay/internal/format"
	"github.com/gyaneshwarpardhi/pprelay/internal/notify"
	"github.com/gyaneshwarpardhi/pprelay/internal/subscription"
)

// Gateway is the vendor API as used by chat commands.
type Gateway interface {
	dispatcher.Gateway
	Ping(ctx context.Context) error
}

// UpdateSource is the long-polling side of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers chat commands. Replies go through reply; command failures are
// reported to the chat and logged, never propagated.
type Bot struct {
	commands  *Registry
	subs      *subscription.Registry
	gw        Gateway
	reply     notify.Notifier
	formatter *format.Formatter
	updates   UpdateSource
}

// New creates a Bot with the standard command set registered.
func New(subs *subscription.Registry, gw Gateway, reply notify.Notifier, f *format.Formatter, updates UpdateSource) *Bot {
	b := &Bot{
		commands:  NewRegistry(),
		subs:      subs,
		gw:        gw,
		reply:     reply,
		formatter: f,
		updates:   updates,
	}
	b.registerDefaults()
	return b
}

// Commands exposes the command registry.
func (b *Bot) Commands() *Registry { return b.commands }

// Handle dispatches one chat message. Non-command text is ignored.
func (b *Bot) Handle(ctx context.Context, chatID int64, text string) {
	name, args, ok := parseCommand(text)
	if !ok {
		return
	}
	cmd, err := b.commands.Get(name)
	if err != nil {
		b.say(ctx, chatID, "Unknown command. Send /start for the list of commands.")
		return
	}

	slog.Info("bot: command received", "chat_id", chatID, "command", name)
	if err := cmd.Run(ctx, Request{ChatID: chatID, Command: name, Args: args}); err != nil {
		slog.Error("bot: command failed", "chat_id", chatID, "command", name, "err", err)
		b.say(ctx, chatID, "Error: "+html.EscapeString(err.Error()))
	}
}

// Run consumes Telegram updates until ctx is cancelled. Updates are
// handled one at a time.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.updates.GetUpdatesChan(u)
	slog.Info("bot: polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.updates.StopReceivingUpdates()
			slog.Info("bot: stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil || upd.Message.Chat == nil {
				continue
			}
			b.Handle(ctx, upd.Message.Chat.ID, upd.Message.Text)
		}
	}
}

// Start implements app.Server.
func (b *Bot) Start(ctx context.Context) error { return b.Run(ctx) }

// Stop implements app.Server (no-op, shutdown is via ctx).
func (b *Bot) Stop(ctx context.Context) error { return nil }

// say delivers a reply, logging failures.
func (b *Bot) say(ctx context.Context, chatID int64, text string) {
	if err := b.reply.Deliver(ctx, chatID, text); err != nil {
		slog.Warn("bot: reply failed", "chat_id", chatID, "err", err)
	}
}

// parseCommand splits "/name@bot args" into ("name", "args").
func parseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}
	name, args, _ = strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(args), name != ""
}
