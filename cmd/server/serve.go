package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gyaneshwarpardhi/pprelay/internal/api"
	"github.com/gyaneshwarpardhi/pprelay/internal/app"
	"github.com/gyaneshwarpardhi/pprelay/internal/bot"
	"github.com/gyaneshwarpardhi/pprelay/internal/config"
	"github.com/gyaneshwarpardhi/pprelay/internal/dispatcher"
	"github.com/gyaneshwarpardhi/pprelay/internal/format"
	"github.com/gyaneshwarpardhi/pprelay/internal/notify"
	"github.com/gyaneshwarpardhi/pprelay/internal/subscription"
)

// serve runs the webhook server, dispatcher and bot until ctx is cancelled.
func serve(ctx context.Context, cfgPath string) error {
	// ── Load config ──────────────────────────────────────────────────────────
	loader, cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	// ── Delivery sinks ───────────────────────────────────────────────────────
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("connecting to Telegram: %w", err)
	}
	slog.Info("telegram bot authorized", "username", botAPI.Self.UserName)

	telegram := notify.NewTelegram(botAPI)
	sinks := []notify.Sink{{Name: "telegram", Notifier: telegram}}
	if cfg.NATS.URL != "" {
		nc, err := notify.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer drain(nc)
		sinks = append(sinks, notify.Sink{Name: "nats", Notifier: notify.NewBus(nc, cfg.NATS.Subject)})
		slog.Info("mirroring notifications to NATS", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}
	fanout := notify.NewFanout(sinks...)

	// ── Vendor gateway ───────────────────────────────────────────────────────
	gateway := newGateway(cfg)

	subs := subscription.NewRegistry()
	formatter := format.New(cfg.Location())

	// ── HTTP surface ─────────────────────────────────────────────────────────
	handler := api.New(api.Options{
		Formatter:    formatter,
		Notifier:     fanout,
		Target:       cfg.Telegram.ChatID,
		Secret:       cfg.Webhook.Secret,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	servers := []app.Server{api.NewServer(
		cfg.Addr(),
		handler,
		time.Duration(cfg.Server.ReadTimeoutMs)*time.Millisecond,
		time.Duration(cfg.Server.WriteTimeoutMs)*time.Millisecond,
	)}

	// ── Periodic notifications and chat commands ─────────────────────────────
	var disp *dispatcher.Dispatcher
	if !cfg.Dispatcher.Disabled {
		disp = dispatcher.New(gateway, subs, fanout, formatter, cfg.Interval())
		servers = append(servers, disp)
	}
	if !cfg.Telegram.DisablePolling {
		servers = append(servers, bot.New(subs, gateway, telegram, formatter, botAPI))
	}

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		handler.SetSecret(newCfg.Webhook.Secret)
		if disp != nil {
			disp.SetInterval(newCfg.Interval())
		}
		slog.Info("config hot-reloaded", "interval", newCfg.Interval())
	})
	if cfgPath != "" {
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── Run until signalled ──────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(servers...).Run(ctx); err != nil {
		return err
	}
	slog.Info("goodbye")
	return nil
}

type drainer interface {
	Drain() error
}

// drain flushes pending publishes before the connection closes.
func drain(d drainer) {
	if err := d.Drain(); err != nil {
		slog.Warn("nats drain failed", "err", err)
	}
}
