package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
)

func (b *Bot) registerDefaults() {
	b.commands.Register(Command{Name: "start", Description: "Start the bot and subscribe to updates", Run: b.start})
	b.commands.Register(Command{Name: "cards", Description: "Get all cards information", Run: b.cards})
	b.commands.Register(Command{Name: "balance", Description: "Get balance for all cards", Run: b.balance})
	b.commands.Register(Command{Name: "transactions", Description: "Get recent transactions for all cards", Run: b.transactions})
	b.commands.Register(Command{Name: "test", Description: "Test all connections and endpoints", Run: b.test})
	b.commands.Register(Command{Name: "stop", Description: "Stop receiving updates", Run: b.stop})
}

func (b *Bot) start(ctx context.Context, req Request) error {
	b.subs.Subscribe(req.ChatID)

	var sb strings.Builder
	sb.WriteString("Welcome to PingPongX Monitor Bot!\n\nAvailable commands:\n")
	for _, c := range b.commands.Commands() {
		fmt.Fprintf(&sb, "/%s - %s\n", c.Name, html.EscapeString(c.Description))
	}
	b.say(ctx, req.ChatID, strings.TrimRight(sb.String(), "\n"))
	return nil
}

func (b *Bot) stop(ctx context.Context, req Request) error {
	b.subs.Unsubscribe(req.ChatID)
	b.say(ctx, req.ChatID, "You've unsubscribed from updates.")
	return nil
}

// listCards fetches the cards and tells the chat when there are none.
func (b *Bot) listCards(ctx context.Context, chatID int64) ([]event.Record, error) {
	cards, err := b.gw.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching cards: %w", err)
	}
	if len(cards) == 0 {
		b.say(ctx, chatID, "No cards found.")
	}
	return cards, nil
}

func (b *Bot) cards(ctx context.Context, req Request) error {
	cards, err := b.listCards(ctx, req.ChatID)
	if err != nil {
		return err
	}
	for _, card := range cards {
		b.say(ctx, req.ChatID, b.formatter.Card(card).Text())
	}
	return nil
}

func (b *Bot) balance(ctx context.Context, req Request) error {
	cards, err := b.listCards(ctx, req.ChatID)
	if err != nil {
		return err
	}
	for _, card := range cards {
		id, ok := card.String("cardId")
		if !ok {
			continue
		}
		bal, err := b.gw.GetBalance(ctx, id)
		if err != nil {
			return fmt.Errorf("fetching balances: %w", err)
		}
		if len(bal) > 0 {
			b.say(ctx, req.ChatID, b.formatter.Balance(id, bal).Text())
		}
	}
	return nil
}

func (b *Bot) transactions(ctx context.Context, req Request) error {
	cards, err := b.listCards(ctx, req.ChatID)
	if err != nil {
		return err
	}
	for _, card := range cards {
		id, ok := card.String("cardId")
		if !ok {
			continue
		}
		txs, err := b.gw.GetTransactions(ctx, id)
		if err != nil {
			return fmt.Errorf("fetching transactions: %w", err)
		}
		if len(txs) > 0 {
			b.say(ctx, req.ChatID, b.formatter.Transactions(id, txs).Text())
		}
	}
	return nil
}

// test walks every dependency and reports each step to the chat.
func (b *Bot) test(ctx context.Context, req Request) error {
	chat := req.ChatID
	b.say(ctx, chat, "🔄 Testing connections...")

	if err := b.reply.Deliver(ctx, chat, "✅ Telegram Bot API connection successful"); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	if err := b.gw.Ping(ctx); err != nil {
		b.say(ctx, chat, "❌ Failed to connect to PingPongX API: "+html.EscapeString(err.Error()))
	} else {
		b.say(ctx, chat, "✅ Successfully connected to PingPongX API")
	}

	cards, err := b.gw.ListCards(ctx)
	if err != nil {
		b.say(ctx, chat, "❌ Error testing card endpoints: "+html.EscapeString(err.Error()))
		return nil
	}
	b.say(ctx, chat, "✅ Successfully retrieved cards data")

	if len(cards) == 0 {
		b.say(ctx, chat, "⚠️ No cards found to test balance and transaction endpoints")
		return nil
	}
	id := cards[0].Get("cardId", "")
	if _, err := b.gw.GetBalance(ctx, id); err != nil {
		b.say(ctx, chat, "❌ Error testing card endpoints: "+html.EscapeString(err.Error()))
		return nil
	}
	b.say(ctx, chat, "✅ Successfully tested balance endpoint")
	if _, err := b.gw.GetTransactions(ctx, id); err != nil {
		b.say(ctx, chat, "❌ Error testing card endpoints: "+html.EscapeString(err.Error()))
		return nil
	}
	b.say(ctx, chat, "✅ Successfully tested transactions endpoint")
	return nil
}
