package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/pprelay/internal/bot"
)

type check struct {
	name string
	run  func(ctx context.Context) error
}

func newCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify Telegram and PingPongX credentials and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			return runChecks(cmd.Context(), cmd.OutOrStdout(), connectivityChecks(cfg.Telegram.BotToken, newGateway(cfg)))
		},
	}
}

func connectivityChecks(botToken string, gw bot.Gateway) []check {
	var cardID string
	return []check{
		{"Telegram Bot API", func(ctx context.Context) error {
			_, err := tgbotapi.NewBotAPI(botToken)
			return err
		}},
		{"PingPongX token", gw.Ping},
		{"PingPongX cards", func(ctx context.Context) error {
			cards, err := gw.ListCards(ctx)
			if err == nil && len(cards) > 0 {
				cardID = cards[0].Get("cardId", "")
			}
			return err
		}},
		{"PingPongX balance", func(ctx context.Context) error {
			if cardID == "" {
				return errSkipped
			}
			_, err := gw.GetBalance(ctx, cardID)
			return err
		}},
		{"PingPongX transactions", func(ctx context.Context) error {
			if cardID == "" {
				return errSkipped
			}
			_, err := gw.GetTransactions(ctx, cardID)
			return err
		}},
	}
}

var errSkipped = errors.New("skipped: no cards")

// runChecks runs every check in order and fails if any of them failed.
func runChecks(ctx context.Context, out io.Writer, checks []check) error {
	failed := 0
	for _, p := range checks {
		switch err := p.run(ctx); {
		case err == nil:
			fmt.Fprintf(out, "✅ %s\n", p.name)
		case errors.Is(err, errSkipped):
			fmt.Fprintf(out, "⚠️ %s: %v\n", p.name, err)
		default:
			failed++
			fmt.Fprintf(out, "❌ %s: %v\n", p.name, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}
