package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Outbound pacing for a single bot; the chat API starts rejecting at about
// 30 messages per second.
const (
	DefaultSendRate  = rate.Limit(25)
	DefaultSendBurst = 5
)

// Sender is the part of *tgbotapi.BotAPI used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends messages through the Telegram Bot API in HTML parse mode.
type Telegram struct {
	api     Sender
	limiter *rate.Limiter
}

func NewTelegram(api Sender) *Telegram {
	return NewTelegramWithLimit(api, DefaultSendRate, DefaultSendBurst)
}

// NewTelegramWithLimit paces sends at r messages per second with the given burst.
func NewTelegramWithLimit(api Sender, r rate.Limit, burst int) *Telegram {
	return &Telegram{api: api, limiter: rate.NewLimiter(r, burst)}
}

func (t *Telegram) Deliver(ctx context.Context, target int64, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return &DeliveryError{Target: target, Sink: "telegram", Err: err}
	}
	msg := tgbotapi.NewMessage(target, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return &DeliveryError{Target: target, Sink: "telegram", Err: err}
	}
	return nil
}
