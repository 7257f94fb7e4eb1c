package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func TestTelegram_Deliver(t *testing.T) {
	s := &fakeSender{}
	if err := NewTelegram(s).Deliver(context.Background(), 99, "<b>hi</b>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(s.sent))
	}
	msg := s.sent[0]
	if msg.ChatID != 99 || msg.Text != "<b>hi</b>" || msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestTelegram_DeliverError(t *testing.T) {
	s := &fakeSender{err: errors.New("chat not found")}
	err := NewTelegram(s).Deliver(context.Background(), 5, "x")
	var de *DeliveryError
	if !errors.As(err, &de) || de.Target != 5 || de.Sink != "telegram" {
		t.Fatalf("expected telegram *DeliveryError, got %v", err)
	}
}

func TestTelegram_PacesSends(t *testing.T) {
	s := &fakeSender{}
	tg := NewTelegramWithLimit(s, rate.Every(time.Hour), 1)
	if err := tg.Deliver(context.Background(), 1, "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tg.Deliver(ctx, 1, "second")
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DeliveryError while throttled, got %v", err)
	}
	if len(s.sent) != 1 {
		t.Errorf("throttled message must not be sent, sent %d", len(s.sent))
	}
}

func TestBus_PublishesEnvelope(t *testing.T) {
	p := &fakePublisher{}
	b := NewBus(p, "")
	b.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx := WithRequestID(context.Background(), "req-1")
	if err := b.Deliver(ctx, 12, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.subject != DefaultSubject {
		t.Errorf("subject = %q, want %q", p.subject, DefaultSubject)
	}
	var env Envelope
	if err := json.Unmarshal(p.data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.ID == "" || env.RequestID != "req-1" || env.Target != 12 || env.Text != "hello" {
		t.Errorf("unexpected envelope %+v", env)
	}
	if env.Event != nil {
		t.Errorf("no event attached, got %+v", env.Event)
	}
}

func TestBus_CarriesSourceEvent(t *testing.T) {
	p := &fakePublisher{}
	ev := event.NewEvent("req-2", event.SourceWebhook, event.Record{"amount": json.Number("12.50")})

	ctx := WithEvent(WithRequestID(context.Background(), "req-2"), ev)
	if err := NewBus(p, "custom.subject").Deliver(ctx, 3, "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.subject != "custom.subject" {
		t.Errorf("subject = %q", p.subject)
	}

	var env Envelope
	if err := json.Unmarshal(p.data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Event == nil {
		t.Fatal("expected the source event in the envelope")
	}
	if env.Event.ID != "req-2" || env.Event.Source != event.SourceWebhook || env.Event.Payload.Get("amount", "") != "12.5" {
		t.Errorf("unexpected event %+v", env.Event)
	}
	if !env.Event.ReceivedAt.Equal(ev.ReceivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", env.Event.ReceivedAt, ev.ReceivedAt)
	}
}

func TestEventFrom_Empty(t *testing.T) {
	if ev := EventFrom(context.Background()); ev != nil {
		t.Errorf("expected nil event, got %+v", ev)
	}
}

func TestFanout_IsolatesSinkFailures(t *testing.T) {
	var okCalls int
	failing := NotifierFunc(func(ctx context.Context, target int64, text string) error {
		return errors.New("boom")
	})
	ok := NotifierFunc(func(ctx context.Context, target int64, text string) error {
		okCalls++
		return nil
	})

	f := NewFanout(Sink{Name: "bad", Notifier: failing}, Sink{Name: "good", Notifier: ok})
	err := f.Deliver(context.Background(), 1, "x")

	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DeliveryError, got %v", err)
	}
	if okCalls != 1 {
		t.Errorf("second sink must still be called, got %d calls", okCalls)
	}

	if err := NewFanout(Sink{Name: "good", Notifier: ok}).Deliver(context.Background(), 1, "x"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
