package dispatcher

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
	"github.com/gyaneshwarpardhi/pprelay/internal/format"
	"github.com/gyaneshwarpardhi/pprelay/internal/metrics"
	"github.com/gyaneshwarpardhi/pprelay/internal/notify"
	"github.com/gyaneshwarpardhi/pprelay/internal/subscription"
)

// DefaultInterval is the period between two notification cycles.
const DefaultInterval = 300 * time.Second

// Gateway is the read side of the vendor API used by a tick.
type Gateway interface {
	ListCards(ctx context.Context) ([]event.Record, error)
	GetBalance(ctx context.Context, cardID string) (event.Record, error)
	GetTransactions(ctx context.Context, cardID string) ([]event.Record, error)
}

// Report summarises one tick.
type Report struct {
	Subscribers int `json:"subscribers"`
	Cards       int `json:"cards"`
	Deliveries  int `json:"deliveries"`
	Failures    int `json:"failures"`
}

// Dispatcher periodically pushes card balances and the latest transaction
// of every card to every subscriber. Failures are contained per card fetch
// and per subscriber delivery.
type Dispatcher struct {
	gw        Gateway
	reg       *subscription.Registry
	notifier  notify.Notifier
	formatter *format.Formatter

	interval atomic.Int64
	reset    chan struct{}
}

// New creates a Dispatcher. A non-positive interval selects DefaultInterval.
func New(gw Gateway, reg *subscription.Registry, n notify.Notifier, f *format.Formatter, interval time.Duration) *Dispatcher {
	d := &Dispatcher{
		gw:        gw,
		reg:       reg,
		notifier:  n,
		formatter: f,
		reset:     make(chan struct{}, 1),
	}
	d.interval.Store(int64(normalize(interval)))
	return d
}

// Interval returns the current tick period.
func (d *Dispatcher) Interval() time.Duration {
	return time.Duration(d.interval.Load())
}

// SetInterval changes the tick period; a running loop picks it up at once.
func (d *Dispatcher) SetInterval(interval time.Duration) {
	interval = normalize(interval)
	if time.Duration(d.interval.Swap(int64(interval))) == interval {
		return
	}
	select {
	case d.reset <- struct{}{}:
	default:
	}
}

func normalize(interval time.Duration) time.Duration {
	if interval <= 0 {
		return DefaultInterval
	}
	return interval
}

// Run ticks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.Interval())
	defer ticker.Stop()
	slog.Info("dispatcher running", "interval", d.Interval())

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopped")
			return nil
		case <-d.reset:
			ticker.Reset(d.Interval())
			slog.Info("dispatcher interval changed", "interval", d.Interval())
		case <-ticker.C:
			rep := d.Tick(ctx)
			slog.Info("dispatcher tick done",
				"subscribers", rep.Subscribers,
				"cards", rep.Cards,
				"deliveries", rep.Deliveries,
				"failures", rep.Failures,
			)
		}
	}
}

// Start implements app.Server.
func (d *Dispatcher) Start(ctx context.Context) error { return d.Run(ctx) }

// Stop implements app.Server (no-op, shutdown is via ctx).
func (d *Dispatcher) Stop(ctx context.Context) error { return nil }

// Tick runs one notification cycle. With no subscribers the vendor API is
// not called at all.
func (d *Dispatcher) Tick(ctx context.Context) Report {
	start := time.Now()
	defer func() {
		metrics.TickDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	subs := d.reg.Snapshot()
	rep := Report{Subscribers: len(subs)}
	if len(subs) == 0 {
		return rep
	}

	cards, err := d.gw.ListCards(ctx)
	if err != nil {
		d.fail(&rep, "list_cards", "dispatcher: list cards failed", "err", err)
		return rep
	}
	rep.Cards = len(cards)

	for _, card := range cards {
		if ctx.Err() != nil {
			return rep
		}
		cardID, ok := card.String("cardId")
		if !ok {
			d.fail(&rep, "card", "dispatcher: card without cardId skipped", "card", card.Raw())
			continue
		}
		d.notifyCard(ctx, card, cardID, subs, &rep)
	}
	return rep
}

func (d *Dispatcher) notifyCard(ctx context.Context, card event.Record, cardID string, subs []int64, rep *Report) {
	bal, err := d.gw.GetBalance(ctx, cardID)
	switch {
	case err != nil:
		d.fail(rep, "balance", "dispatcher: balance fetch failed", "card_id", cardID, "err", err)
	case len(bal) > 0:
		d.broadcast(ctx, subs, polled(bal), d.formatter.BalanceUpdate(card, bal), rep)
	}

	txs, err := d.gw.GetTransactions(ctx, cardID)
	switch {
	case err != nil:
		d.fail(rep, "transactions", "dispatcher: transactions fetch failed", "card_id", cardID, "err", err)
	case len(txs) > 0:
		d.broadcast(ctx, subs, polled(txs[0]), d.formatter.LatestTransaction(txs[0]), rep)
	}
}

func polled(rec event.Record) *event.Event {
	return event.NewEvent(uuid.New().String(), event.SourcePoll, rec)
}

// broadcast sends msg to every subscriber; all copies share ev.
func (d *Dispatcher) broadcast(ctx context.Context, subs []int64, ev *event.Event, msg format.Message, rep *Report) {
	ctx = notify.WithEvent(ctx, ev)
	text := msg.Text()
	for _, id := range subs {
		if err := d.notifier.Deliver(ctx, id, text); err != nil {
			d.fail(rep, "deliver", "dispatcher: delivery failed", "chat_id", id, "err", err)
			continue
		}
		rep.Deliveries++
	}
}

func (d *Dispatcher) fail(rep *Report, stage, msg string, args ...any) {
	rep.Failures++
	metrics.TickFailures.WithLabelValues(stage).Inc()
	slog.Error(msg, args...)
}
