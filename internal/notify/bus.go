package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
)

// DefaultSubject is the NATS subject notifications are mirrored to.
const DefaultSubject = "pprelay.notifications"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the JSON document published for every notification. Event
// carries the source payload when the caller attached one.
type Envelope struct {
	ID        string       `json:"id"`
	RequestID string       `json:"request_id,omitempty"`
	Target    int64        `json:"target"`
	Text      string       `json:"text"`
	SentAt    time.Time    `json:"sent_at"`
	Event     *event.Event `json:"event,omitempty"`
}

// Bus mirrors notifications onto a message bus subject.
type Bus struct {
	pub     Publisher
	subject string
	now     func() time.Time
}

func NewBus(pub Publisher, subject string) *Bus {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Bus{pub: pub, subject: subject, now: time.Now}
}

func (b *Bus) Deliver(ctx context.Context, target int64, text string) error {
	env := Envelope{
		ID:        uuid.New().String(),
		RequestID: RequestID(ctx),
		Target:    target,
		Text:      text,
		SentAt:    b.now().UTC(),
		Event:     EventFrom(ctx),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return &DeliveryError{Target: target, Sink: "nats", Err: err}
	}
	if err := b.pub.Publish(b.subject, data); err != nil {
		return &DeliveryError{Target: target, Sink: "nats", Err: err}
	}
	return nil
}

// ConnectNATS dials the NATS server at url.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("pprelay"))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}
