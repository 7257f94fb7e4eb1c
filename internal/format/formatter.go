package format

import (
	"time"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
)

const (
	// minLines is the total line count (header and timestamp included) below
	// which the raw record is appended.
	minLines = 4

	timestampLayout = "02/01/2006 15:04:05"
	defaultCurrency = "USD"
	missing         = "N/A"
)

// field is one optional extractor: the first present key in keys becomes
// the line value. render, when set, builds the value from the whole record.
type field struct {
	icon   string
	label  string
	keys   []string
	style  Style
	render func(rec event.Record, v string) string
}

// eventFields is applied in order to every webhook/event record.
var eventFields = []field{
	{icon: "📋", label: "Type", keys: []string{"transaction_type", "type"}, style: Bold},
	{icon: "💰", label: "Amount", keys: []string{"amount"}, style: Bold, render: withCurrency},
	{icon: "💳", label: "Balance", keys: []string{"balance", "new_balance"}, style: Bold},
	{icon: "✅", label: "Status", keys: []string{"status"}, style: Bold},
	{icon: "📝", label: "Description", keys: []string{"description", "memo"}},
	{icon: "🔖", label: "Transaction ID", keys: []string{"transaction_id", "id"}, style: Code},
}

func withCurrency(rec event.Record, amount string) string {
	cur, ok := rec.String("currency")
	if !ok {
		cur = defaultCurrency
	}
	return amount + " " + cur
}

// Formatter turns records into display messages. The zero value uses
// time.Now and the local time zone.
type Formatter struct {
	Now      func() time.Time
	Location *time.Location
}

// New returns a Formatter stamping times in loc (nil means local).
func New(loc *time.Location) *Formatter {
	return &Formatter{Now: time.Now, Location: loc}
}

func (f *Formatter) now() time.Time {
	now := time.Now
	if f != nil && f.Now != nil {
		now = f.Now
	}
	t := now()
	if f != nil && f.Location != nil {
		t = t.In(f.Location)
	}
	return t
}

// Event formats a webhook payload or vendor event. It never fails: fields
// that are absent are skipped, and a record matching too few fields is
// dumped raw so nothing is dropped silently.
func (f *Formatter) Event(rec event.Record) Message {
	var m Message
	m.add(Line{Kind: KindHeader, Icon: "🔔", Label: "PINGPONG TRANSACTION NOTICE"})

	for _, fd := range eventFields {
		v, ok := rec.String(fd.keys...)
		if !ok {
			continue
		}
		if fd.render != nil {
			v = fd.render(rec, v)
		}
		m.add(Line{Kind: KindField, Icon: fd.icon, Label: fd.label, Value: v, Style: fd.style})
	}

	m.add(Line{Kind: KindTimestamp, Icon: "⏰", Label: "Time", Value: f.now().Format(timestampLayout)})

	if len(m.Lines) < minLines {
		m.add(Line{Kind: KindFallback, Icon: "📦", Label: "Data", Value: rec.Raw(), Style: Code})
	}
	return m
}

// Card formats one card from the card listing.
func (f *Formatter) Card(card event.Record) Message {
	var m Message
	m.add(Line{Kind: KindHeader, Icon: "🎴", Label: "Card Details"})
	m.add(plain("Card ID", card.Get("cardId", missing)))
	m.add(plain("Status", card.Get("status", missing)))
	m.add(plain("Card Number", card.Get("cardNumber", missing)))
	m.add(plain("Expiry", card.Get("expiryDate", missing)))
	m.add(plain("Currency", card.Get("currency", missing)))
	return m
}

// Balance formats an on-demand balance reply.
func (f *Formatter) Balance(cardID string, bal event.Record) Message {
	var m Message
	m.add(Line{Kind: KindHeader, Icon: "💰", Label: "Balance for Card " + cardID})
	m.add(plain("Available Balance", bal.Get("availableBalance", missing)))
	m.add(plain("Currency", bal.Get("currency", missing)))
	m.add(plain("Last Updated", bal.Get("updateTime", missing)))
	return m
}

// BalanceUpdate formats the periodic balance summary for one card.
func (f *Formatter) BalanceUpdate(card, bal event.Record) Message {
	var m Message
	m.add(Line{Kind: KindHeader, Icon: "🔄", Label: "Periodic Update"})
	m.add(plain("Card", card.Get("cardId", missing)))
	m.add(plain("Balance", bal.Get("availableBalance", missing)+" "+bal.Get("currency", missing)))
	m.add(plain("Status", card.Get("status", missing)))
	return m
}

// LatestTransaction formats the most recent transaction of a card.
func (f *Formatter) LatestTransaction(tx event.Record) Message {
	var m Message
	m.add(Line{Kind: KindHeader, Label: "Latest Transaction"})
	appendTx(&m, tx, false)
	return m
}

// Transactions formats the on-demand transaction list of a card.
func (f *Formatter) Transactions(cardID string, txs []event.Record) Message {
	var m Message
	m.add(Line{Kind: KindHeader, Icon: "📊", Label: "Recent Transactions for Card " + cardID})
	for i, tx := range txs {
		if i > 0 {
			m.add(Line{Kind: KindBlank})
		}
		appendTx(&m, tx, true)
	}
	return m
}

func appendTx(m *Message, tx event.Record, withDescription bool) {
	m.add(plain("Amount", tx.Get("amount", missing)+" "+tx.Get("currency", missing)))
	m.add(plain("Type", tx.Get("type", missing)))
	m.add(plain("Status", tx.Get("status", missing)))
	m.add(plain("Date", tx.Get("transactionTime", missing)))
	if withDescription {
		m.add(plain("Description", tx.Get("description", missing)))
	}
}

func plain(label, value string) Line {
	return Line{Kind: KindField, Label: label, Value: value}
}

// SampleRecord is the fixed payload used by the manual test trigger.
func SampleRecord() event.Record {
	return event.Record{
		"transaction_type": "Received",
		"amount":           "100.00",
		"currency":         "USD",
		"balance":          "1,234.56 USD",
		"status":           "Completed",
		"description":      "Test notification",
		"transaction_id":   "TEST123456",
	}
}
