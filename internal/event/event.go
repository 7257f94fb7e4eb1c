package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record is an untyped key/value payload: a webhook body or one vendor
// card/balance/transaction object. Keys vary by source, so reads go through
// First with an ordered list of candidate keys.
type Record map[string]interface{}

// Event sources.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceTest    = "test"
)

// Event wraps a Record with the metadata the relay attaches on receipt.
type Event struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    Record    `json:"payload"`
}

// NewEvent stamps payload as received now from source.
func NewEvent(id, source string, payload Record) *Event {
	return &Event{ID: id, Source: source, ReceivedAt: time.Now().UTC(), Payload: payload}
}

// First returns the value of the first present key. A key is present when it
// exists with a non-nil value that is not the empty string.
func (r Record) First(keys ...string) (interface{}, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// String is First followed by scalar rendering.
func (r Record) String(keys ...string) (string, bool) {
	v, ok := r.First(keys...)
	if !ok {
		return "", false
	}
	return Render(v), true
}

// Get returns the rendered value of key, or def when absent.
func (r Record) Get(key, def string) string {
	if s, ok := r.String(key); ok {
		return s
	}
	return def
}

// Raw renders the whole record as JSON with sorted keys. HTML characters
// are left as is; display code escapes them.
func (r Record) Raw() string {
	s, err := marshal(map[string]interface{}(r))
	if err != nil {
		return fmt.Sprint(map[string]interface{}(r))
	}
	return s
}

func marshal(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Render formats a decoded JSON value for display. Numbers keep their
// literal form where possible so 100.00 does not become 1e+02.
func Render(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case json.Number:
		return n.String()
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case bool:
		return strconv.FormatBool(n)
	case map[string]interface{}, []interface{}:
		if s, err := marshal(n); err == nil {
			return s
		}
	}
	return fmt.Sprint(v)
}

// Decode parses a JSON object into a Record, keeping numbers as json.Number.
func Decode(data []byte) (Record, error) {
	var rec Record
	if err := decodeInto(data, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("event: payload must be a JSON object")
	}
	return rec, nil
}
