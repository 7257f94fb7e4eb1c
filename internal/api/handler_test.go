package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
	"github.com/gyaneshwarpardhi/pprelay/internal/format"
	"github.com/gyaneshwarpardhi/pprelay/internal/notify"
)

const secret = "E894016C2D254F1986D6E9A1"

type delivery struct {
	target    int64
	text      string
	requestID string
	event     *event.Event
}

type recorder struct {
	mu   sync.Mutex
	got  []delivery
	fail error
}

func (r *recorder) Deliver(ctx context.Context, target int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, delivery{target: target, text: text, requestID: notify.RequestID(ctx), event: notify.EventFrom(ctx)})
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func newTestHandler(n notify.Notifier) *Handler {
	return New(Options{
		Formatter: format.New(time.UTC),
		Notifier:  n,
		Target:    -100,
		Secret:    secret,
	})
}

func do(h http.Handler, method, target, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return out
}

func TestWebhook_Unauthorized(t *testing.T) {
	cases := []struct {
		name   string
		target string
		auth   string
	}{
		{"no credentials", "/webhook/pingpong", ""},
		{"wrong header", "/webhook/pingpong", "nope"},
		{"secret as substring", "/webhook/pingpong", "xx" + secret + "xx"},
		{"wrong query", "/webhook/pingpong?secret=nope", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &recorder{}
			rec := do(newTestHandler(n), http.MethodPost, tc.target, tc.auth, `{"amount":1}`)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := decodeBody(t, rec)["error"]; got != "Unauthorized" {
				t.Errorf("error = %q", got)
			}
			if n.count() != 0 {
				t.Errorf("expected zero deliveries, got %d", n.count())
			}
		})
	}
}

func TestWebhook_Authorized(t *testing.T) {
	cases := []struct {
		name   string
		target string
		auth   string
	}{
		{"raw header", "/webhook/pingpong", secret},
		{"bearer header", "/webhook/pingpong", "Bearer " + secret},
		{"query parameter", "/webhook/pingpong?secret=" + secret, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &recorder{}
			body := `{"transaction_type":"debit","amount":12.5,"currency":"EUR","status":"OK"}`
			rec := do(newTestHandler(n), http.MethodPost, tc.target, tc.auth, body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
			}
			if got := decodeBody(t, rec)["status"]; got != "success" {
				t.Errorf("status = %q", got)
			}
			if n.count() != 1 {
				t.Fatalf("expected one delivery, got %d", n.count())
			}
			d := n.got[0]
			if d.target != -100 {
				t.Errorf("target = %d, want -100", d.target)
			}
			if !strings.Contains(d.text, "12.5 EUR") || !strings.Contains(d.text, "debit") {
				t.Errorf("unexpected text:\n%s", d.text)
			}
			if d.requestID == "" || d.requestID != rec.Header().Get(requestIDHeader) {
				t.Errorf("request id %q not propagated (header %q)", d.requestID, rec.Header().Get(requestIDHeader))
			}
			if d.event == nil {
				t.Fatal("expected the webhook event to travel with the delivery")
			}
			if d.event.ID != d.requestID || d.event.Source != event.SourceWebhook || d.event.ReceivedAt.IsZero() {
				t.Errorf("unexpected event %+v", d.event)
			}
			if d.event.Payload.Get("currency", "") != "EUR" {
				t.Errorf("event payload = %v", d.event.Payload)
			}
		})
	}
}

func TestWebhook_MalformedBody(t *testing.T) {
	n := &recorder{}
	for _, body := range []string{`{"amount":`, `[1,2]`, `null`} {
		rec := do(newTestHandler(n), http.MethodPost, "/webhook/pingpong", secret, body)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("body %q: status = %d, want 500", body, rec.Code)
		}
		if decodeBody(t, rec)["error"] == "" {
			t.Errorf("body %q: expected error message", body)
		}
	}
	if n.count() != 0 {
		t.Errorf("malformed bodies must not be delivered, got %d", n.count())
	}
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	n := &recorder{}
	h := New(Options{Formatter: format.New(time.UTC), Notifier: n, Target: 1, Secret: secret, MaxBodyBytes: 16})
	rec := do(h, http.MethodPost, "/webhook/pingpong", secret, `{"description":"much longer than sixteen bytes"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if n.count() != 0 {
		t.Errorf("oversized body must not be delivered")
	}
}

func TestWebhook_DeliveryFailure(t *testing.T) {
	n := &recorder{fail: errors.New("chat not found")}
	rec := do(newTestHandler(n), http.MethodPost, "/webhook/pingpong", secret, `{"status":"OK"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; !strings.Contains(got, "chat not found") {
		t.Errorf("error = %q", got)
	}
}

func TestWebhook_SecretRotation(t *testing.T) {
	n := &recorder{}
	h := newTestHandler(n)
	h.SetSecret("rotated")

	if rec := do(h, http.MethodPost, "/webhook/pingpong", secret, `{}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("old secret: status = %d, want 401", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/webhook/pingpong", "rotated", `{}`); rec.Code != http.StatusOK {
		t.Errorf("new secret: status = %d, want 200", rec.Code)
	}
}

func TestTestEndpoint(t *testing.T) {
	n := &recorder{}
	rec := do(newTestHandler(n), http.MethodGet, "/test", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" || body["message"] == "" {
		t.Errorf("unexpected body %v", body)
	}
	if n.count() != 1 || !strings.Contains(n.got[0].text, "PINGPONG TRANSACTION NOTICE") {
		t.Fatalf("sample notification not delivered: %+v", n.got)
	}
	if ev := n.got[0].event; ev == nil || ev.Source != event.SourceTest || ev.Payload.Get("transaction_id", "") != "TEST123456" {
		t.Errorf("unexpected test event %+v", ev)
	}

	failing := &recorder{fail: errors.New("boom")}
	rec = do(newTestHandler(failing), http.MethodGet, "/test", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "error" || !strings.Contains(body["message"], "boom") {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHomeAndHealth(t *testing.T) {
	h := newTestHandler(&recorder{})

	rec := do(h, http.MethodGet, "/", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != homeText {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/nowhere", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nowhere = %d, want 404", rec.Code)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWebhook_MetricsLabelledByStatus(t *testing.T) {
	h := newTestHandler(&recorder{})
	do(h, http.MethodPost, "/webhook/pingpong", "nope", `{}`)
	do(h, http.MethodPost, "/webhook/pingpong", secret, `{}`)

	rec := do(h, http.MethodGet, "/metrics", "", "")
	body := rec.Body.String()
	for _, want := range []string{
		`pprelay_webhook_requests_total{status="unauthorized"}`,
		`pprelay_webhook_requests_total{status="success"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
	if strings.Contains(body, `pprelay_webhook_requests_total{outcome=`) {
		t.Error("webhook counter still uses the outcome label")
	}
}
