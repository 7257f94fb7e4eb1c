package api

import (
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
	"github.com/gyaneshwarpardhi/pprelay/internal/format"
	"github.com/gyaneshwarpardhi/pprelay/internal/metrics"
	"github.com/gyaneshwarpardhi/pprelay/internal/notify"
)

const (
	defaultMaxBodyBytes = 1 << 20
	homeText            = "PingPong Telegram Notifier is running! ✅"
)

// Options configures a Handler.
type Options struct {
	Formatter    *format.Formatter
	Notifier     notify.Notifier
	Target       int64 // chat that receives webhook notifications
	Secret       string
	MaxBodyBytes int64
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	formatter *format.Formatter
	notifier  notify.Notifier
	target    int64
	maxBody   int64
	secret    atomic.Pointer[string]
	root      http.Handler
}

// New creates an HTTP handler and registers all routes.
func New(opts Options) *Handler {
	h := &Handler{
		formatter: opts.Formatter,
		notifier:  opts.Notifier,
		target:    opts.Target,
		maxBody:   opts.MaxBodyBytes,
	}
	if h.maxBody <= 0 {
		h.maxBody = defaultMaxBodyBytes
	}
	h.SetSecret(opts.Secret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("POST /webhook/pingpong", h.webhook)
	mux.HandleFunc("GET /test", h.testNotification)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	h.root = loggingMiddleware(recoverMiddleware(mux))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// SetSecret replaces the shared webhook secret. Safe for concurrent use.
func (h *Handler) SetSecret(secret string) {
	h.secret.Store(&secret)
}

// GET /: liveness text for humans.
func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, homeText)
}

// POST /webhook/pingpong: authenticate, format and forward one vendor event.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		metrics.WebhookRequests.WithLabelValues("unauthorized").Inc()
		slog.Warn("webhook: unauthorized request", "remote", r.RemoteAddr, "request_id", notify.RequestID(r.Context()))
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.webhookFailed(w, r, fmt.Errorf("reading body: %w", err))
		return
	}
	rec, err := event.Decode(body)
	if err != nil {
		h.webhookFailed(w, r, err)
		return
	}

	ev := event.NewEvent(notify.RequestID(r.Context()), event.SourceWebhook, rec)
	msg := h.formatter.Event(ev.Payload)
	if err := h.notifier.Deliver(notify.WithEvent(r.Context(), ev), h.target, msg.Text()); err != nil {
		h.webhookFailed(w, r, err)
		return
	}

	metrics.WebhookRequests.WithLabelValues("success").Inc()
	slog.Info("webhook: notification forwarded",
		"event_id", ev.ID,
		"source", ev.Source,
		"received_at", ev.ReceivedAt,
		"fields", msg.OptionalCount(),
		"fallback", msg.HasFallback(),
	)
	writeStatus(w, http.StatusOK, "success", "")
}

func (h *Handler) webhookFailed(w http.ResponseWriter, r *http.Request, err error) {
	metrics.WebhookRequests.WithLabelValues("error").Inc()
	slog.Error("webhook: processing failed", "request_id", notify.RequestID(r.Context()), "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// GET /test: send the fixed sample notification to the target chat.
func (h *Handler) testNotification(w http.ResponseWriter, r *http.Request) {
	ev := event.NewEvent(notify.RequestID(r.Context()), event.SourceTest, format.SampleRecord())
	msg := h.formatter.Event(ev.Payload)
	if err := h.notifier.Deliver(notify.WithEvent(r.Context(), ev), h.target, msg.Text()); err != nil {
		slog.Error("test notification failed", "request_id", notify.RequestID(r.Context()), "err", err)
		writeStatus(w, http.StatusInternalServerError, "error", "Could not send test notification: "+err.Error())
		return
	}
	writeStatus(w, http.StatusOK, "success", "Test notification sent")
}

// GET /healthz: always 200 for liveness checks.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "ok", "")
}

// authorized accepts the secret as the whole Authorization header value
// (optionally "Bearer "-prefixed) or as the secret query parameter.
func (h *Handler) authorized(r *http.Request) bool {
	secret := *h.secret.Load()
	if secret == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	header = strings.TrimPrefix(header, "Bearer ")
	return equal(header, secret) || equal(r.URL.Query().Get("secret"), secret)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
