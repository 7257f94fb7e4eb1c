package pingpong

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/pprelay/internal/event"
	"github.com/gyaneshwarpardhi/pprelay/internal/metrics"
)

// DefaultBaseURL is the PingPongX sandbox gateway.
const DefaultBaseURL = "https://sandbox-gateway.pingpongx.com"

// Config holds the vendor API settings.
type Config struct {
	BaseURL       string
	AppID         string
	AppSecret     string
	TokenLifetime time.Duration
	Timeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.TokenLifetime <= 0 {
		c.TokenLifetime = DefaultTokenLifetime
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Client performs authenticated read calls against the vendor API. Every
// call asks the TokenStore for a credential right before the request, so an
// expired token is re-issued transparently.
type Client struct {
	baseURL string
	tokens  *TokenStore
	http    *http.Client
}

// NewClient creates a Client sharing tokens for authorization.
func NewClient(cfg Config, tokens *TokenStore, hc *http.Client) *Client {
	cfg = cfg.withDefaults()
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{baseURL: cfg.BaseURL, tokens: tokens, http: hc}
}

// ListCards returns all virtual cards.
func (c *Client) ListCards(ctx context.Context) ([]event.Record, error) {
	res, err := c.get(ctx, "list_cards", "/v2/virtual/cards")
	if err != nil {
		return nil, err
	}
	cards, err := event.DecodeList(res.data)
	if err != nil {
		return nil, res.fail(err)
	}
	return cards, nil
}

// GetBalance returns the balance record of one card. A missing data field
// yields an empty record.
func (c *Client) GetBalance(ctx context.Context, cardID string) (event.Record, error) {
	res, err := c.get(ctx, "get_balance", "/v2/virtual/cards/"+url.PathEscape(cardID)+"/balance")
	if err != nil {
		return nil, err
	}
	if isNull(res.data) {
		return event.Record{}, nil
	}
	bal, err := event.Decode(res.data)
	if err != nil {
		return nil, res.fail(err)
	}
	return bal, nil
}

// GetTransactions returns the transactions of one card, most recent first.
func (c *Client) GetTransactions(ctx context.Context, cardID string) ([]event.Record, error) {
	res, err := c.get(ctx, "get_transactions", "/v2/virtual/cards/"+url.PathEscape(cardID)+"/transactions")
	if err != nil {
		return nil, err
	}
	txs, err := event.DecodeList(res.data)
	if err != nil {
		return nil, res.fail(err)
	}
	return txs, nil
}

// Ping discards the held token and issues a fresh one.
func (c *Client) Ping(ctx context.Context) error {
	c.tokens.Invalidate()
	_, err := c.tokens.EnsureValidToken(ctx)
	return err
}

type envelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// reply is a successful vendor response; data is the envelope's data field.
type reply struct {
	endpoint string
	status   int
	body     []byte
	data     json.RawMessage
}

// fail reports a payload that could not be used, with the response it came in.
func (r *reply) fail(err error) error {
	return &GatewayError{Endpoint: r.endpoint, StatusCode: r.status, Body: string(r.body), Err: fmt.Errorf("decode data: %w", err)}
}

func (c *Client) get(ctx context.Context, endpoint, path string) (*reply, error) {
	cred, err := c.tokens.EnsureValidToken(ctx)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues(endpoint, "auth_error").Inc()
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &GatewayError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues(endpoint, "error").Inc()
		return nil, &GatewayError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.GatewayCalls.WithLabelValues(endpoint, "error").Inc()
		return nil, &GatewayError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GatewayCalls.WithLabelValues(endpoint, "error").Inc()
		return nil, &GatewayError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.GatewayCalls.WithLabelValues(endpoint, "error").Inc()
		return nil, &GatewayError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("decode: %w", err)}
	}
	if env.Code != nil && *env.Code != 0 {
		metrics.GatewayCalls.WithLabelValues(endpoint, "error").Inc()
		return nil, &GatewayError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("vendor returned code %d", *env.Code),
		}
	}

	metrics.GatewayCalls.WithLabelValues(endpoint, "success").Inc()
	return &reply{endpoint: endpoint, status: resp.StatusCode, body: body, data: env.Data}, nil
}

func isNull(data json.RawMessage) bool {
	d := bytes.TrimSpace(data)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}
