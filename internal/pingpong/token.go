package pingpong

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/pprelay/internal/metrics"
)

// DefaultTokenLifetime is how long an issued token is trusted. The vendor
// issues two-hour tokens; refreshing at 1h45m avoids using an expired one.
const DefaultTokenLifetime = 105 * time.Minute

const maxBodyBytes = 1 << 20

// Credential is an issued bearer token. It is replaced wholesale on refresh.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the credential may authorize a call at now.
func (c Credential) Valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt)
}

// TokenStore owns the single credential slot and its refresh.
type TokenStore struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu   sync.Mutex
	cred *Credential
}

// NewTokenStore creates a TokenStore. No token is fetched until first use.
func NewTokenStore(cfg Config, hc *http.Client) *TokenStore {
	cfg = cfg.withDefaults()
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &TokenStore{cfg: cfg, http: hc, now: time.Now}
}

// EnsureValidToken returns the held credential, issuing a new one when none
// is held or it has expired. A failed issuance leaves the slot unchanged.
func (s *TokenStore) EnsureValidToken(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cred != nil && s.cred.Valid(now) {
		return *s.cred, nil
	}

	token, err := s.issue(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		slog.Error("pingpong: token issuance failed", "err", err)
		return Credential{}, err
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()

	cred := &Credential{Token: token, ExpiresAt: now.Add(s.cfg.TokenLifetime)}
	s.cred = cred
	slog.Info("pingpong: obtained new access token", "expires_at", cred.ExpiresAt)
	return *cred, nil
}

// Invalidate drops the held credential so the next call re-issues.
func (s *TokenStore) Invalidate() {
	s.mu.Lock()
	s.cred = nil
	s.mu.Unlock()
}

type tokenResponse struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

func (s *TokenStore) issue(ctx context.Context) (string, error) {
	form := url.Values{
		"app_id":     {s.cfg.AppID},
		"app_secret": {s.cfg.AppSecret},
		"grant_type": {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+"/v2/token/get", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(body), Err: errors.New("unexpected status")}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("decode: %w", err)}
	}
	if tr.Code == nil || *tr.Code != 0 || tr.Data.AccessToken == "" {
		return "", &AuthError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("invalid response format (msg %q)", tr.Msg),
		}
	}
	return tr.Data.AccessToken, nil
}
