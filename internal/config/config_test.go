package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "TELEGRAM_TIMEZONE", "WEBHOOK_SECRET",
	"PINGPONGX_APP_ID", "PINGPONGX_APP_SECRET", "PINGPONGX_BASE_URL",
	"PORT", "NATS_URL", "NATS_SUBJECT", "LOG_LEVEL", "DISPATCH_INTERVAL_SECONDS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pprelay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sample = `
server:
  port: "8081"
webhook:
  secret: from-file
telegram:
  bot_token: file-token
  chat_id: 42
pingpong:
  app_id: app
  app_secret: shh
dispatcher:
  interval_seconds: 60
`

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBHOOK_SECRET", "from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")

	l, err := NewLoader(writeFile(t, sample))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()

	if cfg.Webhook.Secret != "from-env" {
		t.Errorf("env must override file, got %q", cfg.Webhook.Secret)
	}
	if cfg.Telegram.ChatID != -1001 {
		t.Errorf("ChatID = %d, want -1001", cfg.Telegram.ChatID)
	}
	if cfg.Addr() != ":8081" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.Interval() != time.Minute {
		t.Errorf("Interval = %v, want 1m", cfg.Interval())
	}
	if cfg.TokenLifetime() != 105*time.Minute {
		t.Errorf("TokenLifetime = %v, want default 105m", cfg.TokenLifetime())
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "7")
	t.Setenv("WEBHOOK_SECRET", "s")
	t.Setenv("PINGPONGX_APP_ID", "id")
	t.Setenv("PINGPONGX_APP_SECRET", "secret")

	l, err := NewLoader("")
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()
	if cfg.Server.Port != "5000" || cfg.Interval() != 300*time.Second {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
	if _, err := l.Watch(); err == nil {
		t.Error("watching without a file should fail")
	}
}

func TestLoad_BadChatID(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	if _, err := NewLoader(""); err == nil {
		t.Fatal("expected error for non-numeric chat id")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{Server: ServerConf{Port: "http"}, Log: LogConf{Level: "loud"}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"bot_token", "chat_id", "webhook.secret", "app_id", "server.port", "log.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidate_WebhookOnlySkipsVendor(t *testing.T) {
	cfg := &Config{
		Server:     ServerConf{Port: "5000"},
		Webhook:    WebhookConf{Secret: "s"},
		Telegram:   TelegramConf{BotToken: "t", ChatID: 1, DisablePolling: true},
		Dispatcher: DispatcherConf{Disabled: true},
		Log:        LogConf{Level: "info"},
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReload_NotifiesAndWatches(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, sample)
	l, err := NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	changed := make(chan *Config, 4)
	l.OnChange(func(c *Config) { changed <- c })

	stop, err := l.Watch()
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	updated := strings.Replace(sample, "from-file", "rotated", 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case c := <-changed:
		if c.Webhook.Secret != "rotated" {
			// A write may be observed before the file is complete; wait for the next event.
			select {
			case c = <-changed:
			case <-time.After(2 * time.Second):
			}
		}
		if c.Webhook.Secret != "rotated" {
			t.Errorf("secret = %q, want rotated", c.Webhook.Secret)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload observed")
	}
	if l.Config().Webhook.Secret != "rotated" {
		t.Errorf("current config not swapped")
	}
}
