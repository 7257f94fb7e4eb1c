package config

import "time"

// Config is the top-level YAML structure. Secrets normally come from the
// environment and override whatever the file holds.
type Config struct {
	Server     ServerConf     `yaml:"server"`
	Webhook    WebhookConf    `yaml:"webhook"`
	Telegram   TelegramConf   `yaml:"telegram"`
	PingPong   PingPongConf   `yaml:"pingpong"`
	Dispatcher DispatcherConf `yaml:"dispatcher"`
	NATS       NATSConf       `yaml:"nats"`
	Log        LogConf        `yaml:"log"`
}

// ServerConf holds the HTTP listener settings.
type ServerConf struct {
	Port           string `yaml:"port"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

// WebhookConf holds the inbound webhook settings.
type WebhookConf struct {
	Secret string `yaml:"secret"`
}

// TelegramConf holds the bot credential and the fixed webhook target chat.
type TelegramConf struct {
	BotToken       string `yaml:"bot_token"`
	ChatID         int64  `yaml:"chat_id"`
	DisablePolling bool   `yaml:"disable_polling"` // webhook-only deployments
	Timezone       string `yaml:"timezone"`
}

// PingPongConf holds the vendor API settings.
type PingPongConf struct {
	BaseURL              string `yaml:"base_url"`
	AppID                string `yaml:"app_id"`
	AppSecret            string `yaml:"app_secret"`
	TokenLifetimeMinutes int    `yaml:"token_lifetime_minutes"`
	TimeoutMs            int    `yaml:"timeout_ms"`
}

// DispatcherConf holds the periodic notification settings.
type DispatcherConf struct {
	Disabled        bool `yaml:"disabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// NATSConf enables mirroring notifications to a NATS subject when URL is set.
type NATSConf struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LogConf holds logging settings.
type LogConf struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string { return ":" + c.Server.Port }

// Interval returns the dispatcher period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Dispatcher.IntervalSeconds) * time.Second
}

// TokenLifetime returns how long an issued vendor token is trusted.
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.PingPong.TokenLifetimeMinutes) * time.Minute
}

// Location returns the time zone used for notification timestamps.
func (c *Config) Location() *time.Location {
	if c.Telegram.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Telegram.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
