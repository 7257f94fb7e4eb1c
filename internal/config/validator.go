package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks the config for:
//   - Credentials required by the enabled entry points
//   - A numeric listen port and sane timings
//   - A known log level
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Telegram.BotToken == "" {
		errs = append(errs, "telegram.bot_token (TELEGRAM_BOT_TOKEN) is required")
	}
	if cfg.Telegram.ChatID == 0 {
		errs = append(errs, "telegram.chat_id (TELEGRAM_CHAT_ID) is required as the webhook target")
	}
	if cfg.Webhook.Secret == "" {
		errs = append(errs, "webhook.secret (WEBHOOK_SECRET) is required")
	}

	needsVendor := !cfg.Dispatcher.Disabled || !cfg.Telegram.DisablePolling
	if needsVendor && (cfg.PingPong.AppID == "" || cfg.PingPong.AppSecret == "") {
		errs = append(errs, "pingpong.app_id/app_secret (PINGPONGX_APP_ID/PINGPONGX_APP_SECRET) are required for the bot and dispatcher")
	}

	if p, err := strconv.Atoi(cfg.Server.Port); err != nil || p <= 0 || p > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %q must be a TCP port number", cfg.Server.Port))
	}
	if cfg.Dispatcher.IntervalSeconds < 0 {
		errs = append(errs, "dispatcher.interval_seconds must not be negative")
	}
	if cfg.PingPong.TokenLifetimeMinutes < 0 || cfg.PingPong.TokenLifetimeMinutes >= 120 {
		errs = append(errs, "pingpong.token_lifetime_minutes must be below the vendor's 120 minute token lifetime")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be one of debug, info, warn, error", cfg.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
