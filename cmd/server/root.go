package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/pprelay/internal/config"
	"github.com/gyaneshwarpardhi/pprelay/internal/pingpong"
)

func newRootCmd(version, buildDate string) *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "pprelay",
		Short:         "Relay PingPongX payment events to Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "Path to YAML config (optional, env vars override it)")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newCheckCmd(&cfgPath))
	return root
}

func newVersionCmd(version, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pprelay %s (%s)\n", version, buildDate)
		},
	}
}

// loadConfig loads, installs the configured log level, then validates.
func loadConfig(path string) (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader(path)
	if err != nil {
		return nil, nil, err
	}
	cfg := loader.Config()
	setupLogging(cfg.Log.Level)
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

func setupLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
}

func newGateway(cfg *config.Config) *pingpong.Client {
	ppCfg := pingpong.Config{
		BaseURL:       cfg.PingPong.BaseURL,
		AppID:         cfg.PingPong.AppID,
		AppSecret:     cfg.PingPong.AppSecret,
		TokenLifetime: cfg.TokenLifetime(),
		Timeout:       time.Duration(cfg.PingPong.TimeoutMs) * time.Millisecond,
	}
	return pingpong.NewClient(ppCfg, pingpong.NewTokenStore(ppCfg, nil), nil)
}
