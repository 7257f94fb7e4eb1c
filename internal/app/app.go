package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// Server is a long-running component. Start blocks until the component
// stops; Stop asks it to stop.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// App runs a set of Servers until the context is cancelled or one fails.
type App struct {
	servers []Server
}

func New(servers ...Server) *App {
	return &App{servers: servers}
}

// Run starts every server and blocks until they have all returned. The
// first failure cancels the others.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range a.servers {
		s := srv
		g.Go(func() error {
			return s.Start(ctx)
		})
	}

	<-ctx.Done()
	slog.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range a.servers {
		if err := srv.Stop(stopCtx); err != nil {
			slog.Warn("server stop failed", "err", err)
		}
	}

	return g.Wait()
}
