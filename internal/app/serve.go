package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"poke-platform/internal/api"
	"poke-platform/internal/proposals"
)

// Serve runs the HTTP API until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := api.New(api.Options{
		Config:          a.Config.Server,
		Logger:          a.Logger,
		DB:              store,
		Valuations:      store,
		Prices:          store,
		Proposals:       store,
		Portfolio:       store,
		Generator:       proposals.NewGenerator(store, store, store, a.Config, a.Logger),
		Reviewer:        proposals.NewReviewer(store, a.Logger),
		StrategyName:    a.Config.Strategy.Name,
		StrategyVersion: a.Config.Strategy.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
