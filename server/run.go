package server

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Run serves app until ctx is cancelled, then shuts the server down within
// the configured timeout.
func Run(ctx context.Context, app *App) error {
	cfg := app.Config
	ln, err := net.Listen("tcp", app.Server.Addr)
	if err != nil {
		return err
	}

	app.Logger.Info("starting just3sec server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", ln.Addr().String(),
		"storage_adapter", cfg.Storage.Adapter,
		"dispatch", cfg.Game.DispatchMode)

	errCh := make(chan error, 1)
	go func() {
		if err := app.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	app.Logger.Info("server stopped")
	return nil
}
