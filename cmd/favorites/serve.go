package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the favorites list, reorders and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = root.cfg.Server.Port
			}
			return runServe(cmd.Context(), root, port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (defaults to server.port)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, port string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, root.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.ctrl.Start(ctx)

	handler := newFavoritesHandler(a.ctrl, a.service, root.cfg.List.FavoriteURL)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Msg("Starting favorites server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-quit:
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down favorites server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info().Msg("Favorites server stopped")
	return nil
}
