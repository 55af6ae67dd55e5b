package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"territory-admin/dblayer"
	"territory-admin/debugui"
	"territory-admin/healthz"

	"github.com/spf13/cobra"
)

var debugListen string

func newDebugMux(roster *dblayer.UserRoster) *http.ServeMux {
	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", healthz.New())
	debugServeMux.Handle("/readyz", healthz.New(roster.Ready))
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugui.New(roster).RegisterDebugHandlers(debugServeMux)
	return debugServeMux
}

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Serve health probes, pprof, and a live user page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(ctx context.Context, e *env) error {
			slog.InfoContext(ctx, "Starting debug server", slog.String("debug-listen", debugListen))

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			roster := dblayer.NewUserRoster(e.db)
			if err := roster.Start(ctx); err != nil {
				return fmt.Errorf("while starting user roster: %w", err)
			}
			defer roster.Stop()

			debugServer := &http.Server{
				Addr:    debugListen,
				Handler: newDebugMux(roster),

				ReadTimeout:    30 * time.Second,
				WriteTimeout:   30 * time.Second,
				MaxHeaderBytes: 1 << 20,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- debugServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("debug server died: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := debugServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("while shutting down debug server: %w", err)
			}
			return nil
		})
	},
}

func init() {
	cmdServe.Flags().StringVar(&debugListen, "debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
}
