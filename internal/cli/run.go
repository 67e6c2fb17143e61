package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgescribe/edgescribe/internal/config"
	"github.com/edgescribe/edgescribe/internal/output"
	"github.com/edgescribe/edgescribe/internal/pipeline"
	"github.com/edgescribe/edgescribe/internal/server"
)

func newRunCmd(cfgFn func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Record a meeting until interrupted, then print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			ctx := cmd.Context()

			coord, err := pipeline.NewSession(cfg, slog.Default())
			if err != nil {
				return err
			}
			if err := coord.Start(ctx); err != nil {
				return err
			}

			var httpServer *http.Server
			var srv *server.Server
			if cfg.HTTPAddr != "" {
				srv = server.New(coord)
				httpServer = &http.Server{
					Addr:         cfg.HTTPAddr,
					Handler:      srv.Handler(),
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 10 * time.Second,
				}
				go func() {
					slog.Info("status server starting", "addr", cfg.HTTPAddr)
					if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
						slog.Error("http server error", "error", err)
					}
				}()
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Recording. Press Ctrl+C to stop.")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()

		wait:
			for {
				select {
				case <-sigCh:
					break wait
				case <-ticker.C:
					printStatusLine(cmd, coord.Status())
				}
			}
			fmt.Fprintln(cmd.OutOrStdout())

			rec, err := coord.Stop(ctx)
			if err != nil {
				return err
			}

			if httpServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
					slog.Error("http shutdown error", "error", serr)
				}
				srv.Close()
			}

			output.Render(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func printStatusLine(cmd *cobra.Command, s pipeline.Status) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"\r%-13s segments: %d  words: %d  queue: %d   ",
		s.Phase, s.SegmentsProcessed, s.WordsTranscribed, s.QueueDepth)
}
