package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/gokadzev/dlcount/pkg/cli/config"
	controller "github.com/gokadzev/dlcount/pkg/controller/http"
	"github.com/gokadzev/dlcount/pkg/utils/async"
)

func cmdServe(countCfg *countConfig) *cli.Command {
	var serverCfg config.Server

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Refresh the download count periodically and serve it over HTTP",
		Flags:   serverCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := slog.Default()

			if serverCfg.RefreshInterval <= 0 {
				return goerr.New("refresh interval must be positive", goerr.V("interval", serverCfg.RefreshInterval))
			}

			logger.Info("Starting dlcount server",
				slog.String("addr", serverCfg.Addr),
				slog.Duration("refresh_interval", serverCfg.RefreshInterval),
			)

			state := &controller.RefreshState{}
			server := controller.NewServer(countCfg.Output.Path, state,
				controller.WithAddr(serverCfg.Addr),
				controller.WithLogger(logger),
			)

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Cancelled on shutdown so a refresh waiting on a rate limit stops
			refreshCtx, cancelRefresh := context.WithCancel(ctx)
			defer cancelRefresh()

			single := async.NewSingle(logger)
			refresh := func() {
				started := single.Dispatch(refreshCtx, func(ctx context.Context) error {
					uc, err := countCfg.newUseCase(logger.With("run_id", uuid.NewString()))
					if err != nil {
						return err
					}
					if _, err := uc.Run(ctx); err != nil {
						return err
					}
					state.MarkRefreshed(time.Now())
					return nil
				})
				if !started {
					logger.Warn("Previous refresh still running, skipping")
				}
			}

			refresh()
			ticker := time.NewTicker(serverCfg.RefreshInterval)
			defer ticker.Stop()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

		loop:
			for {
				select {
				case <-ticker.C:
					refresh()
				case <-ctx.Done():
					logger.Info("Context cancelled, shutting down...")
					break loop
				case sig := <-sigChan:
					logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
					break loop
				}
			}

			cancelRefresh()
			single.Wait()

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
