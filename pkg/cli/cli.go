package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v3"

	"github.com/gokadzev/dlcount/pkg/cli/config"
	"github.com/gokadzev/dlcount/pkg/domain/types"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var (
		loggerCfg config.Logger
		sentryCfg config.Sentry
		countCfg  countConfig
		logger    *slog.Logger
		flush     = func() {}
	)

	flags := append(loggerCfg.Flags(), sentryCfg.Flags()...)
	flags = append(flags, countCfg.Flags()...)

	app := &cli.Command{
		Name:    "dlcount",
		Usage:   "Sum GitHub release download counts into a JSON file",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}
			slog.SetDefault(logger)

			flushSentry, err := sentryCfg.Configure()
			if err != nil {
				return nil, err
			}
			flush = flushSentry
			logger.Debug("Configured", slog.Any("sentry", sentryCfg))

			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_, err := runCount(ctx, &countCfg, c.Root().ErrWriter)
			return err
		},
		Commands: []*cli.Command{
			cmdServe(&countCfg),
		},
	}

	err := app.Run(ctx, args)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		if sentryCfg.Enabled() {
			sentry.CaptureException(err)
		}
	}
	flush()

	return err
}

// writerOrDiscard keeps summary output optional for embedders of Run
func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
