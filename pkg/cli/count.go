package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/gokadzev/dlcount/pkg/cli/config"
	"github.com/gokadzev/dlcount/pkg/domain/model"
	"github.com/gokadzev/dlcount/pkg/usecase"
)

// countConfig groups the settings of the download count pipeline
type countConfig struct {
	GitHub    config.GitHub
	RateLimit config.RateLimit
	Output    config.Output
}

func (c *countConfig) Flags() []cli.Flag {
	flags := c.GitHub.Flags()
	flags = append(flags, c.RateLimit.Flags()...)
	return append(flags, c.Output.Flags()...)
}

// newUseCase wires the releases client into the pipeline for one run
func (c *countConfig) newUseCase(logger *slog.Logger) (*usecase.DownloadCount, error) {
	client, err := c.GitHub.NewClient(c.RateLimit, logger)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub client")
	}
	return usecase.NewDownloadCount(client, c.Output.Path, usecase.WithLogger(logger)), nil
}

func runCount(ctx context.Context, cfg *countConfig, w io.Writer) (*model.Result, error) {
	logger := slog.Default().With("run_id", uuid.NewString())

	logger.Info("Counting release downloads",
		"owner", cfg.GitHub.Owner,
		"repo", cfg.GitHub.Repo,
		"output", cfg.Output.Path,
	)

	uc, err := cfg.newUseCase(logger)
	if err != nil {
		return nil, err
	}

	result, err := uc.Run(ctx)
	if err != nil {
		return nil, err
	}

	summary := color.New(color.FgGreen, color.Bold)
	_, _ = summary.Fprintf(writerOrDiscard(w), "%s/%s: %d downloads\n",
		cfg.GitHub.Owner, cfg.GitHub.Repo, result.DownloadsCount)

	return result, nil
}
