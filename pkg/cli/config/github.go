package config

import (
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	githubinfra "github.com/gokadzev/dlcount/pkg/infra/github"
)

// GitHub holds the releases endpoint configuration
type GitHub struct {
	Owner   string
	Repo    string
	BaseURL string
	PerPage int
	Timeout time.Duration
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Repository owner",
			Value:       "gokadzev",
			Destination: &c.Owner,
			Sources:     cli.EnvVars("DLCOUNT_OWNER"),
		},
		&cli.StringFlag{
			Name:        "repo",
			Usage:       "Repository name",
			Value:       "Musify",
			Destination: &c.Repo,
			Sources:     cli.EnvVars("DLCOUNT_REPO"),
		},
		&cli.StringFlag{
			Name:        "api-base-url",
			Usage:       "GitHub REST API base URL",
			Value:       githubinfra.DefaultBaseURL,
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("DLCOUNT_API_BASE_URL"),
		},
		&cli.IntFlag{
			Name:        "per-page",
			Usage:       "Releases requested per page (max 100)",
			Value:       100,
			Destination: &c.PerPage,
			Sources:     cli.EnvVars("DLCOUNT_PER_PAGE"),
		},
		&cli.DurationFlag{
			Name:        "http-timeout",
			Usage:       "Timeout of a single API request, 0 disables it",
			Value:       30 * time.Second,
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("DLCOUNT_HTTP_TIMEOUT"),
		},
	}
}

// RateLimit holds the rate limit retry policy
type RateLimit struct {
	MaxRetries   int
	FallbackWait time.Duration
}

// Flags returns CLI flags for rate limit configuration
func (c *RateLimit) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-retries",
			Usage:       "Retries of a rate limited request, 0 retries until it succeeds",
			Value:       5,
			Destination: &c.MaxRetries,
			Sources:     cli.EnvVars("DLCOUNT_MAX_RETRIES"),
		},
		&cli.DurationFlag{
			Name:        "rate-limit-fallback-wait",
			Usage:       "Wait used when rate limit headers are missing or malformed",
			Value:       time.Minute,
			Destination: &c.FallbackWait,
			Sources:     cli.EnvVars("DLCOUNT_RATE_LIMIT_FALLBACK_WAIT"),
		},
	}
}

// NewClient builds a releases client from the GitHub and rate limit settings
func (c *GitHub) NewClient(rateLimit RateLimit, logger *slog.Logger) (*githubinfra.Client, error) {
	return githubinfra.NewClient(c.Owner, c.Repo,
		githubinfra.WithBaseURL(c.BaseURL),
		githubinfra.WithPerPage(c.PerPage),
		githubinfra.WithTimeout(c.Timeout),
		githubinfra.WithMaxRetries(rateLimit.MaxRetries),
		githubinfra.WithFallbackWait(rateLimit.FallbackWait),
		githubinfra.WithLogger(logger),
	)
}
