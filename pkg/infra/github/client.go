package github

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"

	"github.com/gokadzev/dlcount/pkg/domain/model"
	"github.com/gokadzev/dlcount/pkg/domain/types"
)

// DefaultBaseURL is the public GitHub REST API endpoint
const DefaultBaseURL = "https://api.github.com/"

// config holds internal client configuration
type config struct {
	baseURL      string
	perPage      int
	timeout      time.Duration
	maxRetries   int
	fallbackWait time.Duration
	now          Clock
	sleep        Sleeper
	logger       *slog.Logger
}

// Option is a functional option for Client configuration
type Option func(*config)

// WithBaseURL sets the API base URL. It must be absolute.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithPerPage sets the page size requested from the API
func WithPerPage(n int) Option {
	return func(c *config) {
		c.perPage = n
	}
}

// WithTimeout sets the HTTP client timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how many times a rate limited request is retried. Zero retries forever.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithFallbackWait sets the wait used when rate limit headers are missing or malformed
func WithFallbackWait(d time.Duration) Option {
	return func(c *config) {
		c.fallbackWait = d
	}
}

// WithClock overrides the clock used to compute rate limit waits
func WithClock(now Clock) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithSleeper overrides how the client waits for a rate limit reset
func WithSleeper(sleep Sleeper) Option {
	return func(c *config) {
		c.sleep = sleep
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Client lists the releases of a single repository, anonymously
type Client struct {
	githubClient *github.Client
	owner        string
	repo         string
	perPage      int
	guard        *RateLimitGuard
	logger       *slog.Logger
}

// NewClient creates a releases client for owner/repo
func NewClient(owner, repo string, opts ...Option) (*Client, error) {
	cfg := &config{
		baseURL:      DefaultBaseURL,
		perPage:      100,
		timeout:      30 * time.Second,
		maxRetries:   5,
		fallbackWait: time.Minute,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	if owner == "" || repo == "" {
		return nil, goerr.New("owner and repo are required", goerr.V("owner", owner), goerr.V("repo", repo))
	}

	baseURL, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse base URL", goerr.V("base_url", cfg.baseURL))
	}
	if !baseURL.IsAbs() || baseURL.Host == "" {
		return nil, goerr.New("base URL must be absolute", goerr.V("base_url", cfg.baseURL))
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}

	githubClient := github.NewClient(&http.Client{Timeout: cfg.timeout})
	githubClient.BaseURL = baseURL
	githubClient.UserAgent = "dlcount/" + types.Version

	return &Client{
		githubClient: githubClient,
		owner:        owner,
		repo:         repo,
		perPage:      cfg.perPage,
		guard:        NewRateLimitGuard(cfg.maxRetries, cfg.fallbackWait, cfg.now, cfg.sleep, cfg.logger),
		logger:       cfg.logger,
	}, nil
}

// ListReleasesPage fetches one page of releases. The returned NextPage comes
// from the rel="next" entry of the Link header and is 0 on the last page.
func (c *Client) ListReleasesPage(ctx context.Context, page int) (*model.ReleasePage, error) {
	// Every retry after a reset must reach the server instead of being
	// short-circuited by go-github's remembered rate state.
	ctx = context.WithValue(ctx, github.BypassRateLimitCheck, true)

	opts := &github.ListOptions{
		Page:    page,
		PerPage: c.perPage,
	}

	var (
		releases []*github.RepositoryRelease
		resp     *github.Response
	)
	err := c.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		releases, resp, err = c.githubClient.Repositories.ListReleases(ctx, c.owner, c.repo, opts)
		return err
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list releases",
			goerr.V("owner", c.owner),
			goerr.V("repo", c.repo),
			goerr.V("page", page),
		)
	}

	// go-github reports an empty body as success; a valid listing is at least "[]"
	if releases == nil {
		return nil, goerr.Wrap(markAs(types.ErrDecode, errEmptyListing), "failed to list releases",
			goerr.V("owner", c.owner),
			goerr.V("repo", c.repo),
			goerr.V("page", page),
		)
	}

	result := &model.ReleasePage{
		Releases: toReleases(releases),
		NextPage: resp.NextPage,
	}

	c.logger.Debug("Fetched releases page",
		"owner", c.owner,
		"repo", c.repo,
		"page", page,
		"release_count", len(result.Releases),
		"next_page", result.NextPage,
	)

	return result, nil
}

func toReleases(releases []*github.RepositoryRelease) []model.Release {
	result := make([]model.Release, 0, len(releases))
	for _, r := range releases {
		release := model.Release{
			TagName: r.GetTagName(),
			Assets:  make([]model.Asset, 0, len(r.Assets)),
		}
		for _, a := range r.Assets {
			release.Assets = append(release.Assets, model.Asset{
				Name:          a.GetName(),
				DownloadCount: int64(a.GetDownloadCount()),
			})
		}
		result = append(result, release)
	}
	return result
}
