package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"

	"github.com/gokadzev/dlcount/pkg/domain/types"
)

var errEmptyListing = errors.New("response body is not a releases listing")

const (
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
)

// Clock returns the current time
type Clock func() time.Time

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper. Non-positive durations return immediately.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitGuard retries a request after waiting out an exhausted rate limit.
// It is either proceeding (the call runs) or waiting (sleeping until reset).
type RateLimitGuard struct {
	maxRetries   int // 0 retries forever
	fallbackWait time.Duration
	now          Clock
	sleep        Sleeper
	logger       *slog.Logger
}

// NewRateLimitGuard creates a guard. A nil clock or sleeper falls back to the real ones.
func NewRateLimitGuard(maxRetries int, fallbackWait time.Duration, now Clock, sleep Sleeper, logger *slog.Logger) *RateLimitGuard {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = SleepContext
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RateLimitGuard{
		maxRetries:   maxRetries,
		fallbackWait: fallbackWait,
		now:          now,
		sleep:        sleep,
		logger:       logger,
	}
}

// Do runs call until it succeeds, fails with a non rate limit error, or the
// retry budget is spent. call must issue the identical request every time.
func (g *RateLimitGuard) Do(ctx context.Context, call func(ctx context.Context) error) error {
	for retries := 0; ; retries++ {
		err := call(ctx)
		if err == nil {
			return nil
		}

		wait, ok := g.waitFor(err)
		if !ok {
			return classify(err)
		}

		if g.maxRetries > 0 && retries >= g.maxRetries {
			return goerr.Wrap(markAs(types.ErrRateLimited, err), "giving up on rate limited request",
				goerr.V("retries", retries),
				goerr.V("max_retries", g.maxRetries),
			)
		}

		g.logger.Warn("Rate limit exceeded, waiting for reset",
			"wait", wait.String(),
			"retry", retries+1,
		)

		if err := g.sleep(ctx, wait); err != nil {
			return goerr.Wrap(err, "interrupted while waiting for rate limit reset")
		}
	}
}

// waitFor reports how long to wait before retrying err, and whether err is
// retryable at all.
func (g *RateLimitGuard) waitFor(err error) (time.Duration, bool) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		if rateErr.Rate.Reset.IsZero() {
			return g.fallbackWait, true
		}
		return g.untilReset(rateErr.Rate.Reset.Time), true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if d := abuseErr.GetRetryAfter(); d > 0 {
			return d, true
		}
		return 0, false
	}

	var respErr *github.ErrorResponse
	if !errors.As(err, &respErr) || respErr.Response == nil || respErr.Response.StatusCode != http.StatusForbidden {
		return 0, false
	}

	// go-github only recognises a literal "0"; anything else reaching here
	// is either a numeric remaining count or a malformed header.
	remaining, convErr := strconv.ParseInt(respErr.Response.Header.Get(headerRateRemaining), 10, 64)
	if convErr != nil {
		return g.fallbackWait, true
	}
	if remaining != 0 {
		return 0, false
	}

	reset, convErr := strconv.ParseInt(respErr.Response.Header.Get(headerRateReset), 10, 64)
	if convErr != nil || reset == 0 {
		return g.fallbackWait, true
	}
	return g.untilReset(time.Unix(reset, 0)), true
}

func (g *RateLimitGuard) untilReset(reset time.Time) time.Duration {
	d := reset.Sub(g.now())
	if d < 0 {
		return 0
	}
	return d
}

// classify maps a terminal error to its domain kind
func classify(err error) error {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return goerr.Wrap(markAs(types.ErrHTTPStatus, err), "releases request failed",
			goerr.V("status", respErr.Response.StatusCode),
		)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return goerr.Wrap(markAs(types.ErrHTTPStatus, err), "secondary rate limit without retry hint")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return goerr.Wrap(markAs(types.ErrDecode, err), "releases response is not a valid listing")
	}

	return goerr.Wrap(err, "releases request failed")
}

// markAs attaches a sentinel kind to err while keeping err in the chain
func markAs(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}
