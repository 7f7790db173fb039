package types

import "errors"

var (
	// ErrHTTPStatus is a non-2xx response that is not a recoverable rate limit
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrDecode is a response body that could not be decoded as a releases listing
	ErrDecode = errors.New("failed to decode response body")

	// ErrRateLimited is returned once the configured retry budget is spent
	ErrRateLimited = errors.New("rate limit retries exhausted")
)
