package poeapi

import (
	"errors"
	"fmt"
)

var (
	// ErrSendFailed wraps a network-level failure sending the request.
	ErrSendFailed = errors.New("poeapi: request send failed")
	// ErrDeserialize wraps a JSON decode failure on an otherwise-OK response.
	ErrDeserialize = errors.New("poeapi: failed decoding response body")
	// ErrAuthRequired is returned when getPublicStashes is called with no
	// access token, or the upstream API rejects the current token.
	ErrAuthRequired = errors.New("poeapi: not authorized")
	// ErrRateLimiterRule wraps a malformed rate-limit header.
	ErrRateLimiterRule = errors.New("poeapi: failed processing rate limiter rules")
	// ErrUnknown is a catch-all internal error. Client does not return it:
	// Limiter.Check reports store failures as a Retry decision, not an error.
	ErrUnknown = errors.New("poeapi: unknown internal error")
)

// HTTPStatusError carries a non-OK, non-401 HTTP status code.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("poeapi: unexpected HTTP status %d", e.StatusCode)
}

func httpStatusError(code int) error {
	return &HTTPStatusError{StatusCode: code}
}
