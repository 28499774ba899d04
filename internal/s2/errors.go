package s2

import (
	"errors"
	"fmt"

	"github.com/lukeslp/reference-renamer/internal/source"
)

// Errors returned by the client. ErrNotFound and ErrRateLimited wrap the
// source sentinels so the guard can classify them.
var (
	// ErrNotFound indicates S2 has no paper for the identifier or title.
	ErrNotFound = fmt.Errorf("semantic scholar: %w", source.ErrNotFound)

	// ErrRateLimited indicates a 429 answer.
	ErrRateLimited = fmt.Errorf("semantic scholar: %w", source.ErrRateLimited)

	// ErrAuthError indicates a rejected API key.
	ErrAuthError = errors.New("semantic scholar: authentication error")

	// ErrNetworkError indicates a connectivity problem.
	ErrNetworkError = errors.New("semantic scholar: network error")

	// ErrInvalidResponse indicates a body we could not decode.
	ErrInvalidResponse = errors.New("semantic scholar: invalid response")
)

// APIError is a non-success HTTP answer not covered by a sentinel.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("semantic scholar API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err means the paper does not exist in S2.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited reports whether err is a rate-limit answer.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
