package relayer

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned when builder credentials are incomplete.
	ErrMissingCredentials = errors.New("builder relayer credentials are not configured")

	// ErrNoTransactionHash is returned when the relayer accepts a submission
	// without reporting a transaction hash.
	ErrNoTransactionHash = errors.New("relayer returned no transaction hash")
)

// APIError is a non-2xx response from the relayer.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relayer %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}
