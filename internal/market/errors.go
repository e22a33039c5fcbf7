package market

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired means the server rejected our bearer token. The
	// client has already announced it on the bus; callers should stop
	// retrying until re-auth.
	ErrSessionExpired = errors.New("market: session expired")

	// ErrNotFound is the soft miss: the resource is gone or was never
	// there, not a transport failure.
	ErrNotFound = errors.New("market: not found")
)

// APIError carries a non-auth, non-404 HTTP failure.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("market: http %d", e.Status)
	}
	return fmt.Sprintf("market: http %d: %s", e.Status, e.Body)
}
