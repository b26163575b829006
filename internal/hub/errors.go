package hub

import "errors"

// Domain-specific errors for hub operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuth is returned when the hub rejects credentials, the login
	// response carries no session token, or a request is still rejected
	// after one re-authentication attempt.
	ErrAuth = errors.New("hub: authentication failed")

	// ErrTransport is returned when the hub is unreachable or responds
	// with an unexpected status. Transport errors are never retried.
	ErrTransport = errors.New("hub: transport failure")
)
