package device

import "errors"

// ErrUnsupported is returned when no handler exists for the requested
// endpoint/resource pair (e.g. a channel resource on the streaming
// device, which has no channel handler yet).
var ErrUnsupported = errors.New("device: unsupported operation")
