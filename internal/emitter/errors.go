package emitter

import "errors"

// ErrTransport is returned when the IR emitter is unreachable or
// responds with a non-success status. The emitter is stateless, so
// there is nothing to renew; failures surface directly.
var ErrTransport = errors.New("emitter: transport failure")
