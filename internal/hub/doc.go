// Package hub provides the client for the session-authenticated
// home-automation hub API.
//
// The hub issues opaque session tokens via POST {prefix}/login and
// expects the token in the ZWAYSession header on every other request.
// Sessions expire server-side at the hub's discretion; the client
// renews transparently, retrying a rejected request exactly once after
// re-authenticating. Callers only ever see ErrAuth or ErrTransport,
// never the token itself.
package hub
