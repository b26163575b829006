// Package emitter drives the stateless infrared command emitter.
//
// The emitter exposes POST /receivers/{endpointId}/command and fires
// one IR key press per request. Client handles single presses;
// Repeater layers pacing, count clamping, and detached execution on
// top for multi-press sequences such as stepped volume changes.
package emitter
