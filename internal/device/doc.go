// Package device holds the endpoint registry and routing classification.
//
// The relay serves two kinds of endpoints: the IR-controlled built-ins
// (the television and the streaming device) and everything the hub
// reports. Classify decides which path an inbound command takes; List
// merges the static set with live hub discovery, degrading to the
// static set alone when the hub is unreachable.
package device
