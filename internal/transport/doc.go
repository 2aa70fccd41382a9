// Package transport owns the point-to-point request/reply lane.
//
// Ownership boundary:
// - tcp:// endpoint addressing
// - send-then-receive alternation per channel
// - the receive-timeout signal and channel poisoning
package transport
