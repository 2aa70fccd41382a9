// Package protocol owns the request/reply wire contract.
//
// Ownership boundary:
// - frame/ fixed-header primitives
// - request and response envelopes and their JSON encoding
// - the server error one-of, decoded once into ErrorDescriptor
package protocol
