// Package station owns the server half of the request lane.
//
// Ownership boundary:
// - the instrument registry and the built-in virtual instruments
// - request dispatch into response envelopes (failures answered in-band)
// - the TCP accept loop and the read-only HTTP monitor
//
// Lifecycle order:
// - register -> start -> shutdown
//
// Dispatch never closes a connection over a bad request.
package station
