package client

import (
	"time"

	"github.com/eapache/queue"
)

// Ask outcomes recorded per exchange.
const (
	OutcomeOK           = "ok"
	OutcomeText         = "text"
	OutcomeWarning      = "warning"
	OutcomeException    = "exception"
	OutcomeUnrecognized = "unrecognized"
	OutcomeTimeout      = "timeout"
	OutcomeTransport    = "transport"
	OutcomeProtocol     = "protocol"
)

// Exchange is one completed Ask round trip, kept for diagnostics.
type Exchange struct {
	Operation string
	Outcome   string
	Start     time.Time
	Duration  time.Duration
}

const defaultExchangeCapacity = 32

// exchangeRing keeps the most recent exchanges, oldest evicted first. The
// owning session serializes access.
type exchangeRing struct {
	capacity int
	q        *queue.Queue
}

func newExchangeRing(capacity int) *exchangeRing {
	if capacity <= 0 {
		capacity = defaultExchangeCapacity
	}
	return &exchangeRing{capacity: capacity, q: queue.New()}
}

func (r *exchangeRing) add(e Exchange) {
	r.q.Add(e)
	for r.q.Length() > r.capacity {
		r.q.Remove()
	}
}

func (r *exchangeRing) snapshot() []Exchange {
	out := make([]Exchange, 0, r.q.Length())
	for i := 0; i < r.q.Length(); i++ {
		out = append(out, r.q.Get(i).(Exchange))
	}
	return out
}
