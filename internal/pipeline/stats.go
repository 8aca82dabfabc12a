package pipeline

import "sync/atomic"

// Counters collects pipeline counts updated from the workers.
type Counters struct {
	received atomic.Uint64
	stamped  atomic.Uint64
	observed atomic.Uint64
	dropped  atomic.Uint64
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	Received uint64 `json:"received"`
	Stamped  uint64 `json:"stamped"`
	Observed uint64 `json:"observed"`
	Dropped  uint64 `json:"dropped"`
}

func (c *Counters) snapshot() Stats {
	return Stats{
		Received: c.received.Load(),
		Stamped:  c.stamped.Load(),
		Observed: c.observed.Load(),
		Dropped:  c.dropped.Load(),
	}
}
