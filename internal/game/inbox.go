package game

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Envelope is a command addressed to an avatar by name.
type Envelope struct {
	Avatar     string
	Cmd        Command
	ReceivedAt time.Time
}

// Inbox buffers client commands between the network goroutines and the
// tick. Enqueue never blocks; commands are consumed only at the start of a
// tick, never mid-tick.
type Inbox struct {
	commands chan Envelope
	log      *zap.Logger

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// NewInbox creates an inbox holding up to size commands.
func NewInbox(size int, log *zap.Logger) *Inbox {
	if size <= 0 {
		size = 4096
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Inbox{commands: make(chan Envelope, size), log: log}
}

// Enqueue adds a command (non-blocking).
// Returns false if the inbox is full and the command was dropped.
func (q *Inbox) Enqueue(env Envelope) bool {
	env.ReceivedAt = time.Now()
	select {
	case q.commands <- env:
		q.enqueued.Add(1)
		return true
	default:
		// full - drop, a client resends intent with its next input
		if q.dropped.Add(1)%100 == 1 {
			q.log.Warn("inbox full, command dropped",
				zap.String("avatar", env.Avatar),
				zap.Uint64("dropped", q.dropped.Load()))
		}
		return false
	}
}

// Drain hands every command queued at call time to fn, in arrival order.
// Commands enqueued while draining wait for the next tick.
func (q *Inbox) Drain(fn func(Envelope)) int {
	n := len(q.commands)
	for i := 0; i < n; i++ {
		env := <-q.commands
		q.updateAvgWaitTime(time.Since(env.ReceivedAt))
		fn(env)
		q.processed.Add(1)
	}
	return n
}

// updateAvgWaitTime updates exponential moving average
func (q *Inbox) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// EMA with alpha = 0.1 (smooth over ~10 samples)
	q.avgWaitTime.Store((current*9 + waitTime.Nanoseconds()) / 10)
}

// Stats returns current inbox statistics
func (q *Inbox) Stats() InboxStats {
	return InboxStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Dropped:        q.dropped.Load(),
		Pending:        uint64(len(q.commands)),
		BufferSize:     uint64(cap(q.commands)),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(len(q.commands)) / float64(cap(q.commands)) * 100,
	}
}

// InboxStats holds inbox metrics
type InboxStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Dropped        uint64  `json:"dropped"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
