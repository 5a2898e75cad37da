package transport

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks transfer counters for a connection or an endpoint.
// All methods are safe for concurrent use.
type Statistics struct {
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64

	mu      sync.Mutex
	started time.Time
}

// NewStatistics creates counters with the start time set to now.
func NewStatistics() *Statistics {
	return &Statistics{started: time.Now()}
}

func (s *Statistics) addSent(n int64)     { s.bytesSent.Add(n) }
func (s *Statistics) addReceived(n int64) { s.bytesReceived.Add(n) }

// BytesSent returns the total bytes written to the wire.
func (s *Statistics) BytesSent() int64 { return s.bytesSent.Load() }

// BytesReceived returns the total bytes read from the wire.
func (s *Statistics) BytesReceived() int64 { return s.bytesReceived.Load() }

// StartedAt returns the time the counters were created or last reset.
func (s *Statistics) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Reset zeroes the counters and restarts the clock. Counters are never
// reset implicitly; only explicit calls or connection re-establishment
// create fresh ones.
func (s *Statistics) Reset() {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	s.bytesSent.Store(0)
	s.bytesReceived.Store(0)
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		BytesSent:     s.bytesSent.Load(),
		BytesReceived: s.bytesReceived.Load(),
		StartedAt:     s.StartedAt(),
	}
}

// StatisticsSnapshot is an immutable view of Statistics.
type StatisticsSnapshot struct {
	BytesSent     int64
	BytesReceived int64
	StartedAt     time.Time
}

// Uptime returns the time elapsed since the counters started.
func (s StatisticsSnapshot) Uptime() time.Duration {
	return time.Since(s.StartedAt)
}
