package transport

import (
	"time"

	"github.com/rawsock-io/rawsock-go/pkg/log"
)

// DefaultMonitorInterval is the default probe interval.
const DefaultMonitorInterval = 1 * time.Second

// MonitorConfig configures the active disconnection monitor. The monitor is
// an explicit opt-out: it runs by default but correctness never depends on
// it, since passive detection through I/O failures always remains.
type MonitorConfig struct {
	// Disabled turns the per-connection monitor off entirely.
	Disabled bool

	// Interval between probes (default 1s).
	Interval time.Duration
}

// probeVerdict is the outcome of one socket probe.
type probeVerdict uint8

const (
	// probeAlive: the socket is writable and error-free, peer not closed.
	probeAlive probeVerdict = iota

	// probeClosed: the peer performed an orderly half-close.
	probeClosed

	// probeError: the socket carries an error condition.
	probeError

	// probeUnsupported: the platform cannot peek this socket; the monitor
	// stands down and passive detection alone applies.
	probeUnsupported
)

func (v probeVerdict) String() string {
	switch v {
	case probeAlive:
		return "ALIVE"
	case probeClosed:
		return "CLOSED"
	case probeError:
		return "ERROR"
	case probeUnsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// monitorConn probes the connection every interval until it closes or a
// dead peer is detected. A zero-length peek on an otherwise healthy socket
// means the peer half-closed; the verdict funnels into the same
// markDisconnected path passive detection uses, so whichever mechanism
// notices first wins and the other becomes a no-op.
//
// Run as a goroutine, one per monitored connection.
func monitorConn(c *Conn, cfg MonitorConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
		}

		switch v := probeSocket(c.raw); v {
		case probeAlive:
		case probeUnsupported:
			return
		case probeClosed:
			c.logProbe(v)
			c.markDisconnected(ReasonNormal)
			return
		case probeError:
			c.logProbe(v)
			c.markDisconnected(ReasonTimeout)
			return
		}
	}
}

func (c *Conn) logProbe(v probeVerdict) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Category:     log.CategoryMonitor,
		RemoteAddr:   c.remoteAddr.String(),
		Probe:        &log.ProbeEvent{Verdict: v.String()},
	})
}
