//go:build !unix

package transport

import "net"

// probeSocket has no non-unix implementation; the monitor stands down and
// disconnection detection relies on I/O failures alone.
func probeSocket(net.Conn) probeVerdict {
	return probeUnsupported
}
