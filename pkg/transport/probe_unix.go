//go:build unix

package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// probeSocket inspects the raw socket without consuming data: a
// non-blocking MSG_PEEK distinguishes a live peer (EAGAIN or pending
// bytes), an orderly half-close (zero-length result), and a socket error.
// Peeking happens below any TLS layer, so it never disturbs a secure
// session.
func probeSocket(conn net.Conn) probeVerdict {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return probeUnsupported
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return probeError
	}

	verdict := probeAlive
	var buf [1]byte
	cerr := raw.Control(func(fd uintptr) {
		for {
			n, _, rerr := unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
			switch {
			case rerr == unix.EINTR:
				continue
			case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK:
				verdict = probeAlive
			case rerr != nil:
				verdict = probeError
			case n == 0:
				verdict = probeClosed
			default:
				verdict = probeAlive
			}
			return
		}
	})
	if cerr != nil {
		return probeError
	}
	return verdict
}
