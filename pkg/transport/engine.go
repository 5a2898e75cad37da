package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rawsock-io/rawsock-go/pkg/log"
)

// The I/O engine implements one core algorithm shared by all eight public
// operation shapes: acquire the direction lock, move bytes in fixed-size
// chunks with per-chunk counter updates, release the lock in every path.
// A timeout bound races the transfer against a timer; a cooperative shape
// additionally lets the caller's context interrupt a blocked syscall.

// transferFn runs the chunked transfer under an already-held direction lock.
type transferFn func(ctx context.Context) (Status, error)

type opOutcome struct {
	status Status
	err    error
}

// send is the write-side entry point for all four shapes.
func (c *Conn) send(ctx context.Context, data []byte, timeout time.Duration, cooperative bool) WriteResult {
	if len(data) == 0 {
		return WriteResult{Status: StatusInvalid, Err: ErrEmptyPayload}
	}
	if !c.connected.Load() {
		return WriteResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}

	moved := new(atomic.Int64)
	st, err := c.runTransfer(ctx, c.writeLock, log.DirectionOut, timeout, cooperative,
		func(wctx context.Context) (Status, error) {
			return c.writeChunks(wctx, data, moved)
		})

	res := WriteResult{Status: st, BytesWritten: moved.Load()}
	if st != StatusSuccess {
		res.Err = err
	}
	c.logIO(log.DirectionOut, int64(len(data)), res.BytesWritten, st)
	return res
}

// receive is the read-side entry point for all four shapes. It reads
// exactly count bytes or fails; a zero-byte chunk is an orderly remote
// shutdown, never a silent short read.
func (c *Conn) receive(ctx context.Context, count int, timeout time.Duration, cooperative bool) ReadResult {
	if count <= 0 {
		return ReadResult{Status: StatusInvalid, Err: ErrInvalidCount}
	}
	if !c.connected.Load() {
		return ReadResult{Status: StatusDisconnected, Err: ErrNotConnected}
	}

	buf := make([]byte, count)
	moved := new(atomic.Int64)
	st, err := c.runTransfer(ctx, c.readLock, log.DirectionIn, timeout, cooperative,
		func(wctx context.Context) (Status, error) {
			return c.readChunks(wctx, buf, moved)
		})

	res := ReadResult{Status: st, BytesRead: moved.Load()}
	if st == StatusSuccess {
		res.Data = buf
	} else {
		// An abandoned transfer may still be filling buf; never hand out
		// a partial payload. The byte count stays honest regardless.
		res.Err = err
	}
	c.logIO(log.DirectionIn, int64(count), res.BytesRead, st)
	return res
}

// runTransfer acquires the direction lock and executes fn according to the
// operation shape:
//
//   - no timeout, not cooperative: fn runs inline, blocking until done.
//   - otherwise fn runs as an independently cancellable unit of work and is
//     raced against the timer and (for cooperative shapes) the caller's
//     context. If the timer wins a blocking-shape race, fn is ABANDONED: it
//     keeps running and keeps the lock until it completes on its own. A
//     cooperative loser is cancelled and its blocked syscall woken with an
//     immediate deadline.
//
// The lock is released by whoever finishes fn, in every exit path.
func (c *Conn) runTransfer(ctx context.Context, l *dirLock, dir log.Direction, timeout time.Duration, cooperative bool, fn transferFn) (Status, error) {
	if st, err := l.acquire(ctx, c.closeCh); st != StatusSuccess {
		return st, err
	}

	// A wake-up deadline from a raced-out predecessor may still be set if
	// that worker finished between the canceller's drain and its wake. The
	// lock guarantees the predecessor is gone, so clearing is safe.
	c.clearDeadline(dir)

	if timeout <= 0 && !cooperative {
		st, err := fn(ctx)
		l.release()
		return st, err
	}

	// The blocking-with-timeout shape must not observe cancellation at all
	// once abandoned, so its unit of work runs on a background context.
	workerCtx := context.Background()
	var cancel context.CancelFunc
	if cooperative {
		workerCtx, cancel = context.WithCancel(ctx)
	}

	done := make(chan opOutcome, 1)
	go func() {
		st, err := fn(workerCtx)
		if workerCtx.Err() != nil {
			// The cancelling side broke the syscall with an immediate
			// deadline; clear it so the connection stays usable after a
			// plain cooperative cancellation.
			c.clearDeadline(dir)
		}
		l.release()
		done <- opOutcome{st, err}
	}()

	var timerC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timerC = t.C
	}
	var ctxDone <-chan struct{}
	if cooperative {
		ctxDone = ctx.Done()
	}

	select {
	case out := <-done:
		if cancel != nil {
			cancel()
		}
		return out.status, out.err
	case <-timerC:
		if cancel != nil {
			cancel()
			// done and the timer can become ready in the same select
			// wakeup. If the worker already finished, its result wins and
			// no syscall is left to wake; setting a deadline here would
			// poison the next operation instead. A Canceled outcome means
			// the cancel above interrupted the worker, which to the caller
			// is the timeout.
			select {
			case out := <-done:
				if out.status == StatusCanceled {
					return StatusTimeout, ErrTimeout
				}
				return out.status, out.err
			default:
			}
			c.wakeBlocked(dir)
		}
		return StatusTimeout, ErrTimeout
	case <-ctxDone:
		cancel()
		select {
		case out := <-done:
			return out.status, out.err
		default:
		}
		c.wakeBlocked(dir)
		return StatusCanceled, ctx.Err()
	}
}

// writeChunks moves data to the wire in bufferSize chunks, updating the
// byte counters after every chunk so partial progress is never lost.
func (c *Conn) writeChunks(ctx context.Context, data []byte, moved *atomic.Int64) (Status, error) {
	w := c.stream()
	for off := 0; off < len(data); {
		if st, err := c.checkInterrupt(ctx); st != StatusSuccess {
			return st, err
		}

		end := min(off+c.bufferSize, len(data))
		n, err := w.Write(data[off:end])
		if n > 0 {
			off += n
			moved.Add(int64(n))
			c.recordSent(int64(n))
		}
		if err != nil {
			if ctx.Err() != nil && isDeadlineError(err) {
				return StatusCanceled, ctx.Err()
			}
			c.markDisconnected(ReasonNormal)
			return StatusDisconnected, err
		}
	}
	return StatusSuccess, nil
}

// readChunks fills buf from the wire in bufferSize chunks.
func (c *Conn) readChunks(ctx context.Context, buf []byte, moved *atomic.Int64) (Status, error) {
	r := c.stream()
	for off := 0; off < len(buf); {
		if st, err := c.checkInterrupt(ctx); st != StatusSuccess {
			return st, err
		}

		end := min(off+c.bufferSize, len(buf))
		n, err := r.Read(buf[off:end])
		if n > 0 {
			off += n
			moved.Add(int64(n))
			c.recordReceived(int64(n))
		}
		if err != nil {
			if ctx.Err() != nil && isDeadlineError(err) {
				return StatusCanceled, ctx.Err()
			}
			c.markDisconnected(ReasonNormal)
			if errors.Is(err, io.EOF) {
				return StatusDisconnected, io.EOF
			}
			return StatusDisconnected, err
		}
		if n == 0 {
			// Zero-byte result without an error: orderly remote shutdown.
			c.markDisconnected(ReasonNormal)
			return StatusDisconnected, io.EOF
		}
	}
	return StatusSuccess, nil
}

// checkInterrupt observes the caller's context and the connection's cancel
// signal between chunks.
func (c *Conn) checkInterrupt(ctx context.Context) (Status, error) {
	select {
	case <-ctx.Done():
		return StatusCanceled, ctx.Err()
	case <-c.closeCh:
		return StatusCanceled, ErrConnectionClosed
	default:
		return StatusSuccess, nil
	}
}

// wakeBlocked breaks a syscall blocked in the given direction by setting an
// immediate deadline on the stream. Only cooperative cancellation uses it;
// abandoned blocking transfers are left to finish on their own.
func (c *Conn) wakeBlocked(dir log.Direction) {
	d := c.deadliner()
	if dir == log.DirectionOut {
		_ = d.SetWriteDeadline(time.Now())
	} else {
		_ = d.SetReadDeadline(time.Now())
	}
}

func (c *Conn) clearDeadline(dir log.Direction) {
	d := c.deadliner()
	if dir == log.DirectionOut {
		_ = d.SetWriteDeadline(time.Time{})
	} else {
		_ = d.SetReadDeadline(time.Time{})
	}
}

// isDeadlineError reports whether err is the wake-up from an immediate
// deadline rather than a real transport fault.
func isDeadlineError(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
