package transport

import "context"

// dirLock is a direction lock: a capacity-1 semaphore guarding one direction
// (read or write) of one connection. Unlike a sync.Mutex, a queued acquire
// can be interrupted by the caller's context or by the connection closing,
// so cancellation reaches operations still waiting in line, not only the
// one in flight. Fairness is not promised, only mutual exclusion.
type dirLock struct {
	sem chan struct{}
}

func newDirLock() *dirLock {
	return &dirLock{sem: make(chan struct{}, 1)}
}

// acquire takes the lock. It returns StatusSuccess on acquisition, or
// StatusCanceled if the caller's context or the connection's cancel signal
// fired first.
func (l *dirLock) acquire(ctx context.Context, closed <-chan struct{}) (Status, error) {
	select {
	case l.sem <- struct{}{}:
		return StatusSuccess, nil
	default:
	}

	select {
	case l.sem <- struct{}{}:
		return StatusSuccess, nil
	case <-ctx.Done():
		return StatusCanceled, ctx.Err()
	case <-closed:
		return StatusCanceled, ErrConnectionClosed
	}
}

// tryAcquire takes the lock only if it is free.
func (l *dirLock) tryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// release frees the lock. Must only be called by the current holder.
func (l *dirLock) release() {
	<-l.sem
}
