package transport

import (
	"net"
	"sync"
)

// ConnectedEvent is delivered when a connection becomes ready (after the
// TLS upgrade, when configured).
type ConnectedEvent struct {
	ID         string
	LocalAddr  net.Addr
	RemoteAddr net.Addr
}

// DisconnectedEvent is delivered when a connection is removed.
type DisconnectedEvent struct {
	ID         string
	RemoteAddr net.Addr
	Reason     DisconnectReason
}

// EventHandler receives connection lifecycle notifications. Handlers are
// invoked synchronously from transport goroutines; long-running work should
// be offloaded so I/O paths are not blocked.
type EventHandler interface {
	OnConnected(ev ConnectedEvent)
	OnDisconnected(ev DisconnectedEvent)
}

// observerList is a subscription set of independent EventHandlers.
type observerList struct {
	mu   sync.RWMutex
	subs map[int]EventHandler
	next int
}

func newObserverList() *observerList {
	return &observerList{subs: make(map[int]EventHandler)}
}

// subscribe registers a handler and returns its cancel function.
func (o *observerList) subscribe(h EventHandler) func() {
	o.mu.Lock()
	id := o.next
	o.next++
	o.subs[id] = h
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *observerList) snapshot() []EventHandler {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]EventHandler, 0, len(o.subs))
	for _, h := range o.subs {
		out = append(out, h)
	}
	return out
}

func (o *observerList) notifyConnected(ev ConnectedEvent) {
	for _, h := range o.snapshot() {
		h.OnConnected(ev)
	}
}

func (o *observerList) notifyDisconnected(ev DisconnectedEvent) {
	for _, h := range o.snapshot() {
		h.OnDisconnected(ev)
	}
}
