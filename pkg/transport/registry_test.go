package transport

import (
	"fmt"
	"net"
	"sync"
	"testing"
)

// pipeConn builds a connection over an in-memory pipe. The returned peer
// end is the remote side of the stream.
func pipeConn(t *testing.T, id string) (*Conn, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	c := newConn(connParams{id: id, raw: local})
	t.Cleanup(func() {
		c.Dispose()
		remote.Close()
	})
	return c, remote
}

func TestRegistryAddLookup(t *testing.T) {
	r := NewRegistry()
	c, _ := pipeConn(t, "conn-1")

	if err := r.Add(c); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	got, ok := r.Lookup("conn-1")
	if !ok || got != c {
		t.Errorf("Lookup returned %v, %v; want the added connection", got, ok)
	}

	if _, ok := r.Lookup("unknown"); ok {
		t.Error("Lookup found a connection that was never added")
	}
}

func TestRegistryDuplicateID(t *testing.T) {
	r := NewRegistry()
	c1, _ := pipeConn(t, "conn-1")
	c2, _ := pipeConn(t, "conn-1")

	if err := r.Add(c1); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := r.Add(c2); err != ErrDuplicateID {
		t.Errorf("second Add returned %v, want ErrDuplicateID", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	c, _ := pipeConn(t, "conn-1")
	if err := r.Add(c); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	removed := r.Remove("conn-1")
	if removed != c {
		t.Fatalf("Remove returned %v, want the registered connection", removed)
	}
	if c.Connected() {
		t.Error("removed connection still reports connected")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after remove, want 0", r.Len())
	}

	// Removing again or removing an unknown id is a no-op.
	if got := r.Remove("conn-1"); got != nil {
		t.Errorf("second Remove returned %v, want nil", got)
	}
	if got := r.Remove("never-added"); got != nil {
		t.Errorf("Remove of unknown id returned %v, want nil", got)
	}
}

// TestRegistryRemoveRace verifies that concurrent removals of the same
// connection produce exactly one winner.
func TestRegistryRemoveRace(t *testing.T) {
	r := NewRegistry()
	c, _ := pipeConn(t, "conn-1")
	if err := r.Add(c); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	const racers = 16
	results := make(chan *Conn, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Remove("conn-1")
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for got := range results {
		if got != nil {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("%d racers won Remove, want exactly 1", winners)
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	conns := make([]*Conn, 3)
	for i := range conns {
		c, _ := pipeConn(t, fmt.Sprintf("conn-%d", i))
		conns[i] = c
		if err := r.Add(c); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	removed := r.clear()
	if len(removed) != 3 {
		t.Fatalf("clear returned %d connections, want 3", len(removed))
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after clear, want 0", r.Len())
	}
	for _, c := range conns {
		if c.Connected() {
			t.Errorf("connection %s still connected after clear", c.ID())
		}
	}
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		c, _ := pipeConn(t, fmt.Sprintf("conn-%d", i))
		if err := r.Add(c); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot returned %d connections, want 3", len(snap))
	}

	// Snapshot is a copy; mutating the registry afterwards must not
	// affect it.
	r.Remove("conn-0")
	if len(snap) != 3 {
		t.Error("snapshot changed after registry mutation")
	}
}
