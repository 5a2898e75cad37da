package transport_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rawsock-io/rawsock-go/pkg/transport"
)

func TestLargeTransferByteConservation(t *testing.T) {
	env := newTestEnv(t, false)
	events := newEventRecorder()

	server := startServer(t, transport.ServerConfig{TLSConfig: env.serverTLS})
	defer server.Subscribe(events)()

	client := connectClient(t, server, transport.ClientConfig{TLSConfig: env.clientTLS})
	id := events.waitConnected(t).ID

	const size = 2 << 20
	payload := make([]byte, size)
	if _, err := rand.Read(payload); err != nil {
		t.Fatalf("failed to generate payload: %v", err)
	}

	received := make(chan transport.ReadResult, 1)
	go func() {
		received <- server.Read(id, size)
	}()

	res := client.Send(payload)
	if res.Status != transport.StatusSuccess {
		t.Fatalf("send failed: %v %v", res.Status, res.Err)
	}
	if res.BytesWritten != size {
		t.Fatalf("sent %d bytes, want %d", res.BytesWritten, size)
	}

	rr := <-received
	if rr.Status != transport.StatusSuccess {
		t.Fatalf("server read failed: %v %v", rr.Status, rr.Err)
	}
	if rr.BytesRead != size {
		t.Fatalf("server read %d bytes, want %d", rr.BytesRead, size)
	}
	if !bytes.Equal(rr.Data, payload) {
		t.Fatal("received payload differs from sent payload")
	}

	if got := client.Statistics().Snapshot().BytesSent; got != size {
		t.Fatalf("client counted %d bytes sent, want %d", got, size)
	}
	if got := server.Statistics().Snapshot().BytesReceived; got != size {
		t.Fatalf("server counted %d bytes received, want %d", got, size)
	}
}

func TestServerReadTimeoutUnderSilence(t *testing.T) {
	env := newTestEnv(t, false)
	events := newEventRecorder()

	server := startServer(t, transport.ServerConfig{TLSConfig: env.serverTLS})
	defer server.Subscribe(events)()

	connectClient(t, server, transport.ClientConfig{TLSConfig: env.clientTLS})
	id := events.waitConnected(t).ID

	start := time.Now()
	res := server.ReadWithTimeout(id, 500*time.Millisecond, 4)
	elapsed := time.Since(start)

	if res.Status != transport.StatusTimeout {
		t.Fatalf("expected StatusTimeout, got %v %v", res.Status, res.Err)
	}
	if res.BytesRead != 0 || res.Data != nil {
		t.Fatalf("timeout without data reported %d bytes, data %v", res.BytesRead, res.Data)
	}
	if elapsed < 500*time.Millisecond {
		t.Fatalf("returned after %v, before the 500ms bound", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("returned after %v, far past the 500ms bound", elapsed)
	}
}

func TestServerDetectsAbruptClientClose(t *testing.T) {
	env := newTestEnv(t, false)
	events := newEventRecorder()

	server := startServer(t, transport.ServerConfig{
		TLSConfig: env.serverTLS,
		Monitor:   transport.MonitorConfig{Interval: 100 * time.Millisecond},
	})
	defer server.Subscribe(events)()

	client := connectClient(t, server, transport.ClientConfig{TLSConfig: env.clientTLS})
	id := events.waitConnected(t).ID

	// Keep the server blocked in a read so passive detection has a
	// pending operation to fail.
	pending := make(chan transport.ReadResult, 1)
	go func() {
		pending <- server.Read(id, 4)
	}()
	time.Sleep(100 * time.Millisecond)

	// Kill the raw socket without an orderly TLS shutdown.
	client.Connection().Dispose()

	ev := events.waitDisconnected(t)
	if ev.ID != id {
		t.Fatalf("disconnected event for %q, want %q", ev.ID, id)
	}

	res := <-pending
	if res.Status != transport.StatusDisconnected {
		t.Fatalf("pending read expected disconnected, got %v %v", res.Status, res.Err)
	}
}

func TestConcurrentClientsNoCrossTalk(t *testing.T) {
	env := newTestEnv(t, false)
	events := newEventRecorder()

	server := startServer(t, transport.ServerConfig{TLSConfig: env.serverTLS})
	defer server.Subscribe(events)()

	// Echo loop per connection: 8-byte frames.
	go func() {
		for ev := range events.connected {
			id := ev.ID
			go func() {
				for {
					res := server.Read(id, 8)
					if res.Status != transport.StatusSuccess {
						return
					}
					if server.Send(id, res.Data).Status != transport.StatusSuccess {
						return
					}
				}
			}()
		}
	}()

	const clients = 50
	var wg sync.WaitGroup
	errs := make(chan error, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			client, err := transport.NewClient(transport.ClientConfig{TLSConfig: env.clientTLS})
			if err != nil {
				errs <- err
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Connect(ctx, server.Addr().String()); err != nil {
				errs <- err
				return
			}
			defer client.Disconnect()

			payload := make([]byte, 8)
			binary.BigEndian.PutUint64(payload, uint64(n)<<32|0xabcd)

			for round := 0; round < 5; round++ {
				if res := client.SendWithTimeout(5*time.Second, payload); res.Status != transport.StatusSuccess {
					errs <- fmt.Errorf("client %d round %d send: %v %v", n, round, res.Status, res.Err)
					return
				}
				res := client.ReadWithTimeout(5*time.Second, 8)
				if res.Status != transport.StatusSuccess {
					errs <- fmt.Errorf("client %d round %d read: %v %v", n, round, res.Status, res.Err)
					return
				}
				if !bytes.Equal(res.Data, payload) {
					errs <- fmt.Errorf("client %d round %d: got %x, want %x", n, round, res.Data, payload)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestChunkedTransferSmallBuffer(t *testing.T) {
	env := newTestEnv(t, false)
	events := newEventRecorder()

	server := startServer(t, transport.ServerConfig{
		TLSConfig:  env.serverTLS,
		BufferSize: 16,
	})
	defer server.Subscribe(events)()

	client := connectClient(t, server, transport.ClientConfig{
		TLSConfig:  env.clientTLS,
		BufferSize: 16,
	})
	id := events.waitConnected(t).ID

	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}

	received := make(chan transport.ReadResult, 1)
	go func() {
		received <- server.Read(id, len(payload))
	}()

	if res := client.Send(payload); res.Status != transport.StatusSuccess {
		t.Fatalf("send failed: %v %v", res.Status, res.Err)
	}
	rr := <-received
	if rr.Status != transport.StatusSuccess || !bytes.Equal(rr.Data, payload) {
		t.Fatalf("chunked transfer corrupted: %v %v", rr.Status, rr.Err)
	}
}
