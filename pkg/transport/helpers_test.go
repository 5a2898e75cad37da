package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/rawsock-io/rawsock-go/pkg/cert"
	"github.com/rawsock-io/rawsock-go/pkg/transport"
)

// testEnv holds a CA and the derived TLS material for one server/client
// pair.
type testEnv struct {
	ca        *cert.Authority
	serverTLS *transport.TLSConfig
	clientTLS *transport.TLSConfig
}

// newTestEnv issues fresh certificates from a throwaway CA. With mutual
// set, the server demands a client certificate and one is issued.
func newTestEnv(t *testing.T, mutual bool) *testEnv {
	t.Helper()

	ca, err := cert.NewAuthority("test-ca")
	if err != nil {
		t.Fatalf("failed to create CA: %v", err)
	}

	serverIssued, err := ca.IssueServerCert("test-server", "127.0.0.1", "localhost")
	if err != nil {
		t.Fatalf("failed to issue server cert: %v", err)
	}

	env := &testEnv{
		ca: ca,
		serverTLS: &transport.TLSConfig{
			Certificate: serverIssued.TLSCertificate(),
		},
		clientTLS: &transport.TLSConfig{
			RootCAs:    ca.Pool(),
			ServerName: "127.0.0.1",
		},
	}

	if mutual {
		clientIssued, err := ca.IssueClientCert("test-client")
		if err != nil {
			t.Fatalf("failed to issue client cert: %v", err)
		}
		env.serverTLS.ClientCAs = ca.Pool()
		env.serverTLS.RequireClientCert = true
		env.clientTLS.Certificate = clientIssued.TLSCertificate()
	}

	return env
}

// startServer creates and starts a server on a random loopback port,
// stopping it when the test finishes.
func startServer(t *testing.T, config transport.ServerConfig) *transport.Server {
	t.Helper()

	if config.Address == "" {
		config.Address = "127.0.0.1:0"
	}

	server, err := transport.NewServer(config)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	return server
}

// connectClient creates a client and connects it to the server,
// disconnecting when the test finishes.
func connectClient(t *testing.T, server *transport.Server, config transport.ClientConfig) *transport.Client {
	t.Helper()

	client, err := transport.NewClient(config)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx, server.Addr().String()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(client.Disconnect)

	return client
}

// eventRecorder collects lifecycle events on buffered channels.
type eventRecorder struct {
	connected    chan transport.ConnectedEvent
	disconnected chan transport.DisconnectedEvent
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{
		connected:    make(chan transport.ConnectedEvent, 64),
		disconnected: make(chan transport.DisconnectedEvent, 64),
	}
}

func (r *eventRecorder) OnConnected(ev transport.ConnectedEvent) {
	r.connected <- ev
}

func (r *eventRecorder) OnDisconnected(ev transport.DisconnectedEvent) {
	r.disconnected <- ev
}

// waitConnected returns the next connected event or fails the test.
func (r *eventRecorder) waitConnected(t *testing.T) transport.ConnectedEvent {
	t.Helper()
	select {
	case ev := <-r.connected:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no connected event within 5s")
		return transport.ConnectedEvent{}
	}
}

// waitDisconnected returns the next disconnected event or fails the test.
func (r *eventRecorder) waitDisconnected(t *testing.T) transport.DisconnectedEvent {
	t.Helper()
	select {
	case ev := <-r.disconnected:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnected event within 5s")
		return transport.DisconnectedEvent{}
	}
}
