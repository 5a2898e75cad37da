package transport_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"testing"
	"time"

	"github.com/rawsock-io/rawsock-go/pkg/cert"
	"github.com/rawsock-io/rawsock-go/pkg/transport"
)

func TestVerifySession(t *testing.T) {
	cases := []struct {
		name          string
		state         tls.ConnectionState
		requireMutual bool
		ok            bool
	}{
		{
			name:  "handshake not complete",
			state: tls.ConnectionState{CipherSuite: tls.TLS_AES_128_GCM_SHA256},
			ok:    false,
		},
		{
			name:  "no cipher negotiated",
			state: tls.ConnectionState{HandshakeComplete: true},
			ok:    false,
		},
		{
			name: "server-only session",
			state: tls.ConnectionState{
				HandshakeComplete: true,
				CipherSuite:       tls.TLS_AES_128_GCM_SHA256,
			},
			ok: true,
		},
		{
			name: "mutual required but no peer certificate",
			state: tls.ConnectionState{
				HandshakeComplete: true,
				CipherSuite:       tls.TLS_AES_128_GCM_SHA256,
			},
			requireMutual: true,
			ok:            false,
		},
		{
			name: "mutual with peer certificate",
			state: tls.ConnectionState{
				HandshakeComplete: true,
				CipherSuite:       tls.TLS_AES_128_GCM_SHA256,
				PeerCertificates:  []*x509.Certificate{{}},
			},
			requireMutual: true,
			ok:            true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := transport.VerifySession(tc.state, tc.requireMutual)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected rejection")
				}
				if !errors.Is(err, transport.ErrHandshakeRejected) {
					t.Fatalf("expected ErrHandshakeRejected, got %v", err)
				}
			}
		})
	}
}

func TestMutualTLSAcceptsAuthorizedClient(t *testing.T) {
	env := newTestEnv(t, true)
	events := newEventRecorder()

	server := startServer(t, transport.ServerConfig{TLSConfig: env.serverTLS})
	defer server.Subscribe(events)()

	client := connectClient(t, server, transport.ClientConfig{TLSConfig: env.clientTLS})
	events.waitConnected(t)

	state, ok := client.Connection().TLSState()
	if !ok {
		t.Fatal("expected a TLS session")
	}
	if state.Version < tls.VersionTLS12 {
		t.Fatalf("negotiated TLS version %x below 1.2", state.Version)
	}
}

func TestMutualTLSRejectsAnonymousClient(t *testing.T) {
	env := newTestEnv(t, true)
	events := newEventRecorder()

	server := startServer(t, transport.ServerConfig{TLSConfig: env.serverTLS})
	defer server.Subscribe(events)()

	// Same trust anchors but no client certificate.
	client, err := transport.NewClient(transport.ClientConfig{
		TLSConfig: &transport.TLSConfig{
			RootCAs:    env.ca.Pool(),
			ServerName: "127.0.0.1",
		},
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Under TLS 1.3 the client may not see the rejection until its first
	// read, so a successful Connect here only means the alert is still in
	// flight.
	if err := client.Connect(ctx, server.Addr().String()); err == nil {
		res := client.ReadWithTimeout(2*time.Second, 1)
		if res.Status != transport.StatusDisconnected {
			t.Fatalf("expected the rejection to surface on read, got %v %v", res.Status, res.Err)
		}
		client.Disconnect()
	}

	// The server must never have registered the connection.
	select {
	case ev := <-events.connected:
		t.Fatalf("server registered unauthenticated client %q", ev.ID)
	case <-time.After(300 * time.Millisecond):
	}
	if got := server.ConnectionCount(); got != 0 {
		t.Fatalf("expected 0 connections, got %d", got)
	}
}

func TestClientRejectsUntrustedServer(t *testing.T) {
	env := newTestEnv(t, false)
	server := startServer(t, transport.ServerConfig{TLSConfig: env.serverTLS})

	otherCA, err := cert.NewAuthority("other-ca")
	if err != nil {
		t.Fatalf("failed to create CA: %v", err)
	}

	client, err := transport.NewClient(transport.ClientConfig{
		TLSConfig: &transport.TLSConfig{
			RootCAs:    otherCA.Pool(),
			ServerName: "127.0.0.1",
		},
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx, server.Addr().String()); err == nil {
		client.Disconnect()
		t.Fatal("expected handshake failure against untrusted server")
	}
	if client.Connected() {
		t.Fatal("client reports connected after failed handshake")
	}
}

func TestInsecureSkipVerifyClient(t *testing.T) {
	env := newTestEnv(t, false)
	events := newEventRecorder()

	server := startServer(t, transport.ServerConfig{TLSConfig: env.serverTLS})
	defer server.Subscribe(events)()

	// No trust anchors at all, verification disabled.
	connectClient(t, server, transport.ClientConfig{
		TLSConfig: &transport.TLSConfig{InsecureSkipVerify: true},
	})
	events.waitConnected(t)
}
