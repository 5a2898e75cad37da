package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// TLSConfig holds the material for upgrading rawsock connections to TLS.
// A nil TLSConfig on a server or client means plain TCP.
type TLSConfig struct {
	// Certificate is the TLS certificate for this endpoint.
	Certificate tls.Certificate

	// RootCAs is the pool of trusted CA certificates used by clients to
	// verify server certificates.
	RootCAs *x509.CertPool

	// ClientCAs is the pool of CA certificates servers use to verify
	// client certificates when mutual authentication is required.
	ClientCAs *x509.CertPool

	// ServerName is the expected server name for client connections.
	ServerName string

	// RequireClientCert demands mutual authentication: the handshake is
	// rejected unless the peer presents a certificate chaining to
	// ClientCAs.
	RequireClientCert bool

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool

	// VerifyPeerCertificate is an optional accept-predicate for custom
	// trust decisions. The handshake itself embeds no trust policy.
	VerifyPeerCertificate func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}

// NewServerTLSConfig builds a tls.Config for the accepting side.
func NewServerTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("TLSConfig is required")
	}
	if len(cfg.Certificate.Certificate) == 0 {
		return nil, fmt.Errorf("server certificate is required")
	}

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cfg.Certificate},
		ClientCAs:    cfg.ClientCAs,

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		VerifyPeerCertificate: cfg.VerifyPeerCertificate,
	}

	if cfg.RequireClientCert {
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	} else {
		tlsConfig.ClientAuth = tls.NoClientCert
	}

	// For testing only
	if cfg.InsecureSkipVerify {
		if cfg.RequireClientCert {
			tlsConfig.ClientAuth = tls.RequireAnyClientCert
		}
		tlsConfig.InsecureSkipVerify = true
	}

	return tlsConfig, nil
}

// NewClientTLSConfig builds a tls.Config for the connecting side.
func NewClientTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("TLSConfig is required")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    cfg.RootCAs,
		ServerName: cfg.ServerName,

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		VerifyPeerCertificate: cfg.VerifyPeerCertificate,

		// For testing only
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if len(cfg.Certificate.Certificate) > 0 {
		tlsConfig.Certificates = []tls.Certificate{cfg.Certificate}
	}

	return tlsConfig, nil
}

// VerifySession checks a completed handshake before the connection is
// considered usable: the session must be established and encrypted, and
// when mutual authentication is required the peer must have presented a
// certificate. Any failure rejects the connection.
func VerifySession(state tls.ConnectionState, requireMutual bool) error {
	if !state.HandshakeComplete {
		return fmt.Errorf("%w: handshake not complete", ErrHandshakeRejected)
	}
	if state.CipherSuite == 0 {
		return fmt.Errorf("%w: no cipher suite negotiated", ErrHandshakeRejected)
	}
	if requireMutual && len(state.PeerCertificates) == 0 {
		return fmt.Errorf("%w: peer certificate required but not presented", ErrHandshakeRejected)
	}
	return nil
}
