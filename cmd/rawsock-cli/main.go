// Command rawsock-cli is an interactive client for rawsock servers.
//
// It connects to a server over TLS and exposes the transport
// operations as REPL commands, including the length-prefixed echo
// framing that rawsock-server speaks.
//
// Usage:
//
//	rawsock-cli [flags]
//
// Flags:
//
//	-addr string   Server address to connect to on startup
//	-cert string   Client certificate PEM file (for mutual TLS)
//	-key string    Client key PEM file
//	-ca string     CA certificate to verify the server
//	-insecure      Skip server certificate verification
//
// Interactive Commands:
//
//	connect <addr>        - Connect to a server
//	send <text>           - Send a framed message and print the echo
//	write <text>          - Raw write without framing
//	read <n> [timeout]    - Read exactly n bytes (timeout in seconds)
//	discover [seconds]    - Browse for servers via mDNS
//	stats                 - Show connection statistics
//	close                 - Disconnect from the server
//	quit                  - Exit
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rawsock-io/rawsock-go/pkg/cert"
	"github.com/rawsock-io/rawsock-go/pkg/transport"
)

func main() {
	var (
		addr     string
		certFile string
		keyFile  string
		caFile   string
		insecure bool
	)
	flag.StringVar(&addr, "addr", "", "Server address to connect to on startup")
	flag.StringVar(&certFile, "cert", "", "Client certificate PEM file (for mutual TLS)")
	flag.StringVar(&keyFile, "key", "", "Client key PEM file")
	flag.StringVar(&caFile, "ca", "", "CA certificate to verify the server")
	flag.BoolVar(&insecure, "insecure", false, "Skip server certificate verification")
	flag.Parse()

	log.SetFlags(log.Ltime)

	tlsConf, err := buildTLSConfig(certFile, keyFile, caFile, insecure)
	if err != nil {
		log.Fatalf("TLS setup failed: %v", err)
	}

	session, err := newSession(tlsConf)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer session.close()

	if addr != "" {
		if err := session.connect(addr); err != nil {
			fmt.Fprintf(os.Stderr, "Connect failed: %v\n", err)
		}
	}

	session.run()
}

func buildTLSConfig(certFile, keyFile, caFile string, insecure bool) (*transport.TLSConfig, error) {
	conf := &transport.TLSConfig{InsecureSkipVerify: insecure}

	if certFile != "" && keyFile != "" {
		tc, err := cert.LoadPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		conf.Certificate = tc
	}

	if caFile != "" {
		ca, err := cert.ReadCertFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("loading CA certificate: %w", err)
		}
		conf.RootCAs = (&cert.Authority{Certificate: ca}).Pool()
	}

	return conf, nil
}
