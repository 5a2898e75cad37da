// Command rawsock-server runs a rawsock echo server.
//
// The server accepts TLS connections, reads whatever each client
// sends, and writes it back. It exists as a working deployment of the
// transport package and as the counterpart for rawsock-cli.
//
// Usage:
//
//	rawsock-server [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-addr string       Listen address (default ":4433")
//	-cert string       Server certificate PEM file
//	-key string        Server key PEM file
//	-ca string         CA certificate for client verification (enables mutual TLS)
//	-self-signed       Generate an ephemeral self-signed certificate
//	-event-log string  Write transport events to this .tlog file
//	-mdns              Advertise the server via mDNS
//	-verbose           Log transport events to the console
//
// Examples:
//
//	# Quick start with an ephemeral certificate
//	rawsock-server -self-signed -verbose
//
//	# Production-style with a config file
//	rawsock-server -config /etc/rawsock/server.yaml
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawsock-io/rawsock-go/pkg/cert"
	"github.com/rawsock-io/rawsock-go/pkg/discovery"
	rslog "github.com/rawsock-io/rawsock-go/pkg/log"
	"github.com/rawsock-io/rawsock-go/pkg/transport"
)

func main() {
	flags := parseFlags()

	cfg, err := loadConfig(flags)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("rawsock echo server")
	log.Printf("Listen address: %s", cfg.Address)

	tlsConf, mutual, err := buildTLSConfig(cfg)
	if err != nil {
		log.Fatalf("TLS setup failed: %v", err)
	}

	logger, closeLogger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer closeLogger()

	server, err := transport.NewServer(transport.ServerConfig{
		Address:    cfg.Address,
		TLSConfig:  tlsConf,
		BufferSize: cfg.BufferSize,
		Monitor: transport.MonitorConfig{
			Disabled: cfg.Monitor.Disabled,
			Interval: cfg.Monitor.Interval,
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	echo := newEchoService(server)
	unsubscribe := server.Subscribe(echo)
	defer unsubscribe()

	if err := server.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Listening on %s", server.Addr())

	var advertiser *discovery.Advertiser
	if cfg.MDNS.Enabled {
		advertiser = discovery.NewAdvertiser(discovery.DefaultAdvertiserConfig())
		info := &discovery.Info{
			ID:        cfg.MDNS.ID,
			Port:      listenPort(server),
			MutualTLS: mutual,
			Name:      cfg.MDNS.Name,
		}
		if err := advertiser.Advertise(info); err != nil {
			log.Printf("Warning: mDNS advertising failed: %v", err)
		} else {
			log.Printf("Advertising as %q via mDNS", info.ID)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down...")

	if advertiser != nil {
		advertiser.Stop()
	}
	if err := server.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	// Stop disposes the connections, which unblocks the echo loops.
	echo.stop()

	snap := server.Statistics().Snapshot()
	log.Printf("Totals: sent=%d received=%d uptime=%s",
		snap.BytesSent, snap.BytesReceived, snap.Uptime().Round(time.Second))
	log.Println("Goodbye!")
}

func buildTLSConfig(cfg *Config) (*transport.TLSConfig, bool, error) {
	if cfg.TLS.SelfSigned {
		tc, err := cert.SelfSigned("rawsock-server", "localhost", "127.0.0.1")
		if err != nil {
			return nil, false, err
		}
		return &transport.TLSConfig{Certificate: tc}, false, nil
	}

	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return nil, false, fmt.Errorf("cert and key files required (or use -self-signed)")
	}

	tc, err := cert.LoadPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, false, fmt.Errorf("loading certificate: %w", err)
	}

	conf := &transport.TLSConfig{Certificate: tc}

	if cfg.TLS.CAFile != "" {
		ca, err := cert.ReadCertFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, false, fmt.Errorf("loading CA certificate: %w", err)
		}
		pool := (&cert.Authority{Certificate: ca}).Pool()
		conf.ClientCAs = pool
		conf.RequireClientCert = true
		return conf, true, nil
	}

	return conf, false, nil
}

func buildLogger(cfg *Config) (rslog.Logger, func(), error) {
	var loggers []rslog.Logger
	var closers []func()

	if cfg.Log.EventFile != "" {
		fl, err := rslog.NewFileLogger(cfg.Log.EventFile)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closers = append(closers, func() { _ = fl.Close() })
	}
	if cfg.Log.Verbose {
		loggers = append(loggers, rslog.NewSlogAdapter(newSlog()))
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	switch len(loggers) {
	case 0:
		return nil, closeAll, nil
	case 1:
		return loggers[0], closeAll, nil
	default:
		return rslog.NewMultiLogger(loggers...), closeAll, nil
	}
}

func listenPort(server *transport.Server) uint16 {
	if tcp, ok := server.Addr().(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return 0
}

func newSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
