package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Values from the config file
// are overridden by command-line flags.
type Config struct {
	Address    string `yaml:"address"`
	BufferSize int    `yaml:"buffer_size"`

	TLS struct {
		CertFile   string `yaml:"cert_file"`
		KeyFile    string `yaml:"key_file"`
		CAFile     string `yaml:"ca_file"`
		SelfSigned bool   `yaml:"self_signed"`
	} `yaml:"tls"`

	Monitor struct {
		Disabled bool          `yaml:"disabled"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"monitor"`

	Log struct {
		EventFile string `yaml:"event_file"`
		Verbose   bool   `yaml:"verbose"`
	} `yaml:"log"`

	MDNS struct {
		Enabled bool   `yaml:"enabled"`
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
	} `yaml:"mdns"`
}

type flagValues struct {
	configFile string
	addr       string
	certFile   string
	keyFile    string
	caFile     string
	selfSigned bool
	eventLog   string
	mdns       bool
	verbose    bool
}

func parseFlags() *flagValues {
	f := &flagValues{}
	flag.StringVar(&f.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&f.addr, "addr", "", "Listen address")
	flag.StringVar(&f.certFile, "cert", "", "Server certificate PEM file")
	flag.StringVar(&f.keyFile, "key", "", "Server key PEM file")
	flag.StringVar(&f.caFile, "ca", "", "CA certificate for client verification (enables mutual TLS)")
	flag.BoolVar(&f.selfSigned, "self-signed", false, "Generate an ephemeral self-signed certificate")
	flag.StringVar(&f.eventLog, "event-log", "", "Write transport events to this .tlog file")
	flag.BoolVar(&f.mdns, "mdns", false, "Advertise the server via mDNS")
	flag.BoolVar(&f.verbose, "verbose", false, "Log transport events to the console")
	flag.Parse()
	return f
}

// loadConfig reads the config file (if given) and applies flag
// overrides and defaults.
func loadConfig(f *flagValues) (*Config, error) {
	cfg := &Config{}

	if f.configFile != "" {
		data, err := os.ReadFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if f.addr != "" {
		cfg.Address = f.addr
	}
	if f.certFile != "" {
		cfg.TLS.CertFile = f.certFile
	}
	if f.keyFile != "" {
		cfg.TLS.KeyFile = f.keyFile
	}
	if f.caFile != "" {
		cfg.TLS.CAFile = f.caFile
	}
	if f.selfSigned {
		cfg.TLS.SelfSigned = true
	}
	if f.eventLog != "" {
		cfg.Log.EventFile = f.eventLog
	}
	if f.mdns {
		cfg.MDNS.Enabled = true
	}
	if f.verbose {
		cfg.Log.Verbose = true
	}

	if cfg.Address == "" {
		cfg.Address = ":4433"
	}
	if cfg.MDNS.Enabled && cfg.MDNS.ID == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "rawsock"
		}
		cfg.MDNS.ID = host
	}

	return cfg, nil
}
