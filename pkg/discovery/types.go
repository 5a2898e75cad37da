package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Service discovery constants.
const (
	// ServiceType is the DNS-SD service type for rawsock servers.
	ServiceType = "_rawsock._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is used when an advertised service omits its port.
	DefaultPort = 4433

	// MaxInstanceNameLen is the DNS-SD instance name limit.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyID   = "id"   // server identifier (required)
	TXTKeyTLS  = "tls"  // "1" when client certificates are required
	TXTKeyName = "name" // human-readable name (optional)
)

// Discovery errors.
var (
	ErrMissingRequired  = errors.New("missing required TXT record")
	ErrInvalidTXTRecord = errors.New("invalid TXT record")
	ErrNotFound         = errors.New("service not found")
)

// Info describes a server to advertise.
type Info struct {
	// ID uniquely identifies the server instance.
	ID string

	// Port the server listens on. Zero means DefaultPort.
	Port uint16

	// MutualTLS indicates the server requires client certificates.
	MutualTLS bool

	// Name is an optional human-readable label.
	Name string
}

// Service is a resolved server instance found while browsing.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	ID        string
	MutualTLS bool
	Name      string
}

// Addr returns a dialable "host:port" address for the service,
// preferring a resolved IP over the mDNS hostname.
func (s *Service) Addr() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, s.Port)
}

// EncodeTXT creates TXT records for advertising.
func EncodeTXT(info *Info) []string {
	txt := []string{TXTKeyID + "=" + info.ID}
	if info.MutualTLS {
		txt = append(txt, TXTKeyTLS+"=1")
	}
	if info.Name != "" {
		txt = append(txt, TXTKeyName+"="+info.Name)
	}
	return txt
}

// DecodeTXT parses TXT records from a browsed service.
func DecodeTXT(txt []string) (*Info, error) {
	records := make(map[string]string, len(txt))
	for _, entry := range txt {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		records[key] = value
	}

	info := &Info{}

	var ok bool
	info.ID, ok = records[TXTKeyID]
	if !ok || info.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}

	if v, present := records[TXTKeyTLS]; present {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyTLS, v)
		}
		info.MutualTLS = b
	}

	info.Name = records[TXTKeyName]

	return info, nil
}
