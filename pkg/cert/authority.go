package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Certificate validity periods.
const (
	// AuthorityValidity is the validity period for CA certificates.
	AuthorityValidity = 10 * 365 * 24 * time.Hour

	// LeafValidity is the validity period for issued server and
	// client certificates.
	LeafValidity = 365 * 24 * time.Hour
)

var (
	ErrInvalidCert = errors.New("invalid certificate")
	ErrNoAuthority = errors.New("authority has no private key")
)

// Authority is a private certificate authority. It holds a self-signed
// root and issues leaf certificates for rawsock servers and clients.
type Authority struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// Issued is a leaf certificate together with its private key and the
// CA that signed it.
type Issued struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	CACert      *x509.Certificate
}

// NewAuthority generates a new self-signed CA with the given name.
func NewAuthority(name string) (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	ski := keyIdentifier(&key.PublicKey)
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   name,
			Organization: []string{"rawsock"},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(AuthorityValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
		SubjectKeyId:          ski,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	return &Authority{Certificate: cert, PrivateKey: key}, nil
}

// LoadAuthority reconstructs an Authority from PEM files on disk.
func LoadAuthority(certPath, keyPath string) (*Authority, error) {
	cert, err := ReadCertFile(certPath)
	if err != nil {
		return nil, err
	}
	key, err := ReadKeyFile(keyPath)
	if err != nil {
		return nil, err
	}
	if !cert.IsCA {
		return nil, fmt.Errorf("%w: not a CA certificate", ErrInvalidCert)
	}
	return &Authority{Certificate: cert, PrivateKey: key}, nil
}

// IssueServerCert issues a server certificate valid for the given
// hosts. Hosts may be DNS names or IP addresses.
func (a *Authority) IssueServerCert(name string, hosts ...string) (*Issued, error) {
	return a.issue(name, x509.ExtKeyUsageServerAuth, hosts)
}

// IssueClientCert issues a client certificate identified by name.
func (a *Authority) IssueClientCert(name string) (*Issued, error) {
	return a.issue(name, x509.ExtKeyUsageClientAuth, nil)
}

func (a *Authority) issue(name string, usage x509.ExtKeyUsage, hosts []string) (*Issued, error) {
	if a == nil || a.Certificate == nil || a.PrivateKey == nil {
		return nil, ErrNoAuthority
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   name,
			Organization: []string{"rawsock"},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(LeafValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{usage},
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          keyIdentifier(&key.PublicKey),
		AuthorityKeyId:        a.Certificate.SubjectKeyId,
	}

	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, a.Certificate, &key.PublicKey, a.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	return &Issued{Certificate: cert, PrivateKey: key, CACert: a.Certificate}, nil
}

// Pool returns a CertPool containing only this authority's root,
// suitable for tls.Config RootCAs or ClientCAs.
func (a *Authority) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	if a != nil && a.Certificate != nil {
		pool.AddCert(a.Certificate)
	}
	return pool
}

// TLSCertificate converts an issued certificate to a tls.Certificate.
func (i *Issued) TLSCertificate() tls.Certificate {
	if i == nil || i.Certificate == nil || i.PrivateKey == nil {
		return tls.Certificate{}
	}
	return tls.Certificate{
		Certificate: [][]byte{i.Certificate.Raw},
		PrivateKey:  i.PrivateKey,
		Leaf:        i.Certificate,
	}
}

// Verify checks that the issued certificate chains to the given CA and
// is currently valid.
func (i *Issued) Verify(ca *x509.Certificate) error {
	if i == nil || i.Certificate == nil {
		return ErrInvalidCert
	}
	if ca == nil {
		return fmt.Errorf("%w: CA certificate required", ErrInvalidCert)
	}

	roots := x509.NewCertPool()
	roots.AddCert(ca)

	opts := x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}
	if _, err := i.Certificate.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCert, err)
	}
	return nil
}

// SelfSigned generates a standalone self-signed server certificate
// for the given hosts. Peers must skip verification or pin the
// certificate directly.
func SelfSigned(name string, hosts ...string) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return tls.Certificate{}, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   name,
			Organization: []string{"rawsock"},
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(LeafValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}, nil
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	return serial, nil
}

// keyIdentifier derives a subject key identifier from a public key.
func keyIdentifier(pub *ecdsa.PublicKey) []byte {
	raw := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	sum := sha256.Sum256(raw)
	return sum[:20]
}
