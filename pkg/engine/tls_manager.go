package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"
)

// CertResolver mints per-hostname leaf certificates on demand, signed by the
// configured CA. Minted certificates are cached by name; concurrent misses
// for the same name serialize on a per-name lock so each name is minted once.
type CertResolver struct {
	caCert *x509.Certificate
	caKey  *ecdsa.PrivateKey

	mu    sync.RWMutex
	cache map[string]*tls.Certificate

	lockMu    sync.Mutex
	nameLocks map[string]*sync.Mutex
}

// NewCertResolver parses the CA certificate and private key from PEM.
func NewCertResolver(caCertPEM, caKeyPEM []byte) (*CertResolver, error) {
	certBlock, _ := pem.Decode(caCertPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("CA certificate is not valid PEM")
	}
	caCert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing CA certificate: %w", err)
	}

	keyBlock, _ := pem.Decode(caKeyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("CA key is not valid PEM")
	}
	caKey, err := parseECKey(keyBlock)
	if err != nil {
		return nil, fmt.Errorf("parsing CA key: %w", err)
	}

	return &CertResolver{
		caCert:    caCert,
		caKey:     caKey,
		cache:     make(map[string]*tls.Certificate),
		nameLocks: make(map[string]*sync.Mutex),
	}, nil
}

func parseECKey(block *pem.Block) (*ecdsa.PrivateKey, error) {
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("CA key is not an ECDSA key")
	}
	return ecKey, nil
}

// GetCertificate implements tls.Config.GetCertificate. The SNI picks the
// certificate name; when the client sent none, the local listener IP is used.
func (cr *CertResolver) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	name := hello.ServerName
	if name == "" {
		name = localIP(hello)
	}
	return cr.certificateFor(name)
}

func localIP(hello *tls.ClientHelloInfo) string {
	if hello.Conn != nil {
		if addr, ok := hello.Conn.LocalAddr().(*net.TCPAddr); ok {
			return addr.IP.String()
		}
	}
	return "127.0.0.1"
}

func (cr *CertResolver) certificateFor(name string) (*tls.Certificate, error) {
	cr.mu.RLock()
	cert, ok := cr.cache[name]
	cr.mu.RUnlock()
	if ok {
		return cert, nil
	}

	// Per-name lock: only one goroutine mints a given name, others wait and
	// then hit the cache.
	nameLock := cr.lockFor(name)
	nameLock.Lock()
	defer nameLock.Unlock()

	cr.mu.RLock()
	cert, ok = cr.cache[name]
	cr.mu.RUnlock()
	if ok {
		return cert, nil
	}

	cert, err := cr.mint(name)
	if err != nil {
		return nil, err
	}
	cr.mu.Lock()
	cr.cache[name] = cert
	cr.mu.Unlock()
	return cert, nil
}

func (cr *CertResolver) lockFor(name string) *sync.Mutex {
	cr.lockMu.Lock()
	defer cr.lockMu.Unlock()
	l, ok := cr.nameLocks[name]
	if !ok {
		l = &sync.Mutex{}
		cr.nameLocks[name] = l
	}
	return l
}

// mint generates a fresh ECDSA P-256 key pair and a leaf certificate for the
// name, signed by the CA. IP-shaped names get an IP SAN instead of a DNS SAN.
func (cr *CertResolver) mint(name string) (*tls.Certificate, error) {
	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating leaf key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generating serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	if ip := net.ParseIP(name); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{name}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, cr.caCert, &leafKey.PublicKey, cr.caKey)
	if err != nil {
		return nil, fmt.Errorf("signing leaf certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing minted certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der, cr.caCert.Raw},
		PrivateKey:  leafKey,
		Leaf:        leaf,
	}, nil
}

// tlsServerConfig builds the handshake configuration. ALPN offers h2 and
// HTTP/1.1; the dispatcher routes by the negotiated protocol.
func (cr *CertResolver) tlsServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: cr.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
	}
}
