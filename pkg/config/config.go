// Package config provides server configuration and the environment lookups
// used by the test-side client.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables honoured by the pool and the remote client.
const (
	EnvMaxServers = "HTTPMOCK_MAX_SERVERS"
	EnvHost       = "HTTPMOCK_HOST"
	EnvPort       = "HTTPMOCK_PORT"
)

// Defaults for the environment lookups.
const (
	DefaultMaxServers = 25
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 5000
)

// TLSConfig configures HTTPS support. The CA certificate and key can be
// given inline as PEM bytes or by file path; inline wins.
type TLSConfig struct {
	Enabled    bool
	CACertPEM  []byte
	CAKeyPEM   []byte
	CACertFile string
	CAKeyFile  string
}

// LoadCA returns the CA certificate and private key PEM blocks.
func (t *TLSConfig) LoadCA() (certPEM, keyPEM []byte, err error) {
	certPEM = t.CACertPEM
	if len(certPEM) == 0 && t.CACertFile != "" {
		certPEM, err = os.ReadFile(t.CACertFile)
		if err != nil {
			return nil, nil, fmt.Errorf("reading CA certificate: %w", err)
		}
	}
	keyPEM = t.CAKeyPEM
	if len(keyPEM) == 0 && t.CAKeyFile != "" {
		keyPEM, err = os.ReadFile(t.CAKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("reading CA key: %w", err)
		}
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return nil, nil, fmt.Errorf("TLS enabled but CA certificate or key missing")
	}
	return certPEM, keyPEM, nil
}

// ServerConfig holds the start options of one mock server.
type ServerConfig struct {
	// Port to bind; 0 lets the OS assign one.
	Port int

	// Expose binds 0.0.0.0 instead of 127.0.0.1.
	Expose bool

	// HistoryLimit caps the request history; 0 uses the default of 100.
	HistoryLimit int

	// StaticMockDir is scanned at start for mock definition files that are
	// inserted as static mocks.
	StaticMockDir string

	// TLS enables HTTPS with a CA for on-demand certificate minting.
	TLS *TLSConfig
}

// BindAddr returns the listen address for the configured port and exposure.
func (c *ServerConfig) BindAddr() string {
	host := "127.0.0.1"
	if c.Expose {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

// HTTPSEnabled reports whether TLS dispatch should be active.
func (c *ServerConfig) HTTPSEnabled() bool {
	return c.TLS != nil && c.TLS.Enabled
}

// MaxServersFromEnv returns the local pool cap.
func MaxServersFromEnv() int {
	return envInt(EnvMaxServers, DefaultMaxServers)
}

// HostFromEnv returns the remote server host for connect-from-env.
func HostFromEnv() string {
	if v := os.Getenv(EnvHost); v != "" {
		return v
	}
	return DefaultHost
}

// PortFromEnv returns the remote server port for connect-from-env.
func PortFromEnv() int {
	return envInt(EnvPort, DefaultPort)
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
