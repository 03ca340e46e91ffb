package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCA generates a throwaway CA and returns its PEM blocks.
func testCA(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "httpmock test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestNewCertResolverRejectsBadPEM(t *testing.T) {
	certPEM, keyPEM := testCA(t)

	_, err := NewCertResolver([]byte("not pem"), keyPEM)
	require.Error(t, err)

	_, err = NewCertResolver(certPEM, []byte("not pem"))
	require.Error(t, err)

	_, err = NewCertResolver(certPEM, keyPEM)
	require.NoError(t, err)
}

func TestMintedCertificateProperties(t *testing.T) {
	certPEM, keyPEM := testCA(t)
	cr, err := NewCertResolver(certPEM, keyPEM)
	require.NoError(t, err)

	cert, err := cr.certificateFor("example.test")
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, []string{"example.test"}, cert.Leaf.DNSNames)
	assert.Equal(t, "httpmock test CA", cert.Leaf.Issuer.CommonName)
	require.NoError(t, cert.Leaf.CheckSignatureFrom(cr.caCert))

	// IP-shaped names get an IP SAN instead.
	ipCert, err := cr.certificateFor("127.0.0.1")
	require.NoError(t, err)
	require.Len(t, ipCert.Leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", ipCert.Leaf.IPAddresses[0].String())
	assert.Empty(t, ipCert.Leaf.DNSNames)
}

func TestCertificateCacheReusesSerial(t *testing.T) {
	certPEM, keyPEM := testCA(t)
	cr, err := NewCertResolver(certPEM, keyPEM)
	require.NoError(t, err)

	first, err := cr.certificateFor("example.test")
	require.NoError(t, err)
	second, err := cr.certificateFor("example.test")
	require.NoError(t, err)
	assert.Zero(t, first.Leaf.SerialNumber.Cmp(second.Leaf.SerialNumber))

	other, err := cr.certificateFor("other.test")
	require.NoError(t, err)
	assert.NotZero(t, first.Leaf.SerialNumber.Cmp(other.Leaf.SerialNumber))
}

func TestConcurrentMintingSameName(t *testing.T) {
	certPEM, keyPEM := testCA(t)
	cr, err := NewCertResolver(certPEM, keyPEM)
	require.NoError(t, err)

	const workers = 16
	certs := make([]*x509.Certificate, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := cr.certificateFor("burst.test")
			if err == nil {
				certs[i] = c.Leaf
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.NotNil(t, certs[i])
		assert.Zero(t, certs[0].SerialNumber.Cmp(certs[i].SerialNumber))
	}
}
