package crypto

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// LoadCABundle reads a PEM CA bundle and returns its raw bytes together
// with the parsed pool. A bundle without any certificate is an error.
func LoadCABundle(caPath string) ([]byte, *x509.CertPool, error) {
	caCert, err := os.ReadFile(caPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CA certificate from %s: %w", caPath, err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, nil, fmt.Errorf("failed to parse CA certificate from %s", caPath)
	}
	return caCert, caCertPool, nil
}

// LoadCustomCA loads a custom CA certificate and returns a TLS config
// trusting only that CA.
func LoadCustomCA(caPath string) (*tls.Config, error) {
	_, caCertPool, err := LoadCABundle(caPath)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
