// Package certstore persists the server's CA identity on disk and loads it
// back on subsequent runs. The CA bootstrap is idempotent: a deployment's
// certificate and key are generated exactly once and reused for the life of
// the state directory.
package certstore

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"qpiped/internal/pki"
)

const (
	certFileName = "server.cert"
	keyFileName  = "server.key"
	dirPerm      = 0700
	filePerm     = 0600
)

// LoadOrGenerateServer returns the deployment's CA certificate and key,
// generating and persisting them under stateDir on first use. Every later
// call against the same stateDir returns the identical cert and key bytes.
func LoadOrGenerateServer(stateDir string, sans []string) (*x509.Certificate, *rsa.PrivateKey, error) {
	if err := os.MkdirAll(stateDir, dirPerm); err != nil {
		return nil, nil, fmt.Errorf("certstore: create state dir %s: %w", stateDir, err)
	}
	if err := os.Chmod(stateDir, dirPerm); err != nil {
		return nil, nil, fmt.Errorf("certstore: restrict permissions on %s: %w", stateDir, err)
	}

	certPath := filepath.Join(stateDir, certFileName)
	keyPath := filepath.Join(stateDir, keyFileName)

	certDER, certErr := os.ReadFile(certPath)
	keyDER, keyErr := os.ReadFile(keyPath)

	switch {
	case certErr == nil && keyErr == nil:
		return parse(certDER, keyDER)
	case os.IsNotExist(certErr) && os.IsNotExist(keyErr):
		return bootstrap(stateDir, certPath, keyPath, sans)
	case certErr != nil && !os.IsNotExist(certErr):
		return nil, nil, fmt.Errorf("certstore: read %s: %w", certPath, certErr)
	case keyErr != nil && !os.IsNotExist(keyErr):
		return nil, nil, fmt.Errorf("certstore: read %s: %w", keyPath, keyErr)
	default:
		return nil, nil, fmt.Errorf("certstore: inconsistent state in %s: one of %s/%s exists without the other", stateDir, certFileName, keyFileName)
	}
}

func bootstrap(stateDir, certPath, keyPath string, sans []string) (*x509.Certificate, *rsa.PrivateKey, error) {
	certDER, keyDER, err := pki.NewSelfSignedCA(sans)
	if err != nil {
		return nil, nil, err
	}

	if err := writeFileAtomic(certPath, certDER); err != nil {
		return nil, nil, fmt.Errorf("certstore: persist %s: %w", certPath, err)
	}
	if err := writeFileAtomic(keyPath, keyDER); err != nil {
		return nil, nil, fmt.Errorf("certstore: persist %s: %w", keyPath, err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, err
	}
	key, err := x509.ParsePKCS1PrivateKey(keyDER)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

// parse decodes the raw DER bytes persisted on disk by bootstrap.
func parse(certDER, keyDER []byte) (*x509.Certificate, *rsa.PrivateKey, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, fmt.Errorf("certstore: parse stored certificate: %w", err)
	}
	key, err := x509.ParsePKCS1PrivateKey(keyDER)
	if err != nil {
		return nil, nil, fmt.Errorf("certstore: parse stored key: %w", err)
	}
	return cert, key, nil
}

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// never leaves a half-written cert or key behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
