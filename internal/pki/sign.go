package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"time"
)

// MintClient signs a client's CSR with the CA key, producing a leaf
// certificate chain of length one. The leaf is never persisted server-side.
//
// The protocol's own notes flag a likely bug in the obvious implementation:
// reconstructing a throwaway CA certificate from only the CA key (as the
// signer passed to x509.CreateCertificate) produces an issuer field that
// doesn't necessarily match the CA certificate actually persisted and
// distributed to clients. MintClient takes the real, already-parsed CA
// certificate as caCert so the issued leaf's issuer is guaranteed to equal
// the CA's own subject — callers get caCert from certstore, which persists
// it alongside the key precisely so this identity holds.
func MintClient(caCert *x509.Certificate, caKey *rsa.PrivateKey, csrDER []byte) (leafDER []byte, err error) {
	csr, err := x509.ParseCertificateRequest(csrDER)
	if err != nil {
		return nil, fmt.Errorf("pki: bad csr: %w", err)
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, fmt.Errorf("pki: csr signature invalid: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               csr.Subject,
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(leafValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
	}

	leafDER, err = x509.CreateCertificate(rand.Reader, tmpl, caCert, csr.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("pki: sign client certificate: %w", err)
	}
	return leafDER, nil
}
