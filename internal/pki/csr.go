package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
)

// GenerateClientCSR produces a fresh RSA key pair and a PKCS#10 CSR with
// subject CommonName="client", is-CA=false. The caller retains the private
// key; only the CSR is meant to cross to the server.
func GenerateClientCSR() (csrDER, keyDER []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: generate client key: %w", err)
	}

	tmpl := &x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: clientCommonName,
		},
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	csrDER, err = x509.CreateCertificateRequest(rand.Reader, tmpl, key)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: create CSR: %w", err)
	}

	return csrDER, x509.MarshalPKCS1PrivateKey(key), nil
}
