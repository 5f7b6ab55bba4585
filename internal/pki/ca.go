// Package pki implements the certificate-authority lifecycle: self-signed
// CA bootstrap, client CSR generation, and CSR signing. It is the PKI core
// described by the protocol's data model — a single CA per deployment that
// is both the QUIC server's own TLS identity and the trust anchor for
// verifying client leaves.
package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// caCommonName is the CA's distinguished name, fixed by the protocol.
const caCommonName = "qpiped server"

// clientCommonName is the subject every client CSR carries.
const clientCommonName = "client"

// rsaKeyBits matches the teacher's cert-generation convention.
const rsaKeyBits = 2048

// caValidity is generous: the CA is never rotated for the life of a
// deployment (see the data model's CA certificate invariant).
const caValidity = 10 * 365 * 24 * time.Hour

// leafValidity bounds how long an issued client leaf remains acceptable.
const leafValidity = 825 * 24 * time.Hour

// NewSelfSignedCA generates a fresh CA key pair and a self-signed
// certificate carrying the given subject alternative names. Returns the
// certificate and key each DER-encoded, ready for certstore to persist.
func NewSelfSignedCA(sans []string) (certDER, keyDER []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: generate CA key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: caCommonName,
		},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
	}
	applySANs(tmpl, sans)

	certDER, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: create CA certificate: %w", err)
	}

	return certDER, x509.MarshalPKCS1PrivateKey(key), nil
}

func applySANs(tmpl *x509.Certificate, sans []string) {
	for _, s := range sans {
		if ip := net.ParseIP(s); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, s)
		}
	}
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}
