package pki

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func TestNewSelfSignedCAParsesAndIsCA(t *testing.T) {
	certDER, keyDER, err := NewSelfSignedCA([]string{"localhost", "127.0.0.1"})
	if err != nil {
		t.Fatalf("NewSelfSignedCA: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	if !cert.IsCA {
		t.Error("expected CA certificate to have IsCA=true")
	}
	if cert.Subject.CommonName != caCommonName {
		t.Errorf("got CommonName %q, want %q", cert.Subject.CommonName, caCommonName)
	}
	if cert.MaxPathLen != 0 || !cert.MaxPathLenZero {
		t.Errorf("expected path length constraint 0, got %d (zero=%v)", cert.MaxPathLen, cert.MaxPathLenZero)
	}
	if _, err := x509.ParsePKCS1PrivateKey(keyDER); err != nil {
		t.Fatalf("ParsePKCS1PrivateKey: %v", err)
	}
}

func TestIssuedLeafValidatesAgainstCA(t *testing.T) {
	caCertDER, caKeyDER, err := NewSelfSignedCA([]string{"localhost"})
	if err != nil {
		t.Fatalf("NewSelfSignedCA: %v", err)
	}
	caCert, err := x509.ParseCertificate(caCertDER)
	if err != nil {
		t.Fatal(err)
	}
	caKey, err := x509.ParsePKCS1PrivateKey(caKeyDER)
	if err != nil {
		t.Fatal(err)
	}

	csrDER, clientKeyDER, err := GenerateClientCSR()
	if err != nil {
		t.Fatalf("GenerateClientCSR: %v", err)
	}

	leafDER, err := MintClient(caCert, caKey, csrDER)
	if err != nil {
		t.Fatalf("MintClient: %v", err)
	}
	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		t.Fatalf("ParseCertificate(leaf): %v", err)
	}
	if leaf.Subject.CommonName != clientCommonName {
		t.Errorf("got leaf CommonName %q, want %q", leaf.Subject.CommonName, clientCommonName)
	}

	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}); err != nil {
		t.Fatalf("issued leaf failed to verify against its CA: %v", err)
	}

	// Exercise the leaf the way crypto/tls would: build a Certificate chain
	// and make sure the private key matches the signed public key.
	clientKey, err := x509.ParsePKCS1PrivateKey(clientKeyDER)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tls.X509KeyPair(pemEncodeCert(leafDER), pemEncodeKey(clientKey)); err != nil {
		t.Fatalf("X509KeyPair: %v", err)
	}
}

func TestMintClientRejectsBadCSR(t *testing.T) {
	caCertDER, caKeyDER, err := NewSelfSignedCA([]string{"localhost"})
	if err != nil {
		t.Fatal(err)
	}
	caCert, _ := x509.ParseCertificate(caCertDER)
	caKey, _ := x509.ParsePKCS1PrivateKey(caKeyDER)

	if _, err := MintClient(caCert, caKey, []byte("not a csr")); err == nil {
		t.Fatal("expected an error signing a malformed CSR")
	}
}

// pemEncodeCert/pemEncodeKey exist only so this test can drive the standard
// tls.X509KeyPair verification path without importing encoding/pem twice
// across the package.
func pemEncodeCert(der []byte) []byte {
	return pemBlock("CERTIFICATE", der)
}

func pemEncodeKey(key *rsa.PrivateKey) []byte {
	return pemBlock("RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))
}

func pemBlock(blockType string, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
}
