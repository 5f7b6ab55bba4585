package quicconn

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
)

// Identity assembles a tls.Certificate from a parsed leaf and its key,
// suitable for tls.Config.Certificates. leafDER must be the DER encoding of
// leaf, not a re-marshal, so tls.Certificate.Leaf and Certificate[0] agree.
func Identity(leafDER []byte, leaf *x509.Certificate, key *rsa.PrivateKey) tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{leafDER},
		PrivateKey:  key,
		Leaf:        leaf,
	}
}
