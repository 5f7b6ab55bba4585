// Package quicconn wires mutual-TLS QUIC transport for qpiped: the server
// accepts a single multiplexed connection per client and authenticates it
// against its own CA, and the client dials exactly one QUIC connection using
// a leaf certificate issued by that same CA.
package quicconn

import (
	"crypto/tls"
	"crypto/x509"
)

// alpn is fixed for the protocol; both ends must offer/accept it.
const alpn = "hq-29"

// ServerTLSConfig builds the TLS configuration the far side listens with.
// The CA certificate serves double duty: it is the server's own presented
// identity, and caCert's pool is also the only root accepted for client
// certificates, so only leaves signed by this deployment's CA can connect.
func ServerTLSConfig(caCert *x509.Certificate, serverIdentity tls.Certificate) *tls.Config {
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	return &tls.Config{
		Certificates: []tls.Certificate{serverIdentity},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		NextProtos:   []string{alpn},
		MinVersion:   tls.VersionTLS13,
	}
}

// ClientTLSConfig builds the TLS configuration the near side dials with.
// RootCAs trusts only the server's CA; Certificates presents the client's
// own CA-signed leaf for mutual authentication.
func ClientTLSConfig(caCert *x509.Certificate, leaf tls.Certificate, serverName string) *tls.Config {
	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{leaf},
		NextProtos:   []string{alpn},
		MinVersion:   tls.VersionTLS13,
		ServerName:   serverName,
	}
}
