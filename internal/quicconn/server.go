package quicconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"

	"github.com/quic-go/quic-go"
)

// Server listens for incoming QUIC connections and hands each one to a
// caller-supplied handler, one goroutine per connection.
type Server struct {
	listenAddr string
	tlscfg     *tls.Config
	qcfg       *quic.Config
}

// NewServer returns a Server bound to listenAddr (host:port, or :port for
// all interfaces) once Serve is called.
func NewServer(listenAddr string, tlscfg *tls.Config, qcfg *quic.Config) *Server {
	return &Server{listenAddr: listenAddr, tlscfg: tlscfg, qcfg: qcfg}
}

// HandleConn is invoked once per accepted QUIC connection. It owns the
// connection's lifetime and should not return until the connection is done
// with, accepting streams from it for as long as the tunnel is alive.
type HandleConn func(ctx context.Context, conn *quic.Conn)

// Serve accepts connections until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, handle HandleConn) error {
	l, err := quic.ListenAddr(s.listenAddr, s.tlscfg, s.qcfg)
	if err != nil {
		return fmt.Errorf("quicconn: listen %s: %w", s.listenAddr, err)
	}
	defer l.Close()

	log.Printf("qpiped: listening on %s", s.listenAddr)

	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("qpiped: accept error: %v", err)
			continue
		}
		log.Printf("qpiped: accepted connection from %s", conn.RemoteAddr())
		go handle(ctx, conn)
	}
}
