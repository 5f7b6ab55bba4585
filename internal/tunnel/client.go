package tunnel

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"qpiped/internal/limiter"
	"qpiped/internal/status"
	"qpiped/internal/wire"
)

// StreamOpener abstracts opening a new bi-stream on the shared QUIC
// connection, so the proxy loop doesn't need to know about *quic.Conn
// directly.
type StreamOpener interface {
	OpenStreamSync(ctx context.Context) (*quic.Stream, error)
}

// ProxyListener accepts local TCP connections on listenAddr and relays each
// one to targetAddr through a fresh bi-stream on qconn.
type ProxyListener struct {
	ListenAddr string
	TargetAddr string
	Conn       StreamOpener
	Monitor    *status.Monitor
	Limiter    *limiter.SharedLimiter
}

// Serve runs the accept loop until ctx is cancelled or the listener fails.
// Failures proxying one connection are logged and do not stop the loop.
func (p *ProxyListener) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.ListenAddr)
	if err != nil {
		return fmt.Errorf("tunnel: listen %s: %w", p.ListenAddr, err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Printf("qpiped: forwarding %s -> %s", p.ListenAddr, p.TargetAddr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tunnel: accept on %s: %w", p.ListenAddr, err)
		}
		go p.handle(ctx, conn)
	}
}

func (p *ProxyListener) handle(ctx context.Context, local net.Conn) {
	defer local.Close()

	stream, err := p.Conn.OpenStreamSync(ctx)
	if err != nil {
		log.Printf("qpiped: open stream for %s: %v", p.TargetAddr, err)
		return
	}
	defer stream.Close()

	if err := wire.WriteEstablish(stream, wire.Establish{Protocol: wire.ProtoTCP, AddrPort: p.TargetAddr}); err != nil {
		log.Printf("qpiped: send establish for %s: %v", p.TargetAddr, err)
		return
	}
	if err := wire.ReadOkay(stream); err != nil {
		log.Printf("qpiped: await okay for %s: %v", p.TargetAddr, err)
		return
	}

	conn := local
	var relayConn net.Conn = conn
	if p.Limiter != nil {
		relayConn = p.Limiter.WrapConn(conn)
	}

	if p.Monitor != nil {
		p.Monitor.IncStream()
		defer p.Monitor.DecStream()
	}

	var framed io.ReadWriteCloser = stream
	if err := Relay(relayConn, framed, p.Monitor); err != nil {
		log.Printf("qpiped: relay for %s: %v", p.TargetAddr, err)
	}
}

// Keepalive opens a fresh bi-stream every interval to send a ping and await
// its pong, keeping the QUIC connection's idle timer from expiring on a
// tunnel that is carrying no tunnel traffic of its own, and recording
// round-trip latency on monitor under connID. It runs until ctx is done.
func Keepalive(ctx context.Context, conn StreamOpener, connID string, interval time.Duration, monitor *status.Monitor) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var counter uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counter++
			if err := ping(ctx, conn, counter, connID, monitor); err != nil {
				log.Printf("qpiped: keepalive ping: %v", err)
			}
		}
	}
}

// ping opens one bi-stream, round-trips a ping/pong pair on it, and closes
// it; the server's control loop answers a ping on any stream, so no con1
// ever needs to be sent.
func ping(ctx context.Context, conn StreamOpener, n uint64, connID string, monitor *status.Monitor) error {
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("tunnel: open keepalive stream: %w", err)
	}
	defer stream.Close()

	tok := pingToken(n)
	start := time.Now()
	if err := wire.WritePing(stream, tok); err != nil {
		return fmt.Errorf("tunnel: write ping: %w", err)
	}
	got, err := wire.ReadPong(stream)
	if err != nil {
		return fmt.Errorf("tunnel: read pong: %w", err)
	}
	if got != tok {
		return fmt.Errorf("tunnel: pong token %v does not match ping token %v", got, tok)
	}
	if monitor != nil {
		monitor.RegisterPing(connID, time.Since(start))
	}
	return nil
}
