package quicconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/quic-go/quic-go"

	"qpiped/internal/wire"
)

// DialOne resolves serverAddr and opens exactly one QUIC connection to the
// first address found. If resolution returns more than one address the
// others are logged and ignored: qpiped never fans a single client
// invocation out across multiple server addresses.
func DialOne(ctx context.Context, serverAddr string, tlscfg *tls.Config, qcfg *quic.Config) (*quic.Conn, error) {
	host, port, err := net.SplitHostPort(serverAddr)
	if err != nil {
		return nil, fmt.Errorf("quicconn: bad server address %q: %w", serverAddr, err)
	}

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("quicconn: resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("quicconn: resolve %s: %w", host, wire.ErrResolutionEmpty)
	}
	if len(addrs) > 1 {
		log.Printf("qpiped: %s resolved to %d addresses, using %s", host, len(addrs), addrs[0])
	}

	dialAddr := net.JoinHostPort(addrs[0], port)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := quic.DialAddr(dialCtx, dialAddr, tlscfg, qcfg)
	if err != nil {
		return nil, fmt.Errorf("quicconn: dial %s: %w", dialAddr, err)
	}
	log.Printf("qpiped: connected to %s", dialAddr)
	return conn, nil
}
