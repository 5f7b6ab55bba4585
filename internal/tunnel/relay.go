// Package tunnel implements the per-stream state machine and the
// half-duplex relay engine that couples a local TCP socket to a remote TCP
// socket across one QUIC bi-stream.
package tunnel

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"golang.org/x/sync/errgroup"

	"qpiped/internal/status"
	"qpiped/internal/wire"
)

// chunkSize bounds each plain-to-framed read. Small enough to keep
// per-frame latency low on a live connection, large enough to amortize
// the 6-byte frame header.
const chunkSize = 256

// overlongLimit is the largest data_len this implementation accepts from
// its peer; the spec requires at least 8192.
const overlongLimit = 8192

// Relay couples plain (a TCP socket) to framed (a QUIC stream) and runs
// until both directions have finished, or either fails. When monitor is
// non-nil, every byte moved in either direction is reported to it for the
// status endpoint's bytes_relayed counter.
func Relay(plain net.Conn, framed io.ReadWriter, monitor *status.Monitor) error {
	g := new(errgroup.Group)

	var counted net.Conn = plain
	if monitor != nil {
		counted = &countingConn{Conn: plain, monitor: monitor}
	}

	g.Go(func() error {
		return plainToFramed(counted, framed)
	})
	g.Go(func() error {
		return framedToPlain(framed, counted)
	})

	return g.Wait()
}

// countingConn wraps a net.Conn, reporting every byte read or written to
// monitor so BytesRelayed reflects real tunnel traffic.
type countingConn struct {
	net.Conn
	monitor *status.Monitor
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.monitor.AddBytes(int64(n))
	}
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.monitor.AddBytes(int64(n))
	}
	return n, err
}

// CloseWrite half-closes the wrapped connection when it supports that, and
// closes it entirely otherwise.
func (c *countingConn) CloseWrite() error {
	if hc, ok := c.Conn.(halfCloser); ok {
		return hc.CloseWrite()
	}
	return c.Conn.Close()
}

// plainToFramed reads chunkSize bytes at a time from plain and emits one
// data frame per non-empty read, then a fini frame once plain reaches EOF.
func plainToFramed(plain io.Reader, framed io.Writer) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := plain.Read(buf)
		if n > 0 {
			if werr := wire.WriteData(framed, buf[:n]); werr != nil {
				return fmt.Errorf("tunnel: write data frame: %w", werr)
			}
		}
		if err != nil {
			if err == io.EOF {
				if werr := wire.WriteFini(framed); werr != nil {
					return fmt.Errorf("tunnel: write fini frame: %w", werr)
				}
				// Close just the send half of the QUIC stream, if framed
				// supports it; the receive half keeps working independently.
				if c, ok := framed.(io.Closer); ok {
					_ = c.Close()
				}
				return nil
			}
			return fmt.Errorf("tunnel: read local socket: %w", err)
		}
	}
}

// halfCloser lets the relay shut down the write side of the local socket
// without closing its read side; *net.TCPConn implements it, and the
// countingConn and limiter wrappers forward it to the conn they wrap.
type halfCloser interface {
	CloseWrite() error
}

// framedToPlain reads one frame at a time from framed and writes data
// payloads to plain, stopping cleanly on fini.
func framedToPlain(framed io.Reader, plain net.Conn) error {
	for {
		hdr, err := wire.ReadHeader(framed)
		if err != nil {
			return fmt.Errorf("tunnel: read frame header: %w", err)
		}

		switch hdr.Tag {
		case wire.TagData:
			if hdr.DataLen > overlongLimit {
				_ = wire.DiscardBody(framed, hdr.DataLen)
				return fmt.Errorf("tunnel: data frame of %d bytes exceeds %d-byte limit: %w", hdr.DataLen, overlongLimit, wire.ErrOverlongData)
			}
			body := make([]byte, hdr.DataLen)
			if _, err := io.ReadFull(framed, body); err != nil {
				return fmt.Errorf("tunnel: read data body: %w", err)
			}
			if len(body) > 0 {
				if _, err := plain.Write(body); err != nil {
					return fmt.Errorf("tunnel: write local socket: %w", err)
				}
			}
		case wire.TagFini:
			if hc, ok := plain.(halfCloser); ok {
				_ = hc.CloseWrite()
			} else {
				_ = plain.Close()
			}
			return nil
		default:
			_ = wire.DiscardBody(framed, hdr.DataLen)
			return fmt.Errorf("tunnel: unexpected frame tag %q during relay: %w", hdr.Tag.String(), wire.ErrUnexpectedFrame)
		}
	}
}

// pingToken generates an 8-byte token for a ping frame from a monotonically
// increasing counter, so replies can be correlated if several are in flight.
func pingToken(n uint64) [8]byte {
	var tok [8]byte
	binary.LittleEndian.PutUint64(tok[:], n)
	return tok
}
