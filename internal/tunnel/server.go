package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"

	"qpiped/internal/limiter"
	"qpiped/internal/status"
	"qpiped/internal/wire"
)

// HandleServerStream runs the server-side state machine for one accepted
// bi-stream: Control, answering pings and unrecognised frames, until a
// con1 establishes a target; Dialing, resolving and connecting to it;
// Relaying, pumping bytes both ways; then Draining as the relay completes.
func HandleServerStream(framed io.ReadWriteCloser, monitor *status.Monitor, sl *limiter.SharedLimiter) error {
	defer framed.Close()

	est, err := control(framed)
	if err != nil {
		if errors.Is(err, wire.ErrShortRead) {
			// The peer closed the stream before ever sending con1 — a
			// keepalive ping/pong exchange, or a client that simply hung
			// up. Neither is a stream failure worth logging.
			return nil
		}
		return err
	}

	conn, err := dial(framed, est)
	if err != nil {
		return err
	}
	defer conn.Close()

	if sl != nil {
		conn = sl.WrapConn(conn)
	}

	if monitor != nil {
		monitor.IncStream()
		defer monitor.DecStream()
	}

	return Relay(conn, framed, monitor)
}

// control loops reading frames until a con1 establishes the target,
// answering ping, silently discarding reserved xt?? extension frames, and
// rejecting other unrecognised tags with an errm along the way.
func control(framed io.ReadWriter) (wire.Establish, error) {
	for {
		hdr, err := wire.ReadHeader(framed)
		if err != nil {
			return wire.Establish{}, fmt.Errorf("tunnel: control read: %w", err)
		}

		switch hdr.Tag {
		case wire.TagPing:
			tok, err := readToken(framed, hdr.DataLen)
			if err != nil {
				return wire.Establish{}, err
			}
			if err := wire.WritePong(framed, tok); err != nil {
				return wire.Establish{}, fmt.Errorf("tunnel: write pong: %w", err)
			}
		case wire.TagCon1:
			body := make([]byte, hdr.DataLen)
			if _, err := io.ReadFull(framed, body); err != nil {
				return wire.Establish{}, fmt.Errorf("tunnel: read con1 body: %w", err)
			}
			est, err := wire.ParseEstablish(body)
			if err != nil {
				return wire.Establish{}, fmt.Errorf("tunnel: parse establish: %w", err)
			}
			return est, nil
		default:
			if err := wire.DiscardBody(framed, hdr.DataLen); err != nil {
				return wire.Establish{}, fmt.Errorf("tunnel: discard unrecognised frame body: %w", err)
			}
			if hdr.Tag.IsExtension() {
				continue
			}
			if err := wire.WriteError(framed, wire.CodeUnrecognisedFrame, "unrecognised frame"); err != nil {
				return wire.Establish{}, fmt.Errorf("tunnel: write errm: %w", err)
			}
		}
	}
}

func readToken(r io.Reader, n uint16) ([8]byte, error) {
	var tok [8]byte
	if n != 8 {
		if err := wire.DiscardBody(r, n); err != nil {
			return tok, err
		}
		return tok, nil
	}
	if _, err := io.ReadFull(r, tok[:]); err != nil {
		return tok, fmt.Errorf("tunnel: read ping token: %w", err)
	}
	return tok, nil
}

// dial resolves and connects to est's target, reporting failure to the
// client via errm before returning an error (closing the gap the spec
// flags in its error-handling notes).
func dial(framed io.ReadWriter, est wire.Establish) (net.Conn, error) {
	if est.Protocol != wire.ProtoTCP {
		_ = wire.WriteError(framed, wire.CodeUnsupportedProto, "unsupported protocol")
		return nil, fmt.Errorf("tunnel: %w", wire.ErrUnsupportedProto)
	}

	host, port, err := net.SplitHostPort(est.AddrPort)
	if err != nil {
		_ = wire.WriteError(framed, wire.CodeResolutionEmpty, "could not resolve target")
		return nil, fmt.Errorf("tunnel: split %s: %w", est.AddrPort, err)
	}

	addrs, err := net.DefaultResolver.LookupHost(context.Background(), host)
	if err == nil && len(addrs) == 0 {
		err = wire.ErrResolutionEmpty
	}
	if err != nil {
		_ = wire.WriteError(framed, wire.CodeResolutionEmpty, "could not resolve target")
		return nil, fmt.Errorf("tunnel: resolve %s: %w", est.AddrPort, err)
	}

	// Dial the exact address just resolved rather than handing the
	// hostname back to net.Dial, which would re-resolve independently and
	// could pick a different address than the one checked above.
	conn, err := net.Dial("tcp", net.JoinHostPort(addrs[0], port))
	if err != nil {
		_ = wire.WriteError(framed, wire.CodeDialFailed, "dial failed")
		return nil, fmt.Errorf("tunnel: dial %s: %w", est.AddrPort, err)
	}

	if err := wire.WriteOkay(framed); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tunnel: write okay: %w", err)
	}

	log.Printf("qpiped: tunnel established to %s", est.AddrPort)
	return conn, nil
}

