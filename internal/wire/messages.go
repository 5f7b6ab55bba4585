package wire

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// WriteData emits a data frame carrying buf. buf must be no longer than
// MaxDataLen; callers chunk larger payloads themselves. A zero-length buf
// is never sent (data_len=0 is reserved on the wire) — callers that have
// nothing left to send emit a fini frame instead.
func WriteData(w io.Writer, buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("wire: refusing to write empty data frame")
	}
	if len(buf) > MaxDataLen {
		return fmt.Errorf("wire: data payload %d exceeds %d", len(buf), MaxDataLen)
	}
	if err := WriteHeader(w, DataHeader(len(buf))); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}

// WriteFini emits an empty fini frame.
func WriteFini(w io.Writer) error {
	return WriteHeader(w, FiniHeader())
}

// WritePing emits a ping frame carrying the given 8-byte token.
func WritePing(w io.Writer, token [8]byte) error {
	if err := WriteHeader(w, PingHeader()); err != nil {
		return err
	}
	_, err := w.Write(token[:])
	return err
}

// WritePong emits a pong frame echoing the given 8-byte token.
func WritePong(w io.Writer, token [8]byte) error {
	if err := WriteHeader(w, PongHeader()); err != nil {
		return err
	}
	_, err := w.Write(token[:])
	return err
}

// ReadPong reads one header and body, succeeding iff the tag is "pong",
// returning the 8-byte token it echoes.
func ReadPong(r io.Reader) ([8]byte, error) {
	var tok [8]byte
	h, err := ReadHeader(r)
	if err != nil {
		return tok, err
	}
	if h.Tag != TagPong {
		_ = DiscardBody(r, h.DataLen)
		return tok, ErrUnexpectedFrame
	}
	if h.DataLen != 8 {
		_ = DiscardBody(r, h.DataLen)
		return tok, ErrMalformed
	}
	_, err = io.ReadFull(r, tok[:])
	return tok, err
}

// WriteError emits an errm frame: code as little-endian u32, then the
// message length as one byte, then the message bytes. msg is bounded to
// 255 bytes.
func WriteError(w io.Writer, code uint32, msg string) error {
	if len(msg) > 255 {
		return ErrMessageTooLong
	}
	body := make([]byte, 4+1+len(msg))
	body[0] = byte(code)
	body[1] = byte(code >> 8)
	body[2] = byte(code >> 16)
	body[3] = byte(code >> 24)
	body[4] = byte(len(msg))
	copy(body[5:], msg)
	if err := WriteHeader(w, ErrorHeader(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// parseErrorBody decodes an errm frame body that ReadErrorBody has already
// read into memory.
func parseErrorBody(body []byte) (code uint32, msg string, err error) {
	if len(body) < 5 {
		return 0, "", ErrMalformed
	}
	code = uint32(body[0]) | uint32(body[1])<<8 | uint32(body[2])<<16 | uint32(body[3])<<24
	msgLen := int(body[4])
	if len(body) < 5+msgLen {
		return 0, "", ErrMalformed
	}
	return code, string(body[5 : 5+msgLen]), nil
}

// ReadErrorBody reads an errm frame's body (n bytes as advertised by its
// header) from r and decodes it.
func ReadErrorBody(r io.Reader, n uint16) (code uint32, msg string, err error) {
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, "", err
	}
	return parseErrorBody(body)
}

// Establish is the body of a con1 frame.
type Establish struct {
	Protocol byte // 't' (TCP) or 'u' (UDP, reserved)
	AddrPort string
}

const (
	ProtoTCP byte = 't'
	ProtoUDP byte = 'u'
)

// WriteEstablish emits a con1 frame carrying e.
func WriteEstablish(w io.Writer, e Establish) error {
	if len(e.AddrPort) > 255 {
		return ErrAddressTooLong
	}
	body := make([]byte, 2+len(e.AddrPort))
	body[0] = e.Protocol
	body[1] = byte(len(e.AddrPort))
	copy(body[2:], e.AddrPort)
	if err := WriteHeader(w, Header{Tag: TagCon1, DataLen: uint16(len(body))}); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// ParseEstablish decodes a con1 frame body already read into memory.
func ParseEstablish(body []byte) (Establish, error) {
	if len(body) < 2 {
		return Establish{}, ErrMalformed
	}
	addrLen := int(body[1])
	if addrLen > len(body)-2 {
		return Establish{}, ErrMalformed
	}
	addr := body[2 : 2+addrLen]
	if !utf8.Valid(addr) {
		return Establish{}, ErrMalformed
	}
	return Establish{Protocol: body[0], AddrPort: string(addr)}, nil
}

// ReadEstablishBody reads a con1 frame's body (n bytes as advertised by its
// header) from r and decodes it.
func ReadEstablishBody(r io.Reader, n uint16) (Establish, error) {
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Establish{}, err
	}
	return ParseEstablish(body)
}

// ReadOkay reads one header and succeeds iff its tag is "okay". Any
// advertised body length is skipped (okay bodies are always empty in this
// protocol, but trailing bytes are tolerated).
func ReadOkay(r io.Reader) error {
	h, err := ReadHeader(r)
	if err != nil {
		return err
	}
	if h.Tag != TagOkay {
		if err := DiscardBody(r, h.DataLen); err != nil {
			return err
		}
		return ErrUnexpectedFrame
	}
	return DiscardBody(r, h.DataLen)
}

// WriteOkay emits an empty okay frame.
func WriteOkay(w io.Writer) error {
	return WriteHeader(w, EmptyHeader(TagOkay))
}
