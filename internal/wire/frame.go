// Package wire implements the frame codec and message layer carried over a
// QUIC bi-directional stream: a fixed 6-byte header followed by a typed
// body. See the protocol's wire format for the full tag table.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
)

// MaxDataLen is the largest payload a single data frame may carry.
const MaxDataLen = 65535

// Tag identifies a frame kind on the wire: four ASCII bytes.
type Tag [4]byte

var (
	TagData = Tag{'d', 'a', 't', 'a'}
	TagFini = Tag{'f', 'i', 'n', 'i'}
	TagPing = Tag{'p', 'i', 'n', 'g'}
	TagPong = Tag{'p', 'o', 'n', 'g'}
	TagErrm = Tag{'e', 'r', 'r', 'm'}
	TagCon1 = Tag{'c', 'o', 'n', '1'}
	TagOkay = Tag{'o', 'k', 'a', 'y'}
	TagScrt = Tag{'s', 'c', 'r', 't'}
	TagCcrt = Tag{'c', 'c', 'r', 't'}
	TagCkey = Tag{'c', 'k', 'e', 'y'}
)

func (t Tag) String() string { return string(t[:]) }

// IsExtension reports whether t falls in the reserved "xt??" extension
// space. Receivers must tolerate these by reading and discarding the body.
func (t Tag) IsExtension() bool { return t[0] == 'x' && t[1] == 't' }

// Header is the 6-byte frame header: a four-byte tag followed by a
// little-endian uint16 body length.
type Header struct {
	Tag     Tag
	DataLen uint16
}

const headerLen = 6

// ReadHeader consumes exactly 6 bytes from r and decodes them into a
// Header. It does not consume the body. Returns ErrShortRead if r ends
// before 6 bytes are available.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [headerLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, ErrShortRead
		}
		return Header{}, err
	}
	var h Header
	copy(h.Tag[:], buf[:4])
	h.DataLen = binary.LittleEndian.Uint16(buf[4:6])
	return h, nil
}

// WriteHeader encodes and writes a 6-byte header. Callers are responsible
// for serializing writes to the same underlying stream; WriteHeader itself
// performs a single Write call so the header bytes are never interleaved
// with a concurrent writer's own single Write.
func WriteHeader(w io.Writer, h Header) error {
	var buf [headerLen]byte
	copy(buf[:4], h.Tag[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.DataLen)
	_, err := w.Write(buf[:])
	return err
}

// DataHeader builds a header for a data frame of the given payload length.
// Panics if length exceeds MaxDataLen; callers must chunk beforehand.
func DataHeader(length int) Header {
	if length > MaxDataLen {
		panic("wire: data frame too long")
	}
	return Header{Tag: TagData, DataLen: uint16(length)}
}

// FiniHeader builds a fini frame header; fini carries no body.
func FiniHeader() Header { return Header{Tag: TagFini} }

// PingHeader builds a ping frame header; the body is always an 8-byte token.
func PingHeader() Header { return Header{Tag: TagPing, DataLen: 8} }

// PongHeader builds a pong frame header; the body is always an 8-byte token.
func PongHeader() Header { return Header{Tag: TagPong, DataLen: 8} }

// ErrorHeader builds an errm frame header for a body of the given length.
func ErrorHeader(bodyLen int) Header {
	return Header{Tag: TagErrm, DataLen: uint16(bodyLen)}
}

// EmptyHeader builds a header for any frame kind whose body is always
// zero-length (okay, fini, and similar fixed-shape frames).
func EmptyHeader(tag Tag) Header { return Header{Tag: tag, DataLen: 0} }

// DiscardBody reads and discards exactly n bytes from r, the behavior
// required of receivers for frame kinds they don't otherwise understand
// (in particular the "xt??" reserved extension space).
func DiscardBody(r io.Reader, n uint16) error {
	if n == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, int64(n))
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
