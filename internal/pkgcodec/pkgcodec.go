// Package pkgcodec encodes and parses the portable "package" a server
// operator hand-carries to a client: the server's CA certificate, the
// client's signed leaf certificate, and optionally the client's private key
// (the legacy path — see Bundle.ClientKey).
package pkgcodec

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	"qpiped/internal/wire"
)

// Magic is the ASCII prefix every package string carries.
const Magic = "qpipe1:"

// Bundle is the decoded contents of a package.
type Bundle struct {
	ServerCert []byte // DER
	ClientCert []byte // DER
	ClientKey  []byte // DER, optional: present only for the legacy server-generated-key path
}

// Write serializes b into the ASCII package format: Magic followed by
// standard-alphabet, padded base64 of the frame sequence scrt, ccrt,
// optional ckey, fini.
func Write(b Bundle) (string, error) {
	var raw bytes.Buffer

	if err := writeFrame(&raw, wire.TagScrt, b.ServerCert); err != nil {
		return "", err
	}
	if err := writeFrame(&raw, wire.TagCcrt, b.ClientCert); err != nil {
		return "", err
	}
	if len(b.ClientKey) > 0 {
		if err := writeFrame(&raw, wire.TagCkey, b.ClientKey); err != nil {
			return "", err
		}
	}
	if err := wire.WriteHeader(&raw, wire.FiniHeader()); err != nil {
		return "", err
	}

	return Magic + base64.StdEncoding.EncodeToString(raw.Bytes()), nil
}

// Read parses a package string produced by Write.
func Read(s string) (Bundle, error) {
	rest, ok := strings.CutPrefix(s, Magic)
	if !ok {
		return Bundle{}, wire.ErrBadMagic
	}

	raw, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return Bundle{}, wire.ErrBadBase64
	}

	r := bytes.NewReader(raw)
	var b Bundle
	for {
		h, err := wire.ReadHeader(r)
		if err != nil {
			return Bundle{}, err
		}
		switch h.Tag {
		case wire.TagFini:
			if err := wire.DiscardBody(r, h.DataLen); err != nil {
				return Bundle{}, err
			}
			return finish(b)
		case wire.TagScrt:
			if b.ServerCert, err = readBody(r, h.DataLen); err != nil {
				return Bundle{}, err
			}
		case wire.TagCcrt:
			if b.ClientCert, err = readBody(r, h.DataLen); err != nil {
				return Bundle{}, err
			}
		case wire.TagCkey:
			if b.ClientKey, err = readBody(r, h.DataLen); err != nil {
				return Bundle{}, err
			}
		default:
			return Bundle{}, wire.ErrUnexpectedFrame
		}
	}
}

func finish(b Bundle) (Bundle, error) {
	if len(b.ServerCert) == 0 || len(b.ClientCert) == 0 {
		return Bundle{}, wire.ErrMissingField
	}
	return b, nil
}

func writeFrame(w *bytes.Buffer, tag wire.Tag, body []byte) error {
	if err := wire.WriteHeader(w, wire.Header{Tag: tag, DataLen: uint16(len(body))}); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func readBody(r *bytes.Reader, n uint16) ([]byte, error) {
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
