package pkgcodec

import (
	"encoding/base64"
	"errors"
	"testing"

	"qpiped/internal/wire"
)

func TestRoundTripWithoutKey(t *testing.T) {
	b := Bundle{
		ServerCert: []byte("fake-server-cert-der"),
		ClientCert: []byte("fake-client-cert-der"),
	}
	s, err := Write(b)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(s)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got.ServerCert) != string(b.ServerCert) || string(got.ClientCert) != string(b.ClientCert) {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if len(got.ClientKey) != 0 {
		t.Errorf("expected no client key, got %d bytes", len(got.ClientKey))
	}
}

func TestRoundTripWithLegacyKey(t *testing.T) {
	b := Bundle{
		ServerCert: []byte("scert"),
		ClientCert: []byte("ccert"),
		ClientKey:  []byte("ckey-der"),
	}
	s, err := Write(b)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(s)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got.ClientKey) != string(b.ClientKey) {
		t.Errorf("expected client key round trip, got %q", got.ClientKey)
	}
}

func TestReadBadMagic(t *testing.T) {
	_, err := Read("qpipe0:AAAA")
	if !errors.Is(err, wire.ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestReadBadBase64(t *testing.T) {
	_, err := Read("qpipe1:!!!")
	if !errors.Is(err, wire.ErrBadBase64) {
		t.Fatalf("expected ErrBadBase64, got %v", err)
	}
}

func TestReadMissingField(t *testing.T) {
	var raw []byte
	raw = append(raw, frameBytes(wire.TagScrt, []byte("s"))...)
	raw = append(raw, frameBytes(wire.TagFini, nil)...)
	s := Magic + base64.StdEncoding.EncodeToString(raw)

	_, err := Read(s)
	if !errors.Is(err, wire.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func frameBytes(tag wire.Tag, body []byte) []byte {
	out := make([]byte, 6+len(body))
	copy(out[:4], tag[:])
	out[4] = byte(len(body))
	out[5] = byte(len(body) >> 8)
	copy(out[6:], body)
	return out
}

func TestReadUnexpectedTag(t *testing.T) {
	// Build a raw body with an unknown frame tag and wrap it as a package.
	raw := []byte{'z', 'z', 'z', 'z', 0, 0}
	s := Magic + base64.StdEncoding.EncodeToString(raw)
	_, err := Read(s)
	if !errors.Is(err, wire.ErrUnexpectedFrame) {
		t.Fatalf("expected ErrUnexpectedFrame, got %v", err)
	}
}
