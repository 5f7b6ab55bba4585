package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationStringUnmarshalYAML(t *testing.T) {
	cases := []struct {
		input     string
		isInt     bool
		expect    time.Duration
		shouldErr bool
	}{
		{"10s", false, 10 * time.Second, false},
		{"5m", false, 5 * time.Minute, false},
		{"15", true, 15 * time.Second, false},
		{"bad", false, 0, true},
		{"10h", false, 0, true},
	}
	for _, c := range cases {
		var d DurationString
		var node yaml.Node
		node.Value = c.input
		if c.isInt {
			node.Tag = "!!int"
		}
		err := d.UnmarshalYAML(&node)
		if c.shouldErr && err == nil {
			t.Errorf("input %q: expected error, got none", c.input)
		}
		if !c.shouldErr && (err != nil || d.Duration() != c.expect) {
			t.Errorf("input %q: got %v, err %v, want %v", c.input, d.Duration(), err, c.expect)
		}
	}
}

func TestSizeStringUnmarshalYAML(t *testing.T) {
	cases := []struct {
		input     string
		expect    int64
		shouldErr bool
	}{
		{"10K", 10 << 10, false},
		{"2M", 2 << 20, false},
		{"1G", 1 << 30, false},
		{"100", 100, false},
		{"bad", 0, true},
		{"10k", 0, true},
	}
	for _, c := range cases {
		var s SizeString
		var node yaml.Node
		node.Value = c.input
		err := s.UnmarshalYAML(&node)
		if c.shouldErr && err == nil {
			t.Errorf("input %q: expected error, got none", c.input)
		}
		if !c.shouldErr && (err != nil || int64(s) != c.expect) {
			t.Errorf("input %q: got %d, err %v, want %d", c.input, int64(s), err, c.expect)
		}
	}
}

func TestServerConfigSetDefaults(t *testing.T) {
	var c ServerConfig
	c.SetDefaults()
	if c.ListenAddr != "[::]:60010" {
		t.Errorf("unexpected default listen addr: %q", c.ListenAddr)
	}
	if c.IdleTimeout.Duration() != 5*time.Minute {
		t.Errorf("unexpected default idle timeout: %v", c.IdleTimeout.Duration())
	}
	if c.TotalBandwidthLimit != -1 {
		t.Errorf("expected unthrottled default, got %d", c.TotalBandwidthLimit)
	}
	if c.GlobalLog == nil || c.GlobalLog.Filename != "" {
		t.Errorf("expected default log config to target stderr, got %+v", c.GlobalLog)
	}
}

func TestServerConfigBandwidthConvertsBitsToBytes(t *testing.T) {
	c := ServerConfig{TotalBandwidthLimit: 800}
	c.SetDefaults()
	if c.TotalBandwidthLimit != 100 {
		t.Errorf("expected 800 bits/s to become 100 bytes/s, got %d", c.TotalBandwidthLimit)
	}
}

func TestClientConfigSetDefaults(t *testing.T) {
	var c ClientConfig
	c.SetDefaults()
	if c.GlobalLog == nil {
		t.Fatal("expected a default log config")
	}
}
