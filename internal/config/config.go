// Package config loads qpiped's server and client configuration from YAML,
// following the teacher's duration/size string conventions and global log
// settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalLogConfig holds optional log rotation settings. An empty Filename
// means log to stderr.
type GlobalLogConfig struct {
	Filename   string `yaml:"Filename,omitempty"`
	MaxSize    int    `yaml:"MaxSize,omitempty"` // megabytes
	MaxBackups int    `yaml:"MaxBackups,omitempty"`
	MaxAge     int    `yaml:"MaxAge,omitempty"` // days
	Compress   bool   `yaml:"Compress,omitempty"`
}

// DurationString supports "10s", "5m" (only lowercase s/m) or a bare integer
// number of seconds.
type DurationString time.Duration

func (d *DurationString) UnmarshalYAML(value *yaml.Node) error {
	s := value.Value
	if value.Tag == "!!int" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*d = DurationString(time.Duration(v) * time.Second)
		return nil
	}
	if !(strings.HasSuffix(s, "s") || strings.HasSuffix(s, "m")) {
		return fmt.Errorf("invalid duration: %s (must end with 's' or 'm')", s)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = DurationString(dur)
	return nil
}

func (d DurationString) Duration() time.Duration {
	return time.Duration(d)
}

// SizeString supports "10K", "10M", "1G" (uppercase only) or a bare integer
// number of bytes.
type SizeString int64

func (s *SizeString) UnmarshalYAML(value *yaml.Node) error {
	raw := value.Value
	if value.Tag == "!!int" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*s = SizeString(v)
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty size string")
	}
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(raw, "K"):
		multiplier = 1 << 10
		raw = strings.TrimSuffix(raw, "K")
	case strings.HasSuffix(raw, "M"):
		multiplier = 1 << 20
		raw = strings.TrimSuffix(raw, "M")
	case strings.HasSuffix(raw, "G"):
		multiplier = 1 << 30
		raw = strings.TrimSuffix(raw, "G")
	default:
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return fmt.Errorf("invalid size string: %s (must end with 'K', 'M' or 'G')", value.Value)
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*s = SizeString(v * multiplier)
	return nil
}

// ServerConfig configures `qpiped serve`.
type ServerConfig struct {
	ListenAddr          string          `yaml:"ListenAddr"`
	StateDir            string          `yaml:"StateDir"`
	SANs                []string        `yaml:"SANs,omitempty"`
	IdleTimeout         DurationString  `yaml:"IdleTimeout,omitempty"`
	TotalBandwidthLimit SizeString      `yaml:"TotalBandwidthLimit,omitempty"`
	APIListenAddr       string          `yaml:"APIListenAddr,omitempty"`
	GlobalLog           *GlobalLogConfig `yaml:"GlobalLog,omitempty"`
}

// TargetPair maps one local listener to one remote dial target for a client
// tunnel definition.
type TargetPair struct {
	Name   string `yaml:"Name"`
	Listen string `yaml:"Listen"` // local bind, e.g. "127.0.0.1:2222"
	Target string `yaml:"Target"` // remote dial target, e.g. "10.0.0.5:22"
}

// ClientConfig configures `qpiped connect`.
type ClientConfig struct {
	ServerAddr          string           `yaml:"ServerAddr"`
	Targets             []TargetPair     `yaml:"Targets"`
	TotalBandwidthLimit SizeString       `yaml:"TotalBandwidthLimit,omitempty"`
	GlobalLog           *GlobalLogConfig `yaml:"GlobalLog,omitempty"`
}

// SetDefaults fills in zero-valued optional fields of a ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "[::]:60010"
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DurationString(5 * time.Minute)
	}
	if c.TotalBandwidthLimit == 0 {
		c.TotalBandwidthLimit = -1
	} else {
		c.TotalBandwidthLimit = c.TotalBandwidthLimit / 8
	}
	c.GlobalLog = defaultedLog(c.GlobalLog, "qpiped-server.log")
}

// SetDefaults fills in zero-valued optional fields of a ClientConfig.
func (c *ClientConfig) SetDefaults() {
	if c.TotalBandwidthLimit == 0 {
		c.TotalBandwidthLimit = -1
	} else {
		c.TotalBandwidthLimit = c.TotalBandwidthLimit / 8
	}
	c.GlobalLog = defaultedLog(c.GlobalLog, "qpiped-client.log")
}

func defaultedLog(l *GlobalLogConfig, defaultFilename string) *GlobalLogConfig {
	if l == nil {
		return &GlobalLogConfig{Filename: ""} // empty means stderr
	}
	if l.Filename == "" {
		l.Filename = defaultFilename
	}
	if l.MaxSize == 0 {
		l.MaxSize = 20
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = 5
	}
	if l.MaxAge == 0 {
		l.MaxAge = 28
	}
	return l
}

// LoadServerConfig loads and defaults a ServerConfig from a YAML file.
func LoadServerConfig(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// LoadClientConfig loads and defaults a ClientConfig from a YAML file.
func LoadClientConfig(path string) (*ClientConfig, error) {
	var cfg ClientConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return &cfg, nil
}

func loadYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
