package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/occchan/internal/builder"
	"github.com/danmuck/occchan/internal/session"
)

// ClientConfig is the TOML shape consumed by cmd/occ-client. Durations are
// expressed in milliseconds: BurntSushi/toml decodes bare integers, not
// Go duration strings, without a custom TextUnmarshaler.
type ClientConfig struct {
	Address              string        `toml:"address"`
	SecurityMode         string        `toml:"security_mode"`
	ConnectTimeoutMS     int64         `toml:"connect_timeout_ms"`
	HandshakeTimeoutMS   int64         `toml:"handshake_timeout_ms"`
	ReadTimeoutMS        int64         `toml:"read_timeout_ms"`
	WriteTimeoutMS       int64         `toml:"write_timeout_ms"`
	AckTimeoutMS         int64         `toml:"ack_timeout_ms"`
	MaxConnectAttempts   int           `toml:"max_connect_attempts"`
	Backoff              BackoffConfig `toml:"backoff"`
	TLS                  TLSConfig     `toml:"tls"`
}

type BackoffConfig struct {
	InitialDelayMS int64   `toml:"initial_delay_ms"`
	Multiplier     float64 `toml:"multiplier"`
	MaxDelayMS     int64   `toml:"max_delay_ms"`
	Jitter         bool    `toml:"jitter"`
}

type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	ServerName         string `toml:"server_name"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// LoadClientConfig reads and validates path and defaults an empty
// security_mode to development. Timing fields left at zero stay zero here;
// BuilderConfig fills them from session.DefaultConfig.
func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if strings.TrimSpace(cfg.Address) == "" {
		return ClientConfig{}, fmt.Errorf("config %s: address is required", path)
	}
	if cfg.SecurityMode == "" {
		cfg.SecurityMode = string(session.SecurityModeDevelopment)
	}
	return cfg, nil
}

// BuilderConfig converts the TOML-shaped ClientConfig into the
// internal/builder.Config consumed to construct an occ.Builder.
func (c ClientConfig) BuilderConfig() builder.Config {
	defaults := session.DefaultConfig()
	sess := session.Config{
		SecurityMode:       session.SecurityMode(c.SecurityMode),
		ConnectTimeout:     orDefault(millis(c.ConnectTimeoutMS), defaults.ConnectTimeout),
		HandshakeTimeout:   orDefault(millis(c.HandshakeTimeoutMS), defaults.HandshakeTimeout),
		ReadTimeout:        orDefault(millis(c.ReadTimeoutMS), defaults.ReadTimeout),
		WriteTimeout:       orDefault(millis(c.WriteTimeoutMS), defaults.WriteTimeout),
		AckTimeout:         orDefault(millis(c.AckTimeoutMS), defaults.AckTimeout),
		MaxConnectAttempts: c.MaxConnectAttempts,
		Backoff: session.BackoffConfig{
			InitialDelay: orDefault(millis(c.Backoff.InitialDelayMS), defaults.Backoff.InitialDelay),
			Multiplier:   orDefaultFloat(c.Backoff.Multiplier, defaults.Backoff.Multiplier),
			MaxDelay:     orDefault(millis(c.Backoff.MaxDelayMS), defaults.Backoff.MaxDelay),
			Jitter:       c.Backoff.Jitter,
		},
		TLS: session.TLSConfig{
			Enabled:            c.TLS.Enabled,
			Mutual:             c.TLS.Mutual,
			ServerName:         c.TLS.ServerName,
			CAFile:             c.TLS.CAFile,
			CertFile:           c.TLS.CertFile,
			KeyFile:            c.TLS.KeyFile,
			InsecureSkipVerify: c.TLS.InsecureSkipVerify,
		},
	}
	return builder.Config{Address: c.Address, Session: sess}
}

func millis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

func orDefault(v, d time.Duration) time.Duration {
	if v == 0 {
		return d
	}
	return v
}

func orDefaultFloat(v, d float64) float64 {
	if v == 0 {
		return d
	}
	return v
}
