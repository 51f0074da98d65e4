// Package builder implements occ.Builder over a TCP (optionally TLS)
// transport, with its own internal dial-retry loop independent of the OCC
// core's handler-vetoed rebuild loop.
package builder

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/danmuck/occchan/internal/session"
	"github.com/danmuck/occchan/internal/wire"
	"github.com/danmuck/occchan/occ"
)

var ErrAddressRequired = errors.New("builder: address required")

// Config configures one TCPBuilder.
type Config struct {
	Address string
	Session session.Config
}

// TCPBuilder dials Address and negotiates a session on every call to
// BuildAndEstablish, retrying internally per Session.Backoff and
// Session.MaxConnectAttempts before giving up and returning the last error
// to the OCC core, which then consults its own OnCreationFailed handlers.
type TCPBuilder struct {
	cfg Config
	rng *rand.Rand
}

// NewTCPBuilder validates cfg and fills in transport defaults.
func NewTCPBuilder(cfg Config) (*TCPBuilder, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &TCPBuilder{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// BuildAndEstablish implements occ.Builder.
func (b *TCPBuilder) BuildAndEstablish(ctx context.Context) (occ.Channel, error) {
	var attempt int
	for {
		attempt++
		ch, err := wire.DialAndEstablish(ctx, b.cfg.Address, b.cfg.Session)
		if err == nil {
			return ch, nil
		}
		if !b.shouldRetry(attempt) {
			return nil, err
		}
		if err := b.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (b *TCPBuilder) shouldRetry(attempt int) bool {
	if b.cfg.Session.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < b.cfg.Session.MaxConnectAttempts
}

func (b *TCPBuilder) sleepBackoff(ctx context.Context, attempt int) error {
	delay := session.NextBackoffDelay(b.cfg.Session.Backoff, attempt, b.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
