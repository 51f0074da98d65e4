package builder

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/danmuck/occchan/internal/session"
)

func TestNewTCPBuilderRequiresAddress(t *testing.T) {
	if _, err := NewTCPBuilder(Config{}); err != ErrAddressRequired {
		t.Fatalf("err = %v, want ErrAddressRequired", err)
	}
}

func TestBuildAndEstablishGivesUpAfterMaxAttempts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}

	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = 200 * time.Millisecond
	cfg.MaxConnectAttempts = 2
	cfg.Backoff.InitialDelay = 5 * time.Millisecond
	cfg.Backoff.MaxDelay = 10 * time.Millisecond
	cfg.Backoff.Jitter = false

	b, err := NewTCPBuilder(Config{Address: addr, Session: cfg})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := b.BuildAndEstablish(ctx); err == nil {
		t.Fatalf("expected dial failure against closed port, got nil")
	}
}

func TestBuildAndEstablishHonorsCancellationDuringBackoff(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}

	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = 200 * time.Millisecond
	cfg.Backoff.InitialDelay = 5 * time.Second
	cfg.Backoff.Jitter = false

	b, err := NewTCPBuilder(Config{Address: addr, Session: cfg})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = b.BuildAndEstablish(ctx)
	if err == nil {
		t.Fatalf("expected cancellation error, got nil")
	}
}
