package wire

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/occchan/internal/session"
	"github.com/danmuck/occchan/occ"
)

var (
	ErrConnClosed     = errors.New("wire: connection closed")
	ErrKindMismatch   = errors.New("wire: received envelope of unexpected kind")
	ErrSessionRejected = errors.New("wire: hello rejected by peer")
)

// Channel is a net.Conn-backed occ.Channel. One Channel owns exactly one
// connection; Release closes it. The OCC core may run several operations
// on one Channel at once, so every frame is written and read whole under
// writeMu / readMu. A receive takes whichever frame arrives next and fails
// with ErrKindMismatch when its kind is not the one asked for.
type Channel struct {
	conn net.Conn
	cfg  session.Config

	mu    sync.Mutex
	state session.State

	writeMu sync.Mutex
	readMu  sync.Mutex

	sessionID string
	closed    atomic.Bool
}

// DialAndEstablish opens a TCP connection to addr, optionally wraps it in
// TLS per cfg, and performs the hello/hello_ack session negotiation. On
// success it returns a Channel in session.StateEstablished.
func DialAndEstablish(ctx context.Context, addr string, cfg session.Config) (*Channel, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateClientTransport(); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	conn := rawConn
	if cfg.TLS.Enabled {
		tlsCfg, err := clientTLSConfig(addr, cfg.TLS)
		if err != nil {
			_ = rawConn.Close()
			return nil, err
		}
		tlsConn := tls.Client(rawConn, tlsCfg)
		handshakeCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
		if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
			_ = rawConn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	ch := &Channel{conn: conn, cfg: cfg, state: session.StateNegotiating}
	if err := ch.negotiate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ch, nil
}

func (c *Channel) negotiate(ctx context.Context) error {
	c.mu.Lock()
	c.state = session.StateNegotiating
	c.mu.Unlock()

	hello := Envelope{Kind: KindSession, Subtype: SubtypeHello}
	if err := c.writeEnvelope(ctx, hello); err != nil {
		return err
	}

	ack, err := c.readEnvelope(ctx)
	if err != nil {
		return err
	}
	if ack.Kind != KindSession || ack.Subtype != SubtypeHelloAck {
		return fmt.Errorf("%w: kind=%s subtype=%s", ErrSessionRejected, ack.Kind, ack.Subtype)
	}

	c.mu.Lock()
	c.sessionID = ack.ID
	c.state = session.StateEstablished
	c.mu.Unlock()
	return nil
}

func (c *Channel) SendMessage(env occ.Envelope) error {
	return c.send(context.Background(), KindMessage, env)
}

func (c *Channel) SendNotification(env occ.Envelope) error {
	return c.send(context.Background(), KindNotification, env)
}

func (c *Channel) SendCommand(env occ.Envelope) error {
	return c.send(context.Background(), KindCommand, env)
}

func (c *Channel) ReceiveMessage(ctx context.Context) (occ.Envelope, error) {
	return c.receive(ctx, KindMessage)
}

func (c *Channel) ReceiveNotification(ctx context.Context) (occ.Envelope, error) {
	return c.receive(ctx, KindNotification)
}

func (c *Channel) ReceiveCommand(ctx context.Context) (occ.Envelope, error) {
	return c.receive(ctx, KindCommand)
}

func (c *Channel) SendFinishingSession() error {
	c.mu.Lock()
	c.state = session.StateFinishing
	c.mu.Unlock()
	env := Envelope{Kind: KindSession, Subtype: SubtypeFinishing}
	return c.writeEnvelope(context.Background(), env)
}

func (c *Channel) ReceiveFinishedSession(ctx context.Context) (occ.Envelope, error) {
	wenv, err := c.readEnvelope(ctx)
	if err != nil {
		return occ.Envelope{}, err
	}
	if wenv.Kind != KindSession || wenv.Subtype != SubtypeFinished {
		return occ.Envelope{}, fmt.Errorf("%w: kind=%s subtype=%s", ErrKindMismatch, wenv.Kind, wenv.Subtype)
	}
	c.mu.Lock()
	c.state = session.StateFinished
	c.mu.Unlock()
	return toOCCEnvelope(wenv), nil
}

func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Channel) State() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) IsConnected() bool {
	return !c.closed.Load()
}

func (c *Channel) Release() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

func (c *Channel) send(ctx context.Context, kind Kind, env occ.Envelope) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	wenv, err := fromOCCEnvelope(kind, env)
	if err != nil {
		return err
	}
	return c.writeEnvelope(ctx, wenv)
}

func (c *Channel) receive(ctx context.Context, want Kind) (occ.Envelope, error) {
	if c.closed.Load() {
		return occ.Envelope{}, ErrConnClosed
	}
	wenv, err := c.readEnvelope(ctx)
	if err != nil {
		return occ.Envelope{}, err
	}
	if wenv.Kind != want {
		return occ.Envelope{}, fmt.Errorf("%w: want=%s got=%s", ErrKindMismatch, want, wenv.Kind)
	}
	return toOCCEnvelope(wenv), nil
}

func (c *Channel) writeEnvelope(ctx context.Context, env Envelope) error {
	payload, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.setWriteDeadline(ctx); err != nil {
		return err
	}
	return WriteFrame(c.conn, payload)
}

func (c *Channel) readEnvelope(ctx context.Context) (Envelope, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if err := c.setReadDeadline(ctx); err != nil {
		return Envelope{}, err
	}
	payload, err := ReadFrame(c.conn)
	if err != nil {
		return Envelope{}, err
	}
	return decodeEnvelope(payload)
}

func (c *Channel) setWriteDeadline(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.conn.SetWriteDeadline(deadline)
}

func (c *Channel) setReadDeadline(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.conn.SetReadDeadline(deadline)
}

func fromOCCEnvelope(kind Kind, env occ.Envelope) (Envelope, error) {
	raw := json.RawMessage(env.Payload)
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return Envelope{Kind: kind, Subtype: env.Subtype, ID: env.ID, Payload: raw}, nil
}

func toOCCEnvelope(wenv Envelope) occ.Envelope {
	return occ.Envelope{
		Kind:    occ.Kind(wenv.Kind),
		Subtype: wenv.Subtype,
		ID:      wenv.ID,
		Payload: []byte(wenv.Payload),
	}
}
