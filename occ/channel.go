package occ

import (
	"context"

	"github.com/danmuck/occchan/internal/session"
)

// Builder establishes a ready-to-use Channel. BuildAndEstablish performs
// transport open, session negotiation, and authentication internally and is
// idempotent per call: every call is a fresh attempt.
type Builder interface {
	BuildAndEstablish(ctx context.Context) (Channel, error)
}

// Channel is the underlying-channel contract the core routes every
// send/receive/process operation through. Implementations own one physical
// connection; Release is idempotent.
type Channel interface {
	SendMessage(env Envelope) error
	SendNotification(env Envelope) error
	SendCommand(env Envelope) error

	ReceiveMessage(ctx context.Context) (Envelope, error)
	ReceiveNotification(ctx context.Context) (Envelope, error)
	ReceiveCommand(ctx context.Context) (Envelope, error)

	SendFinishingSession() error
	ReceiveFinishedSession(ctx context.Context) (Envelope, error)

	SessionID() string
	State() session.State
	IsConnected() bool

	Release() error
}

// infoFor snapshots a Channel's identity. Safe to call on a nil channel,
// returning the zero ChannelInformation.
func infoFor(ch Channel) ChannelInformation {
	if ch == nil {
		return ChannelInformation{}
	}
	return ChannelInformation{ID: ch.SessionID(), State: ch.State()}
}

// isConnectedAndEstablished reports whether ch is non-nil, reachable at the
// transport level, and in StateEstablished — the usability predicate used
// throughout the core.
func isConnectedAndEstablished(ch Channel) bool {
	if ch == nil {
		return false
	}
	return ch.IsConnected() && ch.State() == session.StateEstablished
}
