// Package occ implements the on-demand client channel: a façade that lazily
// builds an authenticated underlying channel, serves send/receive/process
// operations through it, detects failure, and rebuilds while preserving
// concurrent-caller correctness.
//
// The core never logs and never interprets envelope payloads; both are
// left to the caller and to handlers registered on the four observer lists.
package occ

import (
	"github.com/danmuck/occchan/internal/session"
)

// Kind identifies which of the four protocol envelope kinds an Envelope carries.
type Kind string

const (
	KindMessage      Kind = "message"
	KindNotification Kind = "notification"
	KindCommand      Kind = "command"
	KindSession      Kind = "session"
)

// Envelope is the unit exchanged over an underlying channel. Payload is
// opaque to the core; callers encode/decode their own application data.
type Envelope struct {
	Kind    Kind
	Subtype string
	ID      string
	Payload []byte
}

// ChannelInformation is an immutable snapshot taken at channel creation or
// discard time. It never carries the underlying channel itself.
type ChannelInformation struct {
	ID    string
	State session.State
}

// FailedChannelInformation is passed to veto handlers (OnCreationFailed,
// OnOperationFailed) describing the channel and the error that triggered
// the failure path.
type FailedChannelInformation struct {
	ID            string
	HasID         bool
	State         session.State
	HasState      bool
	IsConnected   bool
	Err           error
	OperationName string
}
