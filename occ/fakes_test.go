package occ

import (
	"context"
	"fmt"
	"sync"

	"github.com/danmuck/occchan/internal/session"
)

// fakeChannel is a minimal, fully in-memory Channel used to drive the core
// state machine without a real transport.
type fakeChannel struct {
	mu sync.Mutex

	id       string
	state    session.State
	connected bool
	released bool

	sendMessageErr      error
	sendNotificationErr error
	sendCommandErr      error
	receiveErr          error

	sentMessages      []Envelope
	sentNotifications []Envelope
	sentCommands      []Envelope

	commandInbox []Envelope

	finishingSent bool
	finishedResp  Envelope
	finishedErr   error
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id, state: session.StateEstablished, connected: true}
}

func (c *fakeChannel) SendMessage(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendMessageErr != nil {
		return c.sendMessageErr
	}
	c.sentMessages = append(c.sentMessages, env)
	return nil
}

func (c *fakeChannel) SendNotification(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendNotificationErr != nil {
		return c.sendNotificationErr
	}
	c.sentNotifications = append(c.sentNotifications, env)
	return nil
}

func (c *fakeChannel) SendCommand(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendCommandErr != nil {
		return c.sendCommandErr
	}
	c.sentCommands = append(c.sentCommands, env)
	return nil
}

func (c *fakeChannel) ReceiveMessage(ctx context.Context) (Envelope, error) {
	return c.receiveAny(ctx)
}

func (c *fakeChannel) ReceiveNotification(ctx context.Context) (Envelope, error) {
	return c.receiveAny(ctx)
}

func (c *fakeChannel) ReceiveCommand(ctx context.Context) (Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiveErr != nil {
		return Envelope{}, c.receiveErr
	}
	if len(c.commandInbox) == 0 {
		return Envelope{}, fmt.Errorf("fakeChannel: command inbox empty")
	}
	env := c.commandInbox[0]
	c.commandInbox = c.commandInbox[1:]
	return env, nil
}

func (c *fakeChannel) receiveAny(ctx context.Context) (Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.receiveErr != nil {
		return Envelope{}, c.receiveErr
	}
	select {
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	default:
	}
	return Envelope{}, fmt.Errorf("fakeChannel: nothing to receive")
}

func (c *fakeChannel) SendFinishingSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishingSent = true
	return nil
}

func (c *fakeChannel) ReceiveFinishedSession(ctx context.Context) (Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finishedErr != nil {
		return Envelope{}, c.finishedErr
	}
	return c.finishedResp, nil
}

func (c *fakeChannel) SessionID() string { return c.id }

func (c *fakeChannel) State() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.connected = false
	return nil
}

// fakeBuilder replays a fixed script of (channel, error) results, one per
// call to BuildAndEstablish, then repeats its last entry indefinitely.
type fakeBuilder struct {
	mu      sync.Mutex
	script  []fakeBuildResult
	calls   int
}

type fakeBuildResult struct {
	ch  Channel
	err error
}

func newFakeBuilder(script ...fakeBuildResult) *fakeBuilder {
	return &fakeBuilder{script: script}
}

func (b *fakeBuilder) BuildAndEstablish(ctx context.Context) (Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.calls
	if idx >= len(b.script) {
		idx = len(b.script) - 1
	}
	b.calls++
	r := b.script[idx]
	return r.ch, r.err
}

func (b *fakeBuilder) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
