package occ

import (
	"context"

	"github.com/danmuck/occchan/internal/session"
)

// Finish performs the graceful termination path: if a current channel
// exists and is Established, send a finishing Session envelope and await a
// Finished response; the channel is then released unconditionally. Finish
// does not fire OnDiscarded — this is graceful termination, not a
// failure-driven discard.
func (o *OCC) Finish(ctx context.Context) error {
	if o.isDisposed() {
		return ErrDisposed
	}

	o.holder.mu.Lock()
	ch := o.holder.current
	o.holder.current = nil
	o.holder.mu.Unlock()

	if ch == nil {
		return nil
	}
	defer func() { _ = ch.Release() }()

	if ch.State() != session.StateEstablished {
		return nil
	}

	if err := ch.SendFinishingSession(); err != nil {
		return err
	}
	_, err := ch.ReceiveFinishedSession(ctx)
	return err
}
