package occ

import (
	"context"
)

// doOperation is the generic retry/rebuild loop used by every send/receive/
// process operation (§4.3). It terminates on success, cancellation,
// disposal, or a veto from a failure handler.
func doOperation[T any](o *OCC, ctx context.Context, name string, op func(ch Channel) (T, error)) (T, error) {
	var zero T
	for {
		if o.isDisposed() {
			return zero, ErrDisposed
		}
		if err := ctx.Err(); err != nil {
			return zero, wrapCancel(err)
		}

		ch, err := o.holder.getChannel(ctx)
		if err != nil {
			return zero, err
		}

		result, err := op(ch)
		if err == nil {
			return result, nil
		}
		if isCancellation(err) {
			return zero, err
		}

		fci := FailedChannelInformation{
			ID:          ch.SessionID(),
			HasID:       true,
			State:       ch.State(),
			HasState:    true,
			IsConnected: isConnectedAndEstablished(ch),
			Err:         err,
			OperationName: name,
		}
		_ = o.holder.discard(ctx)

		outcome := o.handlers.notifyOperationFailed(fci)
		if outcome.err != nil {
			return zero, outcome.err
		}
		if !outcome.retry {
			return zero, &OperationFailedError{OperationName: name, Err: err}
		}
		// Loop: the next getChannel call rebuilds from scratch.
	}
}

// internalTimeoutContext returns a context usable for send operations,
// which use an internal token rather than a caller-supplied deadline.
// Disposal is still honored because doOperation polls it every iteration.
func internalTimeoutContext() context.Context {
	return context.Background()
}

// SendMessage sends a Message envelope, rebuilding the channel on failure
// per the handler-vetoed retry policy.
func (o *OCC) SendMessage(env Envelope) error {
	_, err := doOperation(o, internalTimeoutContext(), "send_message", func(ch Channel) (struct{}, error) {
		return struct{}{}, ch.SendMessage(env)
	})
	return err
}

// SendNotification sends a Notification envelope.
func (o *OCC) SendNotification(env Envelope) error {
	_, err := doOperation(o, internalTimeoutContext(), "send_notification", func(ch Channel) (struct{}, error) {
		return struct{}{}, ch.SendNotification(env)
	})
	return err
}

// SendCommand sends a Command envelope (request or response framing is the
// caller's concern; the core only moves bytes).
func (o *OCC) SendCommand(env Envelope) error {
	_, err := doOperation(o, internalTimeoutContext(), "send_command", func(ch Channel) (struct{}, error) {
		return struct{}{}, ch.SendCommand(env)
	})
	return err
}

// ReceiveMessage receives the next Message envelope. ctx is forwarded to
// both channel acquisition and the underlying receive.
func (o *OCC) ReceiveMessage(ctx context.Context) (Envelope, error) {
	return doOperation(o, ctx, "receive_message", func(ch Channel) (Envelope, error) {
		return ch.ReceiveMessage(ctx)
	})
}

// ReceiveNotification receives the next Notification envelope.
func (o *OCC) ReceiveNotification(ctx context.Context) (Envelope, error) {
	return doOperation(o, ctx, "receive_notification", func(ch Channel) (Envelope, error) {
		return ch.ReceiveNotification(ctx)
	})
}

// ReceiveCommand receives the next Command envelope.
func (o *OCC) ReceiveCommand(ctx context.Context) (Envelope, error) {
	return doOperation(o, ctx, "receive_command", func(ch Channel) (Envelope, error) {
		return ch.ReceiveCommand(ctx)
	})
}
