package occ

import (
	"context"
	"errors"
	"strings"
)

// UnrelatedCommandHandler receives a Command response whose id does not
// match the request ProcessCommand is waiting for.
type UnrelatedCommandHandler func(stray Envelope)

// ProcessCommand sends request and returns the single response envelope
// whose ID matches request.ID, layering a synchronous request/response
// protocol on top of raw send/receive. Non-matching responses are handed to
// unrelated if provided; otherwise ErrProtocolViolation is raised without
// touching the channel, since a protocol violation is a caller-visible
// logic mismatch, not a transport failure.
//
// The send and the receive-until-match are deliberately two separate
// doOperation-style steps, not one. Only the send step rebuilds and retries
// on failure: nothing has reached the peer yet, so resending on a fresh
// channel is safe. Once the send succeeds, a failure while waiting for the
// response is reported through the usual discard/OnOperationFailed path but
// never retried — request was already sent once, and replaying it on a
// rebuilt channel could deliver it to the peer twice. The caller sees the
// failure and decides whether to call ProcessCommand again.
func (o *OCC) ProcessCommand(ctx context.Context, request Envelope, unrelated UnrelatedCommandHandler) (Envelope, error) {
	if o.isDisposed() {
		return Envelope{}, ErrDisposed
	}
	if strings.TrimSpace(request.ID) == "" {
		return Envelope{}, ErrEmptyRequestID
	}

	ch, err := doOperation(o, ctx, "process_command_send", func(ch Channel) (Channel, error) {
		return ch, ch.SendCommand(request)
	})
	if err != nil {
		return Envelope{}, err
	}

	resp, err := awaitCommandResponse(ctx, ch, request, unrelated)
	if err != nil {
		return Envelope{}, o.failProcessCommand(ctx, ch, err)
	}
	return resp, nil
}

// awaitCommandResponse reads Command envelopes off ch until one matches
// request.ID. Responses that don't match are handed to unrelated if
// supplied; otherwise the first mismatch is a protocol violation.
func awaitCommandResponse(ctx context.Context, ch Channel, request Envelope, unrelated UnrelatedCommandHandler) (Envelope, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Envelope{}, wrapCancel(err)
		}
		resp, err := ch.ReceiveCommand(ctx)
		if err != nil {
			return Envelope{}, err
		}
		if resp.ID == request.ID {
			return resp, nil
		}
		if unrelated != nil {
			unrelated(resp)
			continue
		}
		return Envelope{}, ErrProtocolViolation
	}
}

// failProcessCommand reports a post-send ProcessCommand failure and returns
// the error the caller sees. A protocol violation leaves the channel alone:
// nothing about the transport is broken. Anything else is a real channel
// failure, reported through the same discard/OnOperationFailed path as
// every other operation, but the veto's retry verdict is never acted on
// here — ProcessCommand does not loop back and resend.
func (o *OCC) failProcessCommand(ctx context.Context, ch Channel, err error) error {
	if isCancellation(err) || errors.Is(err, ErrProtocolViolation) {
		return err
	}

	fci := FailedChannelInformation{
		ID:            ch.SessionID(),
		HasID:         true,
		State:         ch.State(),
		HasState:      true,
		IsConnected:   isConnectedAndEstablished(ch),
		Err:           err,
		OperationName: "process_command_receive",
	}
	_ = o.holder.discard(ctx)

	outcome := o.handlers.notifyOperationFailed(fci)
	if outcome.err != nil {
		return outcome.err
	}
	return &OperationFailedError{OperationName: "process_command_receive", Err: err}
}
