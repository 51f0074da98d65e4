package occ

import (
	"context"
	"errors"
	"sync"
)

// holder guards the single optional underlying channel and serializes
// builds behind one mutex. At most one call to builder.BuildAndEstablish is
// in progress at any wall-clock instant.
type holder struct {
	builder  Builder
	handlers *handlerRegistry

	mu      sync.Mutex // guards current; also the single-flight build lock
	current Channel
}

func newHolder(builder Builder, handlers *handlerRegistry) *holder {
	return &holder{builder: builder, handlers: handlers}
}

// getChannel returns a usable channel, building one if necessary. Concurrent
// callers that arrive while no channel exists share one build: all but the
// one that acquires the mutex first block on it and then re-check usability.
func (h *holder) getChannel(ctx context.Context) (Channel, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, wrapCancel(err)
		}

		h.mu.Lock()
		if isConnectedAndEstablished(h.current) {
			ch := h.current
			h.mu.Unlock()
			return ch, nil
		}
		if h.current != nil {
			// Unusable: drop it before building a new one. Release is
			// best-effort and must not block clearing current.
			stale := h.current
			h.current = nil
			h.mu.Unlock()
			info := infoFor(stale)
			_ = stale.Release()
			_ = h.handlers.notifyDiscarded(info)
			continue
		}

		// h.current is nil and we hold the build lock: build.
		ch, err := h.builder.BuildAndEstablish(ctx)
		if err != nil {
			h.mu.Unlock()
			if ctx.Err() != nil {
				return nil, wrapCancel(ctx.Err())
			}
			fci := FailedChannelInformation{Err: err, OperationName: "build_and_establish"}
			outcome := h.handlers.notifyCreationFailed(fci)
			if outcome.err != nil {
				return nil, outcome.err
			}
			if !outcome.retry {
				return nil, &BuildFailedError{Err: err}
			}
			continue
		}

		h.current = ch
		info := infoFor(ch)
		// notifyCreated runs before the lock is released so a concurrent
		// caller blocked on h.mu can never observe the new channel from
		// getChannel before on_created has fired for it.
		notifyErr := h.handlers.notifyCreated(info)
		h.mu.Unlock()
		if notifyErr != nil {
			return nil, notifyErr
		}
		return ch, nil
	}
}

// discard drops the current channel, if any, releasing it best-effort and
// firing OnDiscarded with a snapshot of its identity.
func (h *holder) discard(ctx context.Context) error {
	h.mu.Lock()
	ch := h.current
	h.current = nil
	h.mu.Unlock()

	if ch == nil {
		return nil
	}
	info := infoFor(ch)
	_ = ch.Release()
	return h.handlers.notifyDiscarded(info)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCancelled)
}

func wrapCancel(err error) error {
	return &cancelError{err: err}
}

type cancelError struct{ err error }

func (e *cancelError) Error() string   { return ErrCancelled.Error() + ": " + e.err.Error() }
func (e *cancelError) Unwrap() error   { return e.err }
func (e *cancelError) Is(target error) bool {
	return target == ErrCancelled
}
