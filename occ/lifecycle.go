package occ

import "sync/atomic"

// OCC is the on-demand client channel: a façade that lazily builds an
// authenticated underlying channel via builder, serves send/receive/process
// operations through it, detects failure, and rebuilds while preserving
// concurrent-caller correctness. The zero value is not usable; construct
// with New.
type OCC struct {
	holder   *holder
	handlers *handlerRegistry
	disposed atomic.Bool
}

// New constructs an OCC over builder. No operation is performed and the
// builder is not invoked until the first demand operation.
func New(builder Builder) *OCC {
	handlers := newHandlerRegistry()
	return &OCC{
		holder:   newHolder(builder, handlers),
		handlers: handlers,
	}
}

// OnCreated registers a handler invoked exactly once per successful build,
// after the new channel has been stored but before any caller observes it
// returning from getChannel.
func (o *OCC) OnCreated(h InformationalHandler) { o.handlers.AddOnCreated(h) }

// OnDiscarded registers a handler invoked exactly once per channel removal
// (excluding Finish and Dispose, which release the channel without firing it).
func (o *OCC) OnDiscarded(h InformationalHandler) { o.handlers.AddOnDiscarded(h) }

// OnCreationFailed registers a veto handler invoked when Builder.BuildAndEstablish
// fails. If every registered handler returns true, the build is retried;
// otherwise the triggering error is returned to the caller wrapped in a
// *BuildFailedError (errors.Is and errors.As still reach it).
func (o *OCC) OnCreationFailed(h VetoHandler) { o.handlers.AddOnCreationFailed(h) }

// OnOperationFailed registers a veto handler invoked when an underlying
// channel operation fails. The failed channel is discarded before the
// handlers run. If every registered handler returns true, the operation is
// retried against a freshly built channel; otherwise the triggering error
// is returned to the caller wrapped in an *OperationFailedError.
func (o *OCC) OnOperationFailed(h VetoHandler) { o.handlers.AddOnOperationFailed(h) }

func (o *OCC) isDisposed() bool { return o.disposed.Load() }

// Dispose marks the OCC disposed and releases the current underlying
// channel, if any. Idempotent. After Dispose returns, every operation fails
// immediately with ErrDisposed, before the holder or any handler is
// consulted.
func (o *OCC) Dispose() error {
	if !o.disposed.CompareAndSwap(false, true) {
		return nil
	}
	o.holder.mu.Lock()
	ch := o.holder.current
	o.holder.current = nil
	o.holder.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Release()
}

// Disposed reports whether Dispose has been called.
func (o *OCC) Disposed() bool { return o.isDisposed() }
