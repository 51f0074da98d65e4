package occ

import "sync"

// InformationalHandler observes a channel creation or discard. Errors from
// every registered handler are collected and surfaced as an aggregate error
// to the caller of the triggering operation; a handler's failure never
// prevents later handlers in the list from running.
type InformationalHandler func(info ChannelInformation) error

// VetoHandler observes a build or operation failure and decides whether the
// core should retry. The combined verdict across every registered handler
// is true iff every handler returned true and none of them errored.
type VetoHandler func(info FailedChannelInformation) (bool, error)

// handlerRegistry holds the four append-only observer lists. Registration
// lists are snapshotted before each fan-out so concurrent mutation of a list
// never races with an in-flight invocation.
type handlerRegistry struct {
	mu               sync.RWMutex
	onCreated        []InformationalHandler
	onDiscarded      []InformationalHandler
	onCreationFailed []VetoHandler
	onOperationFailed []VetoHandler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{}
}

func (r *handlerRegistry) AddOnCreated(h InformationalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCreated = append(r.onCreated, h)
}

func (r *handlerRegistry) AddOnDiscarded(h InformationalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDiscarded = append(r.onDiscarded, h)
}

func (r *handlerRegistry) AddOnCreationFailed(h VetoHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCreationFailed = append(r.onCreationFailed, h)
}

func (r *handlerRegistry) AddOnOperationFailed(h VetoHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOperationFailed = append(r.onOperationFailed, h)
}

// notifyCreated runs every OnCreated handler in registration order,
// collecting all errors into an aggregate.
func (r *handlerRegistry) notifyCreated(info ChannelInformation) error {
	r.mu.RLock()
	handlers := r.snapshotInformationalLocked(r.onCreated)
	r.mu.RUnlock()
	return runInformational(handlers, info)
}

// notifyDiscarded runs every OnDiscarded handler in registration order.
func (r *handlerRegistry) notifyDiscarded(info ChannelInformation) error {
	r.mu.RLock()
	handlers := r.snapshotInformationalLocked(r.onDiscarded)
	r.mu.RUnlock()
	return runInformational(handlers, info)
}

// snapshotInformationalLocked must be called with r.mu held.
func (r *handlerRegistry) snapshotInformationalLocked(list []InformationalHandler) []InformationalHandler {
	out := make([]InformationalHandler, len(list))
	copy(out, list)
	return out
}

func runInformational(handlers []InformationalHandler, info ChannelInformation) error {
	var errs []error
	for _, h := range handlers {
		if err := h(info); err != nil {
			errs = append(errs, err)
		}
	}
	return aggregate(errs)
}

// vetoOutcome is the combined result of fanning a FailedChannelInformation
// out to every registered veto handler.
type vetoOutcome struct {
	// retry is true iff every handler returned true and none errored.
	retry bool
	// err aggregates every handler error (nil if none errored).
	err error
}

func (r *handlerRegistry) notifyCreationFailed(info FailedChannelInformation) vetoOutcome {
	r.mu.RLock()
	handlers := make([]VetoHandler, len(r.onCreationFailed))
	copy(handlers, r.onCreationFailed)
	r.mu.RUnlock()
	return runVeto(handlers, info)
}

func (r *handlerRegistry) notifyOperationFailed(info FailedChannelInformation) vetoOutcome {
	r.mu.RLock()
	handlers := make([]VetoHandler, len(r.onOperationFailed))
	copy(handlers, r.onOperationFailed)
	r.mu.RUnlock()
	return runVeto(handlers, info)
}

// runVeto invokes every handler (no short-circuit, per §4.1): all handlers
// run for one event. A handler that errors counts as a hard "do not retry"
// for the combined verdict regardless of what other handlers returned.
func runVeto(handlers []VetoHandler, info FailedChannelInformation) vetoOutcome {
	retry := true
	var errs []error
	for _, h := range handlers {
		ok, err := h(info)
		if err != nil {
			errs = append(errs, err)
			retry = false
			continue
		}
		if !ok {
			retry = false
		}
	}
	return vetoOutcome{retry: retry, err: aggregate(errs)}
}
