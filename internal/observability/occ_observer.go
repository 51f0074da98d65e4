package observability

import (
	"github.com/rs/zerolog"

	"github.com/danmuck/occchan/occ"
)

// OCCLogger wires a zerolog.Logger into an OCC's four observer lists. The
// core itself never logs; this is opt-in diagnostic logging bolted on from
// the outside, exactly like any other caller-registered handler set.
type OCCLogger struct {
	log zerolog.Logger
}

// NewOCCLogger builds an OCCLogger over log.
func NewOCCLogger(log zerolog.Logger) *OCCLogger {
	return &OCCLogger{log: log}
}

// Attach registers all four handlers on o. Every handler returns a nil
// error / true verdict: this observer only logs, it never vetoes or fails.
func (l *OCCLogger) Attach(o *occ.OCC) {
	o.OnCreated(l.onCreated)
	o.OnDiscarded(l.onDiscarded)
	o.OnCreationFailed(l.onCreationFailed)
	o.OnOperationFailed(l.onOperationFailed)
}

func (l *OCCLogger) onCreated(info occ.ChannelInformation) error {
	l.log.Info().Str("session_id", info.ID).Str("state", info.State.String()).Msg("occ channel created")
	return nil
}

func (l *OCCLogger) onDiscarded(info occ.ChannelInformation) error {
	l.log.Warn().Str("session_id", info.ID).Str("state", info.State.String()).Msg("occ channel discarded")
	return nil
}

func (l *OCCLogger) onCreationFailed(info occ.FailedChannelInformation) (bool, error) {
	l.log.Error().Err(info.Err).Str("op", info.OperationName).Msg("occ build failed, retrying")
	return true, nil
}

func (l *OCCLogger) onOperationFailed(info occ.FailedChannelInformation) (bool, error) {
	l.log.Error().Err(info.Err).Str("op", info.OperationName).Str("session_id", info.ID).Msg("occ operation failed, rebuilding")
	return true, nil
}
