package client

import (
	"time"

	"factorio-headless-client/internal/config"
	"factorio-headless-client/internal/savedata"
)

// Option mutates the ConnectOptions used for one Connect call (spec §6).
type Option func(*config.Options)

// WithHeartbeatHz overrides the client-side send cadence.
func WithHeartbeatHz(hz int) Option {
	return func(o *config.Options) { o.HeartbeatHz = hz }
}

// WithRetransmitMs overrides the reliable retransmit interval.
func WithRetransmitMs(ms int) Option {
	return func(o *config.Options) { o.RetransmitMs = ms }
}

// WithRetryCap overrides the reliable retransmit limit.
func WithRetryCap(n int) Option {
	return func(o *config.Options) { o.RetryCap = n }
}

// WithAckWindowMs overrides the max deferral of piggy-back acks.
func WithAckWindowMs(ms int) Option {
	return func(o *config.Options) { o.AckWindowMs = ms }
}

// WithFragmentTTLMs overrides the fragment reassembly timeout, measured
// from the arrival of a group's first piece.
func WithFragmentTTLMs(ms int) Option {
	return func(o *config.Options) { o.FragmentTTLMs = ms }
}

// WithMaxSnapshotEntities overrides the soft cap on accepted entities.
func WithMaxSnapshotEntities(n int) Option {
	return func(o *config.Options) { o.MaxSnapshotEntities = n }
}

// WithDecoderConfig overrides the save decoder's scanner filter
// constants (spec §9), the same override-the-struct shape as the other
// With* options.
func WithDecoderConfig(cfg savedata.DecoderConfig) Option {
	return func(o *config.Options) { o.Decoder = cfg }
}

// FromConfig replaces the whole option set with opts, typically the
// result of config.Load on a YAML file. Options are applied in the order
// given, so an Option listed after FromConfig overrides its values and
// one listed before it is overwritten.
func FromConfig(opts config.Options) Option {
	return func(o *config.Options) { *o = opts }
}

func heartbeatInterval(o config.Options) time.Duration {
	if o.HeartbeatHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(o.HeartbeatHz)
}
