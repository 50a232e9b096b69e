// Package config holds meshlink's programmatic configuration. There are no
// environment variables, flags, or on-disk files in the core — every knob
// is set by the embedding application via functional options.
package config

import (
	"time"

	"github.com/meshlink/meshlink/internal/netdetect"
	"github.com/meshlink/meshlink/signaling"
	"go.uber.org/zap"
)

// ICETransportPolicy mirrors the RTCIceTransportPolicy enum.
type ICETransportPolicy string

const (
	ICETransportPolicyAll   ICETransportPolicy = "all"
	ICETransportPolicyRelay ICETransportPolicy = "relay"
)

// Config is the resolved, immutable configuration a Peer/RoomMembership is
// built with.
type Config struct {
	// RTC is the ICE server list and related policy knobs passed to the
	// RTC collaborator. If unset when Load runs, it is taken from the
	// signaling adapter's RTCConfiguration().
	RTC signaling.RTCConfig

	// ICETransportPolicy defaults to "relay" when the host looks like it's
	// behind a VPN or CGNAT (see internal/netdetect), "all" otherwise. An
	// explicit Option always wins over the heuristic.
	ICETransportPolicy ICETransportPolicy

	// AliveInterval is the room heartbeat period. Default 5000ms.
	AliveInterval time.Duration

	// ChannelPollBaseDelay/MaxDelay/BackoffFactor govern the per-channel
	// pull loop's adaptive delay. Defaults: 100ms, 5000ms, 2.0.
	ChannelPollBaseDelay   time.Duration
	ChannelPollMaxDelay    time.Duration
	ChannelPollBackoffFactor float64

	// RoomPollBaseDelay/MaxDelay/BackoffFactor govern the room pull loop.
	// Defaults: 100ms, 5000ms, 1.5.
	RoomPollBaseDelay      time.Duration
	RoomPollMaxDelay       time.Duration
	RoomPollBackoffFactor  float64

	// Logger, if set, is used in place of the package default logger.
	Logger *zap.Logger
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithRTCConfig overrides the ICE server configuration.
func WithRTCConfig(rtc signaling.RTCConfig) Option {
	return func(c *Config) { c.RTC = rtc }
}

// WithICETransportPolicy overrides the ICE transport policy, bypassing the
// CGNAT/VPN heuristic.
func WithICETransportPolicy(policy ICETransportPolicy) Option {
	return func(c *Config) { c.ICETransportPolicy = policy }
}

// WithAliveInterval overrides the room heartbeat period.
func WithAliveInterval(d time.Duration) Option {
	return func(c *Config) { c.AliveInterval = d }
}

// WithChannelPoll overrides the channel pull loop's adaptive delay.
func WithChannelPoll(base, max time.Duration, backoffFactor float64) Option {
	return func(c *Config) {
		c.ChannelPollBaseDelay = base
		c.ChannelPollMaxDelay = max
		c.ChannelPollBackoffFactor = backoffFactor
	}
}

// WithRoomPoll overrides the room pull loop's adaptive delay.
func WithRoomPoll(base, max time.Duration, backoffFactor float64) Option {
	return func(c *Config) {
		c.RoomPollBaseDelay = base
		c.RoomPollMaxDelay = max
		c.RoomPollBackoffFactor = backoffFactor
	}
}

// WithLogger overrides the logger meshlink components log through.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Load builds a Config from defaults, the adapter's recommended RTC
// configuration, and the given options, in that order — each later source
// overrides the former, matching the teacher's CLI-flag > env > default
// priority chain but entirely in-process.
func Load(adapter signaling.Adapter, opts ...Option) Config {
	cfg := Config{
		RTC:                      signaling.DefaultRTCConfig(),
		ICETransportPolicy:       defaultICETransportPolicy(),
		AliveInterval:            5000 * time.Millisecond,
		ChannelPollBaseDelay:     100 * time.Millisecond,
		ChannelPollMaxDelay:      5000 * time.Millisecond,
		ChannelPollBackoffFactor: 2,
		RoomPollBaseDelay:        100 * time.Millisecond,
		RoomPollMaxDelay:         5000 * time.Millisecond,
		RoomPollBackoffFactor:    1.5,
	}

	if adapter != nil {
		cfg.RTC = adapter.RTCConfiguration()
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

func defaultICETransportPolicy() ICETransportPolicy {
	if netdetect.LooksLikeRestrictedNetwork() {
		return ICETransportPolicyRelay
	}
	return ICETransportPolicyAll
}
