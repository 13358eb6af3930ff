package howlhouse

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultURL is the service's production websocket endpoint.
const DefaultURL = "wss://api.howlhouse.dev/socket"

const (
	defaultHeartbeatInterval    = 8 * time.Second
	defaultRoomsRefreshInterval = 2 * time.Minute
	defaultWaitTimeout          = 60 * time.Second
)

type clientOptions struct {
	url                  string
	platform             string
	prefixes             []string
	room                 string
	muted                bool
	reconnectToVoice     bool
	heartbeatInterval    time.Duration
	livenessWindow       time.Duration
	roomsRefreshInterval time.Duration
	waitTimeout          time.Duration
	maxReconnectTries    int
	logger               *zerolog.Logger
}

func defaultOptions() clientOptions {
	return clientOptions{
		url:                  DefaultURL,
		platform:             "howlhouse-go",
		prefixes:             []string{"!"},
		heartbeatInterval:    defaultHeartbeatInterval,
		roomsRefreshInterval: defaultRoomsRefreshInterval,
		waitTimeout:          defaultWaitTimeout,
	}
}

// Option configures a Client at construction. All settings are fixed
// for the client's lifetime.
type Option func(*clientOptions)

// WithURL points the client at a non-default service endpoint.
func WithURL(url string) Option {
	return func(o *clientOptions) { o.url = url }
}

// WithPrefixes replaces the command prefix set (default "!").
func WithPrefixes(prefixes ...string) Option {
	return func(o *clientOptions) {
		if len(prefixes) > 0 {
			o.prefixes = prefixes
		}
	}
}

// WithRoom makes the client join the given room after authentication.
func WithRoom(roomID string) Option {
	return func(o *clientOptions) { o.room = roomID }
}

// WithMuted connects the client muted.
func WithMuted(muted bool) Option {
	return func(o *clientOptions) { o.muted = muted }
}

// WithReconnectToVoice asks the service to restore voice state after a
// reconnect.
func WithReconnectToVoice(v bool) Option {
	return func(o *clientOptions) { o.reconnectToVoice = v }
}

// WithHeartbeatInterval overrides the liveness frame interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.heartbeatInterval = d
		}
	}
}

// WithLivenessWindow overrides how long a heartbeat ack may go missing
// before the session forces a reconnect.
func WithLivenessWindow(d time.Duration) Option {
	return func(o *clientOptions) { o.livenessWindow = d }
}

// WithRoomsRefreshInterval overrides the periodic room-directory
// refresh interval.
func WithRoomsRefreshInterval(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.roomsRefreshInterval = d
		}
	}
}

// WithWaitTimeout overrides the default WaitFor timeout used by
// implicit correlated fetches.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithMaxReconnectTries bounds the reconnect policy; zero means retry
// indefinitely.
func WithMaxReconnectTries(n int) Option {
	return func(o *clientOptions) { o.maxReconnectTries = n }
}

// WithLogger attaches a zerolog logger. The default is a no-op logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}
