// Package session owns the websocket connection to the HowlHouse
// service: dialing, the authentication handshake, the heartbeat, and
// the reconnect policy. Parsed inbound frames are handed off in order
// through Frames; everything above this package deals in frames only.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/howlhouse/howlhouse-go/internal/wire"
)

// State is the connection lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Connected
	Reconnecting
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned when a connection-dependent call is
	// made with no active session.
	ErrNotConnected = errors.New("no connection has been established")
	// ErrInvalidAccessToken is returned when the service rejects the
	// authentication handshake. It is fatal and never retried.
	ErrInvalidAccessToken = errors.New("access token rejected by the service")
	// ErrConnectionLost marks an unexpected socket closure that the
	// reconnect policy is absorbing.
	ErrConnectionLost = errors.New("connection lost")
)

// Close code the service uses for rejected credentials.
const statusAuthRejected websocket.StatusCode = 4004

const authTimeout = 15 * time.Second

// Credentials are the two opaque bearer strings supplied at
// construction. The refresh token never leaves this package.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Config carries the fixed-for-lifetime session settings.
type Config struct {
	URL               string
	Platform          string
	Muted             bool
	ReconnectToVoice  bool
	RoomID            string // room to resume into on auth, if any
	HeartbeatInterval time.Duration
	LivenessWindow    time.Duration // max silence after a ping before forcing a reconnect
	ReconnectBackoff  time.Duration
	MaxReconnectTries int // 0 means unlimited
	Logger            *zerolog.Logger
}

type outbound struct {
	raw []byte
}

// Session is the single logical connection to the service.
type Session struct {
	cfg Config
	log zerolog.Logger

	credMu sync.Mutex
	creds  Credentials

	connMu sync.Mutex
	conn   *websocket.Conn

	state atomic.Int32

	frames    chan wire.Frame
	sendCh    chan outbound
	lastPong  atomic.Int64 // unix nanos of the last heartbeat ack
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	// onDrop is invoked once per unexpected disconnect, before the
	// reconnect policy runs.
	onDrop func(error)

	errMu  sync.Mutex
	runErr error
}

// New builds a session. It does not connect.
func New(cfg Config, creds Credentials) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 8 * time.Second
	}
	if cfg.LivenessWindow <= 0 {
		cfg.LivenessWindow = 3 * cfg.HeartbeatInterval
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = time.Second
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Session{
		cfg:    cfg,
		log:    logger.With().Str("component", "session").Logger(),
		creds:  creds,
		frames: make(chan wire.Frame, 64),
		sendCh: make(chan outbound, 64),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Frames is the ordered stream of parsed inbound frames. It is closed
// when the session ends, after which Err reports the terminal error.
func (s *Session) Frames() <-chan wire.Frame {
	return s.frames
}

// Err returns the terminal error once Frames is closed. A clean Close
// yields nil.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.runErr
}

// OnDrop registers a hook invoked when the socket closes unexpectedly
// and the reconnect policy takes over. Must be set before Connect.
func (s *Session) OnDrop(fn func(error)) {
	s.onDrop = fn
}

// SetCredentials rotates the tokens used for future handshakes.
// Invoked when the service issues new tokens mid-session.
func (s *Session) SetCredentials(creds Credentials) {
	s.credMu.Lock()
	s.creds = creds
	s.credMu.Unlock()
}

// Credentials returns the current token pair.
func (s *Session) Credentials() Credentials {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	return s.creds
}

// Connect dials the service and runs the authentication handshake.
// On success the heartbeat and pump goroutines are started. On a
// rejected handshake it fails with ErrInvalidAccessToken and performs
// no retries.
func (s *Session) Connect(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
		return fmt.Errorf("connect in state %s", s.State())
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	if err := s.dial(ctx); err != nil {
		s.state.Store(int32(Disconnected))
		s.cancel()
		return err
	}

	go s.readPump()
	go s.writePump()
	go s.heartbeat()

	return nil
}

// dial opens the socket and authenticates. Frames received while
// waiting for the auth acknowledgment (token rotations, for one) are
// forwarded so nothing is dropped.
func (s *Session) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	conn.SetReadLimit(1 << 22)

	s.state.Store(int32(Authenticating))

	creds := s.Credentials()
	if expired, exp := accessTokenExpired(creds.AccessToken, time.Now()); expired {
		// The refresh token in the auth payload lets the service mint a
		// fresh pair, delivered back via a new-tokens frame.
		s.log.Warn().Time("expired_at", exp).Msg("access token expired, relying on refresh token")
	}

	auth, err := wire.Encode(wire.OpAuth, authPayload{
		AccessToken:      creds.AccessToken,
		RefreshToken:     creds.RefreshToken,
		ReconnectToVoice: s.cfg.ReconnectToVoice,
		Muted:            s.cfg.Muted,
		CurrentRoomID:    s.cfg.RoomID,
		Platform:         s.cfg.Platform,
	}, "")
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode auth")
		return err
	}
	if err := conn.Write(dialCtx, websocket.MessageText, auth); err != nil {
		conn.Close(websocket.StatusInternalError, "write auth")
		return fmt.Errorf("send auth: %w", err)
	}

	for {
		_, data, err := conn.Read(dialCtx)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "auth read")
			if websocket.CloseStatus(err) == statusAuthRejected {
				return ErrInvalidAccessToken
			}
			return fmt.Errorf("read auth reply: %w", err)
		}

		frame, err := wire.Decode(data)
		if err != nil {
			s.log.Debug().Err(err).Msg("bad frame during handshake")
			continue
		}

		s.forward(frame)
		if frame.Op == wire.OpAuthGood {
			break
		}
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.lastPong.Store(time.Now().UnixNano())
	s.state.Store(int32(Connected))
	s.log.Info().Str("url", s.cfg.URL).Msg("authenticated")
	return nil
}

type authPayload struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ReconnectToVoice bool   `json:"reconnectToVoice"`
	Muted            bool   `json:"muted"`
	CurrentRoomID    string `json:"currentRoomId,omitempty"`
	Platform         string `json:"platform"`
}

// Send encodes and queues one frame. Frames queued while disconnected
// are dropped by the write pump; callers must assume in-flight sends
// during a disconnect are lost.
func (s *Session) Send(op string, d any) error {
	return s.SendFetch(op, d, "")
}

// SendFetch is Send with a fetch correlation ID attached.
func (s *Session) SendFetch(op string, d any, fetchID string) error {
	if s.State() != Connected {
		return ErrNotConnected
	}
	raw, err := wire.Encode(op, d, fetchID)
	if err != nil {
		return err
	}
	select {
	case s.sendCh <- outbound{raw: raw}:
		return nil
	case <-s.ctx.Done():
		return ErrNotConnected
	}
}

// Close shuts the session down: stops the heartbeat, sends a close
// frame if the socket is open, and transitions to Closed. Calling it
// with no live session fails with ErrNotConnected.
func (s *Session) Close() error {
	st := s.State()
	if st == Disconnected || st == Closed {
		return ErrNotConnected
	}
	s.state.Store(int32(Closed))
	s.cancel()

	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (s *Session) currentConn() *websocket.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Session) forward(frame wire.Frame) {
	select {
	case s.frames <- frame:
	case <-s.ctx.Done():
	}
}

// fail records the terminal error and closes the frame stream.
func (s *Session) fail(err error) {
	s.errMu.Lock()
	if s.runErr == nil {
		s.runErr = err
	}
	s.errMu.Unlock()
	if s.State() != Closed {
		s.state.Store(int32(Closed))
	}
	s.cancel()
	s.closeOnce.Do(func() { close(s.frames) })
}

// readPump reads frames for the life of the session. On an unexpected
// socket closure it runs the reconnect policy inline so frame ordering
// is preserved across reconnects.
func (s *Session) readPump() {
	defer s.closeOnce.Do(func() { close(s.frames) })

	for {
		conn := s.currentConn()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(s.ctx)
		if err != nil {
			if s.State() == Closed || s.ctx.Err() != nil {
				return
			}
			if !s.reconnect(err) {
				return
			}
			continue
		}

		frame, err := wire.Decode(data)
		if err != nil {
			s.log.Debug().Err(err).Msg("dropping undecodable frame")
			continue
		}
		if frame.Op == wire.Pong {
			s.lastPong.Store(time.Now().UnixNano())
			continue
		}

		s.forward(frame)
	}
}

// reconnect re-runs the handshake with the current credentials after an
// unexpected disconnect. No outbound frames are replayed. Returns false
// when the session is over: closed, or retries exhausted, with the
// terminal error recorded via fail.
func (s *Session) reconnect(cause error) bool {
	s.state.Store(int32(Reconnecting))
	s.log.Warn().Err(cause).Msg("socket closed unexpectedly, reconnecting")
	if s.onDrop != nil {
		s.onDrop(fmt.Errorf("%w: %v", ErrConnectionLost, cause))
	}

	backoff := s.cfg.ReconnectBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		err := s.dial(s.ctx)
		if err == nil {
			s.log.Info().Int("attempt", attempt).Msg("reconnected")
			return true
		}
		if errors.Is(err, ErrInvalidAccessToken) {
			s.fail(err)
			return false
		}
		if s.cfg.MaxReconnectTries > 0 && attempt >= s.cfg.MaxReconnectTries {
			s.fail(fmt.Errorf("reconnect failed after %d attempts: %w", attempt, err))
			return false
		}

		s.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// writePump serializes all socket writes through one goroutine.
func (s *Session) writePump() {
	for {
		select {
		case out := <-s.sendCh:
			conn := s.currentConn()
			if conn == nil {
				continue
			}
			if err := conn.Write(s.ctx, websocket.MessageText, out.raw); err != nil {
				// The read pump notices the dead socket and reconnects;
				// this frame is lost per the delivery contract.
				s.log.Debug().Err(err).Msg("write failed, frame dropped")
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// heartbeat sends the liveness frame on a fixed interval while
// connected, and forces a reconnect when the ack goes missing for
// longer than the liveness window.
func (s *Session) heartbeat() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.State() != Connected {
				continue
			}
			silence := time.Since(time.Unix(0, s.lastPong.Load()))
			if silence > s.cfg.LivenessWindow {
				s.log.Warn().Dur("silence", silence).Msg("heartbeat ack overdue, forcing reconnect")
				if conn := s.currentConn(); conn != nil {
					conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
				}
				continue
			}
			select {
			case s.sendCh <- outbound{raw: []byte(wire.Ping)}:
			default:
				s.log.Debug().Msg("send queue full, skipping heartbeat tick")
			}
		case <-s.ctx.Done():
			return
		}
	}
}
