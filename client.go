// Package howlhouse is a client runtime for the HowlHouse social-audio
// service, aimed at automated participants that join rooms, exchange
// chat messages, and react to room and presence events pushed over a
// persistent websocket.
//
// A Client owns one logical connection. Inbound frames are dispatched
// on a single goroutine that updates the cache, resolves pending
// WaitFor calls, and fans events out to registered handlers, each run
// as its own goroutine so a slow handler never stalls dispatch.
package howlhouse

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/howlhouse/howlhouse-go/internal/session"
	"github.com/howlhouse/howlhouse-go/internal/wire"
)

// Client is a HowlHouse bot client.
type Client struct {
	opts  clientOptions
	log   zerolog.Logger
	creds session.Credentials

	cache    *Cache
	waiters  *waiterRegistry
	commands *commandTable

	handlersMu sync.RWMutex
	handlers   map[string][]EventHandler

	fetchMu sync.Mutex
	fetches map[string]string // fetchID -> originating opcode

	sess    *session.Session
	started atomic.Bool

	// send paths, indirected so dispatch logic is testable without a
	// live socket.
	sendFn      func(op string, d any) error
	sendFetchFn func(op string, d any, fetchID string) error
}

// New builds a client with the given credentials. Nothing connects
// until Run.
func New(accessToken, refreshToken string, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := zerolog.Nop()
	if o.logger != nil {
		logger = *o.logger
	}

	c := &Client{
		opts:     o,
		log:      logger,
		creds:    session.Credentials{AccessToken: accessToken, RefreshToken: refreshToken},
		cache:    newCache(),
		waiters:  newWaiterRegistry(),
		commands: newCommandTable(),
		handlers: make(map[string][]EventHandler),
		fetches:  make(map[string]string),
	}
	c.sendFn = func(op string, d any) error {
		if c.sess == nil {
			return ErrNotConnected
		}
		return c.sess.Send(op, d)
	}
	c.sendFetchFn = func(op string, d any, fetchID string) error {
		if c.sess == nil {
			return ErrNotConnected
		}
		return c.sess.SendFetch(op, d, fetchID)
	}
	return c
}

// Cache exposes the client's view of self, current room, and the room
// directory. Reads made inside an event handler observe the effects of
// the frame that triggered it.
func (c *Client) Cache() *Cache {
	return c.cache
}

// RegisterEvent subscribes a handler to a named event. Handlers for the
// same event run in registration order, each as its own goroutine.
func (c *Client) RegisterEvent(name string, h EventHandler) {
	c.handlersMu.Lock()
	c.handlers[name] = append(c.handlers[name], h)
	c.handlersMu.Unlock()
}

// Run connects, authenticates, and dispatches events until Close is
// called, the context is cancelled, or the connection fails fatally.
func (c *Client) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("client already running")
	}

	sess := session.New(session.Config{
		URL:               c.opts.url,
		Platform:          c.opts.platform,
		Muted:             c.opts.muted,
		ReconnectToVoice:  c.opts.reconnectToVoice,
		RoomID:            c.opts.room,
		HeartbeatInterval: c.opts.heartbeatInterval,
		LivenessWindow:    c.opts.livenessWindow,
		MaxReconnectTries: c.opts.maxReconnectTries,
		Logger:            &c.log,
	}, c.creds)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess.OnDrop(func(err error) {
		c.emit(runCtx, &Event{Name: EventError, Err: err})
	})

	c.sess = sess
	if err := sess.Connect(ctx); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	go c.roomsRefreshLoop(runCtx)

	for frame := range sess.Frames() {
		c.handleFrame(runCtx, frame)
	}

	cancel()
	c.waiters.failAll(ErrConnectionClosed)
	return sess.Err()
}

// Close shuts the connection down. It fails with ErrNotConnected when
// the client never connected or is already closed.
func (c *Client) Close() error {
	if c.sess == nil {
		return ErrNotConnected
	}
	return c.sess.Close()
}

// roomsRefreshLoop periodically refreshes the room directory while the
// client is not inside a room.
func (c *Client) roomsRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.roomsRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.cache.InRoom() {
				continue
			}
			if err := c.GetTopPublicRooms(0); err != nil {
				c.log.Debug().Err(err).Msg("periodic rooms refresh failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// fetch sends an op with a correlation ID the service echoes back on
// fetch_done.
func (c *Client) fetch(op string, d any) error {
	id := uuid.NewString()
	c.fetchMu.Lock()
	c.fetches[id] = op
	c.fetchMu.Unlock()

	if err := c.sendFetchFn(op, d, id); err != nil {
		c.fetchMu.Lock()
		delete(c.fetches, id)
		c.fetchMu.Unlock()
		return err
	}
	return nil
}

// takeFetch claims the opcode a fetch_done frame answers, removing the
// pending entry.
func (c *Client) takeFetch(fetchID string) (string, bool) {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	op, ok := c.fetches[fetchID]
	if ok {
		delete(c.fetches, fetchID)
	}
	return op, ok
}

// Send sends a chat message to the current room. Whisper targets, if
// any, are the only users shown the message.
func (c *Client) Send(message string, whisperTo ...string) error {
	if !c.cache.InRoom() {
		return fmt.Errorf("send: %w", ErrNotConnected)
	}
	if whisperTo == nil {
		whisperTo = []string{}
	}
	return c.sendFn(wire.OpSendRoomChatMsg, map[string]any{
		"whisperedTo": whisperTo,
		"tokens":      wire.Tokenize(message),
	})
}

// CreateRoom creates a room; the service responds with a correlated
// fetch_done and then moves the client into it, firing on_room_join.
func (c *Client) CreateRoom(name, description string, public bool) error {
	if n := utf8.RuneCountInString(name); n < 2 || n > 60 {
		return ErrInvalidRoomName
	}
	privacy := "private"
	if public {
		privacy = "public"
	}
	return c.fetch(wire.OpCreateRoom, map[string]any{
		"name":        name,
		"description": description,
		"privacy":     privacy,
	})
}

// JoinRoom requests to join a room as a listener.
func (c *Client) JoinRoom(roomID string) error {
	return c.sendFn(wire.OpJoinRoom, map[string]any{"roomId": roomID})
}

// GetTopPublicRooms refreshes the room directory. The periodic refresh
// calls this too; whichever response lands last wins.
func (c *Client) GetTopPublicRooms(cursor int) error {
	return c.fetch(wire.OpGetTopPublicRooms, map[string]any{"cursor": cursor})
}

// AskToSpeak raises the client's hand in the current room.
func (c *Client) AskToSpeak() error {
	if !c.cache.InRoom() {
		return fmt.Errorf("ask to speak: %w", ErrNotConnected)
	}
	return c.sendFn(wire.OpAskToSpeak, map[string]any{})
}

// AddSpeaker accepts a speaker request from a user.
func (c *Client) AddSpeaker(userID string) error {
	return c.sendFn(wire.OpAddSpeaker, map[string]any{"userId": userID})
}

// SetListener forces a user back to being a listener. An empty ID
// targets the client itself.
func (c *Client) SetListener(userID string) error {
	if userID == "" {
		self := c.cache.Self()
		if self == nil {
			return ErrNotConnected
		}
		userID = self.ID
	}
	return c.sendFn(wire.OpSetListener, map[string]any{"userId": userID})
}

// MakeMod grants a user room moderator permissions.
func (c *Client) MakeMod(userID string) error {
	return c.sendFn(wire.OpChangeModStatus, map[string]any{"userId": userID, "value": true})
}

// UnMod revokes a user's room moderator permissions.
func (c *Client) UnMod(userID string) error {
	return c.sendFn(wire.OpChangeModStatus, map[string]any{"userId": userID, "value": false})
}

// MakeAdmin hands room ownership to a user. Irreversible.
func (c *Client) MakeAdmin(userID string) error {
	return c.sendFn(wire.OpChangeRoomCreator, map[string]any{"userId": userID})
}

// BanChat bans a user from the room's chat.
func (c *Client) BanChat(userID string) error {
	return c.sendFn(wire.OpBanFromRoomChat, map[string]any{"userId": userID})
}

// Ban blocks a user from the room.
func (c *Client) Ban(userID string) error {
	return c.sendFn(wire.OpBlockFromRoom, map[string]any{"userId": userID})
}

// Unban lifts a room block.
func (c *Client) Unban(userID string) error {
	return c.fetch(wire.OpUnbanFromRoom, map[string]any{"userId": userID})
}

// DeleteMessage deletes a message sent by a user.
func (c *Client) DeleteMessage(messageID, userID string) error {
	return c.sendFn(wire.OpDeleteRoomChatMsg, map[string]any{
		"messageId": messageID,
		"userId":    userID,
	})
}

// GetUser resolves a user argument against the current room's
// membership: ID first, then username, then display name.
func (c *Client) GetUser(argument string) (*User, error) {
	if u, ok := c.cache.lookupMember(argument); ok {
		return &u, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrMemberNotFound, argument)
}

// FetchUser is GetUser with a fallback profile fetch: when the cache
// misses, it requests the profile from the service and waits for the
// correlated on_user_fetch event.
func (c *Client) FetchUser(ctx context.Context, argument string) (*User, error) {
	if u, err := c.GetUser(argument); err == nil {
		return u, nil
	}

	if err := c.fetch(wire.OpGetUserProfile, map[string]any{"userId": argument}); err != nil {
		return nil, err
	}

	ev, err := c.WaitFor(ctx, EventUserFetch, func(ev *Event) bool {
		return ev.User != nil && userMatches(*ev.User, argument)
	}, c.opts.waitTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (%v)", ErrMemberNotFound, argument, err)
	}
	return ev.User, nil
}
