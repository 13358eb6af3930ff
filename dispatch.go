package howlhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/howlhouse/howlhouse-go/internal/session"
	"github.com/howlhouse/howlhouse-go/internal/wire"
)

// handleFrame turns one decoded frame into exactly one named event and
// drives the reactions in fixed order: the built-in cache mutation runs
// first and synchronously, then emit resolves pending waits and fans
// out to handlers. Unknown opcodes are ignored for forward
// compatibility.
func (c *Client) handleFrame(ctx context.Context, frame wire.Frame) {
	switch frame.Op {
	case wire.OpAuthGood:
		var d struct {
			User User `json:"user"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad auth-good payload")
			return
		}
		c.cache.setSelf(d.User)
		c.emit(ctx, &Event{Name: EventReady, Raw: frame.D, User: &d.User})

	case wire.OpNewTokens:
		var d struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad new-tokens payload")
			return
		}
		if c.sess != nil {
			c.sess.SetCredentials(session.Credentials{
				AccessToken:  d.AccessToken,
				RefreshToken: d.RefreshToken,
			})
		}
		c.log.Info().Msg("credentials rotated by the service")

	case wire.OpFetchDone:
		c.handleFetchDone(ctx, frame)

	case wire.OpJoinRoomDone:
		var d struct {
			Room Room `json:"room"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad join_room_done payload")
			return
		}
		var seed []User
		if self := c.cache.Self(); self != nil {
			seed = []User{*self}
		}
		c.cache.setRoom(d.Room, seed)
		// Membership is fetched eagerly so handlers can enumerate the
		// room soon after joining; on_room_users_fetch is the
		// authoritative completion signal.
		if err := c.sendFn(wire.OpGetCurrentRoomUsers, map[string]any{}); err != nil {
			c.log.Warn().Err(err).Msg("implicit membership fetch failed")
		}
		room := c.cache.Room()
		c.emit(ctx, &Event{Name: EventRoomJoin, Raw: frame.D, Room: room, AsSpeaker: false})

	case wire.OpJoinedAsSpeaker:
		c.emit(ctx, &Event{Name: EventRoomJoin, Raw: frame.D, Room: c.cache.Room(), AsSpeaker: true})

	case wire.OpCurrentRoomUsersDone:
		var d struct {
			Users []User `json:"users"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad room users payload")
			return
		}
		c.cache.replaceMembers(d.Users)
		c.emit(ctx, &Event{Name: EventRoomUsersFetch, Raw: frame.D, Room: c.cache.Room()})

	case wire.OpNewUserJoinRoom:
		var d struct {
			User User `json:"user"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad user join payload")
			return
		}
		c.cache.addMember(d.User)
		c.emit(ctx, &Event{Name: EventUserJoin, Raw: frame.D, User: &d.User})

	case wire.OpUserLeftRoom:
		var d struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad user leave payload")
			return
		}
		// A leave for an unknown member is a no-op; duplicate or
		// out-of-order frames must not invent events.
		user, ok := c.cache.removeMember(d.UserID)
		if !ok {
			return
		}
		// The client itself leaving (or being kicked) ends the room:
		// room-dependent calls must fail until the next join.
		if self := c.cache.Self(); self != nil && self.ID == d.UserID {
			c.cache.clearRoom()
		}
		c.emit(ctx, &Event{Name: EventUserLeave, Raw: frame.D, User: &user})

	case wire.OpNewChatMsg:
		var d struct {
			Msg Message `json:"msg"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad chat message payload")
			return
		}
		msg := d.Msg
		c.emit(ctx, &Event{Name: EventMessage, Raw: frame.D, Message: &msg})

		// The client's own messages never trigger commands.
		if self := c.cache.Self(); self != nil && self.ID == msg.Author.ID {
			return
		}
		go c.routeMessage(ctx, &msg)

	case wire.OpMessageDeleted:
		var d struct {
			MessageID string `json:"messageId"`
			DeleterID string `json:"deleterId"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad message delete payload")
			return
		}
		c.emit(ctx, &Event{Name: EventMessageDelete, Raw: frame.D, MessageID: d.MessageID, DeleterID: d.DeleterID})

	case wire.OpSpeakerAdded:
		var d struct {
			UserID  string          `json:"userId"`
			RoomID  string          `json:"roomId"`
			MuteMap map[string]bool `json:"muteMap"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad speaker added payload")
			return
		}
		if user, ok := c.cache.updateMember(d.UserID, func(u *User) {
			u.Permissions.IsSpeaker = true
		}); ok {
			c.emit(ctx, &Event{Name: EventSpeakerAdd, Raw: frame.D, User: &user, MuteMap: d.MuteMap})
		}

	case wire.OpSpeakerRemoved:
		var d struct {
			UserID       string          `json:"userId"`
			RoomID       string          `json:"roomId"`
			MuteMap      map[string]bool `json:"muteMap"`
			RaiseHandMap map[string]bool `json:"raiseHandMap"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad speaker removed payload")
			return
		}
		if user, ok := c.cache.updateMember(d.UserID, func(u *User) {
			u.Permissions.IsSpeaker = false
		}); ok {
			c.emit(ctx, &Event{
				Name: EventSpeakerDelete, Raw: frame.D,
				User: &user, MuteMap: d.MuteMap, RaiseHandMap: d.RaiseHandMap,
			})
		}

	case wire.OpChatUserBanned:
		var d struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad chat ban payload")
			return
		}
		c.emit(ctx, &Event{Name: EventUserBan, Raw: frame.D, UserID: d.UserID})

	case wire.OpHandRaised:
		var d struct {
			UserID string `json:"userId"`
			RoomID string `json:"roomId"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad hand raised payload")
			return
		}
		c.emit(ctx, &Event{Name: EventSpeakerRequest, Raw: frame.D, UserID: d.UserID, RoomID: d.RoomID})

	case wire.OpModChanged:
		c.handlePermissionChange(ctx, frame, "mod")

	case wire.OpNewRoomCreator:
		c.handlePermissionChange(ctx, frame, "admin")

	default:
		c.log.Debug().Str("op", frame.Op).Msg("ignoring unknown opcode")
	}
}

// handleFetchDone routes a correlated fetch response to the reaction
// for the opcode that initiated it. Responses for fetches this client
// never issued are dropped.
func (c *Client) handleFetchDone(ctx context.Context, frame wire.Frame) {
	op, ok := c.takeFetch(frame.FetchID)
	if !ok {
		c.log.Debug().Str("fetch_id", frame.FetchID).Msg("fetch_done for unknown fetch")
		return
	}

	switch op {
	case wire.OpGetTopPublicRooms:
		var d struct {
			Rooms []Room `json:"rooms"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad rooms payload")
			return
		}
		c.cache.replaceDirectory(d.Rooms)
		c.emit(ctx, &Event{Name: EventRoomsFetch, Raw: frame.D, Rooms: d.Rooms})

	case wire.OpCreateRoom:
		var d struct {
			Room Room `json:"room"`
		}
		if err := json.Unmarshal(frame.D, &d); err != nil {
			c.log.Warn().Err(err).Msg("bad created room payload")
			return
		}
		var seed []User
		if self := c.cache.Self(); self != nil {
			seed = []User{*self}
		}
		c.cache.setRoom(d.Room, seed)

	case wire.OpGetUserProfile:
		var u User
		if err := json.Unmarshal(frame.D, &u); err != nil {
			c.log.Warn().Err(err).Msg("bad user profile payload")
			return
		}
		if room := c.cache.Room(); room != nil && u.CurrentRoomID == room.ID {
			c.cache.updateMember(u.ID, func(member *User) { *member = u })
		}
		c.emit(ctx, &Event{Name: EventUserFetch, Raw: frame.D, User: &u})

	default:
		c.log.Debug().Str("op", op).Msg("fetch_done for unhandled opcode")
	}
}

func (c *Client) handlePermissionChange(ctx context.Context, frame wire.Frame, kind string) {
	var d struct {
		UserID string `json:"userId"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.D, &d); err != nil {
		c.log.Warn().Err(err).Msg("bad permission change payload")
		return
	}

	if kind == "admin" {
		// Ownership is exclusive: the previous admin loses the flag.
		demoted := c.cache.eachMember(func(u *User) bool {
			if u.ID != d.UserID && u.Permissions.IsAdmin {
				u.Permissions.IsAdmin = false
				return true
			}
			return false
		})
		for i := range demoted {
			c.emit(ctx, &Event{Name: EventPermissionChange, Raw: frame.D, User: &demoted[i], Permission: kind})
		}
	}

	if user, ok := c.cache.updateMember(d.UserID, func(u *User) {
		switch kind {
		case "mod":
			u.Permissions.IsMod = !u.Permissions.IsMod
		case "admin":
			u.Permissions.IsAdmin = true
		}
	}); ok {
		c.emit(ctx, &Event{Name: EventPermissionChange, Raw: frame.D, User: &user, Permission: kind})
	}
}

// emit resolves at most one pending wait for the event, then invokes
// every registered handler in registration order, each as its own
// goroutine. An on_error event with no handler is recorded, never
// re-raised into the dispatch loop.
func (c *Client) emit(ctx context.Context, ev *Event) {
	c.waiters.resolve(ev)

	c.handlersMu.RLock()
	handlers := c.handlers[ev.Name]
	c.handlersMu.RUnlock()

	if len(handlers) == 0 {
		if ev.Name == EventError {
			c.log.Error().Err(ev.Err).Msg("unhandled dispatch error")
		}
		return
	}

	for _, h := range handlers {
		go c.invokeHandler(ctx, ev, h)
	}
}

func (c *Client) invokeHandler(ctx context.Context, ev *Event, h EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			c.reportError(ctx, ev.Name, fmt.Errorf("handler for %s panicked: %v", ev.Name, r))
		}
	}()

	if err := h(ctx, ev); err != nil {
		c.reportError(ctx, ev.Name, err)
	}
}

// reportError funnels a handler or router failure to on_error. Errors
// raised by on_error handlers themselves are only logged, so a faulty
// error handler cannot recurse.
func (c *Client) reportError(ctx context.Context, origin string, err error) {
	if origin == EventError {
		c.log.Error().Err(err).Msg("on_error handler failed")
		return
	}
	c.emit(ctx, &Event{Name: EventError, Err: err})
}
