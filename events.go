package howlhouse

import (
	"context"
	"encoding/json"
	"time"
)

// Event names dispatched to registered handlers and WaitFor callers.
const (
	EventReady            = "on_ready"
	EventRoomsFetch       = "on_rooms_fetch"
	EventRoomJoin         = "on_room_join"
	EventRoomUsersFetch   = "on_room_users_fetch"
	EventUserJoin         = "on_user_join"
	EventUserLeave        = "on_user_leave"
	EventMessage          = "on_message"
	EventMessageDelete    = "on_message_delete"
	EventSpeakerAdd       = "on_speaker_add"
	EventSpeakerDelete    = "on_speaker_delete"
	EventSpeakerRequest   = "on_speaker_request"
	EventUserBan          = "on_user_ban"
	EventUserFetch        = "on_user_fetch"
	EventPermissionChange = "on_permission_change"
	EventCooldownTrigger  = "on_cooldown_trigger"
	EventError            = "on_error"
)

// Event is what handlers receive. Name is always set; the other fields
// are populated per event, with Raw carrying the originating frame
// payload for anything the typed fields do not cover.
type Event struct {
	Name string
	Raw  json.RawMessage

	User    *User    // user join/leave/fetch, speaker add/delete, permission change
	Message *Message // on_message
	Room    *Room    // on_room_join, on_room_users_fetch
	Rooms   []Room   // on_rooms_fetch

	AsSpeaker bool // on_room_join: joined directly as a speaker

	UserID    string // on_user_ban, on_speaker_request
	RoomID    string // on_speaker_request
	MessageID string // on_message_delete
	DeleterID string // on_message_delete

	MuteMap      map[string]bool // speaker add/delete
	RaiseHandMap map[string]bool // speaker delete
	Permission   string          // on_permission_change: "mod" or "admin"

	Cooldown *CooldownTrigger // on_cooldown_trigger
	Err      error            // on_error
}

// CooldownTrigger describes a command invocation skipped because the
// invoking user is still inside the cooldown window.
type CooldownTrigger struct {
	Command   string
	Remaining time.Duration
	Message   *Message
}

// EventHandler reacts to one dispatched event. A returned error is
// funneled to on_error; it never stops other handlers or the dispatch
// loop.
type EventHandler func(ctx context.Context, ev *Event) error
