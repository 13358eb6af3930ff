package howlhouse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/howlhouse/howlhouse-go/internal/wire"
)

// Timestamp decodes the service's ISO-8601 timestamps, which are not
// always zoned.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339))
}

// RoomPermissions are a user's permissions inside the current room.
type RoomPermissions struct {
	IsSpeaker    bool `json:"isSpeaker"`
	IsMod        bool `json:"isMod"`
	IsAdmin      bool `json:"isAdmin"`
	AskedToSpeak bool `json:"askedToSpeak"`
}

// User is a full user record. Preview-only members carry just the ID
// and display name until a profile fetch fills the rest in.
type User struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	DisplayName   string          `json:"displayName"`
	AvatarURL     string          `json:"avatarUrl"`
	Bio           string          `json:"bio"`
	LastOnline    Timestamp       `json:"lastOnline"`
	CurrentRoomID string          `json:"currentRoomId"`
	NumFollowers  int             `json:"numFollowers"`
	Permissions   RoomPermissions `json:"roomPermissions"`
}

// Mention renders the user as a chat mention.
func (u User) Mention() string {
	return "@" + u.Username
}

// UserPreview is the lightweight record the directory carries for room
// occupants.
type UserPreview struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	NumFollowers int    `json:"numFollowers"`
}

// Room is room metadata plus, for the current room, the ordered-by-join
// membership list maintained by the cache.
type Room struct {
	ID           string        `json:"id"`
	CreatorID    string        `json:"creatorId"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	CreatedAt    Timestamp     `json:"inserted_at"`
	IsPrivate    bool          `json:"isPrivate"`
	Count        int           `json:"numPeopleInside"`
	PreviewUsers []UserPreview `json:"peoplePreviewList"`

	// Users is populated only for the room the client is in.
	Users []User `json:"-"`
}

// Message is one chat message, decoded from the service's token list.
type Message struct {
	ID        string
	Tokens    []wire.Token
	IsWhisper bool
	SentAt    time.Time
	Author    User
	Content   string
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string       `json:"id"`
		Tokens      []wire.Token `json:"tokens"`
		IsWhisper   bool         `json:"isWhisper"`
		SentAt      Timestamp    `json:"sentAt"`
		UserID      string       `json:"userId"`
		Username    string       `json:"username"`
		DisplayName string       `json:"displayName"`
		AvatarURL   string       `json:"avatarUrl"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	m.ID = raw.ID
	m.Tokens = raw.Tokens
	m.IsWhisper = raw.IsWhisper
	m.SentAt = raw.SentAt.Time
	m.Author = User{
		ID:          raw.UserID,
		Username:    raw.Username,
		DisplayName: raw.DisplayName,
		AvatarURL:   raw.AvatarURL,
	}
	m.Content = wire.Render(raw.Tokens)
	return nil
}
