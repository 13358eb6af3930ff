// Package wire defines the frame envelope and chat token format spoken
// over the HowlHouse websocket.
package wire

import (
	"encoding/json"
	"fmt"
)

// Frame is the envelope for every message exchanged with the service.
// Inbound frames carry an opcode and an opaque payload; outbound fetches
// additionally carry a FetchID the service echoes back on fetch_done.
type Frame struct {
	Op      string          `json:"op"`
	D       json.RawMessage `json:"d,omitempty"`
	FetchID string          `json:"fetchId,omitempty"`
}

// Opcodes sent by the client.
const (
	OpAuth                = "auth"
	OpJoinRoom            = "join_room"
	OpCreateRoom          = "create_room"
	OpSendRoomChatMsg     = "send_room_chat_msg"
	OpDeleteRoomChatMsg   = "delete_room_chat_message"
	OpAskToSpeak          = "ask_to_speak"
	OpAddSpeaker          = "add_speaker"
	OpSetListener         = "set_listener"
	OpChangeModStatus     = "change_mod_status"
	OpChangeRoomCreator   = "change_room_creator"
	OpBanFromRoomChat     = "ban_from_room_chat"
	OpBlockFromRoom       = "block_from_room"
	OpUnbanFromRoom       = "unban_from_room"
	OpGetTopPublicRooms   = "get_top_public_rooms"
	OpGetUserProfile      = "get_user_profile"
	OpGetCurrentRoomUsers = "get_current_room_users"
)

// Opcodes received from the service.
const (
	OpAuthGood             = "auth-good"
	OpNewTokens            = "new-tokens"
	OpFetchDone            = "fetch_done"
	OpJoinRoomDone         = "join_room_done"
	OpJoinedAsSpeaker      = "you-joined-as-speaker"
	OpNewUserJoinRoom      = "new_user_join_room"
	OpUserLeftRoom         = "user_left_room"
	OpNewChatMsg           = "new_chat_msg"
	OpMessageDeleted       = "message_deleted"
	OpSpeakerAdded         = "speaker_added"
	OpSpeakerRemoved       = "speaker_removed"
	OpChatUserBanned       = "chat_user_banned"
	OpHandRaised           = "hand_raised"
	OpCurrentRoomUsersDone = "get_current_room_users_done"
	OpModChanged           = "mod_changed"
	OpNewRoomCreator       = "new_room_creator"
)

// Liveness frames. The client sends Ping as a bare text message; the
// service answers with a bare JSON string "pong".
const (
	Ping = "ping"
	Pong = "pong"
)

// Decode parses one raw websocket message into a Frame. The service
// occasionally sends bare JSON strings (the heartbeat ack, for one);
// those come back as a Frame whose Op is the string and whose payload
// is empty.
func Decode(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("empty frame")
	}

	if data[0] == '"' {
		var op string
		if err := json.Unmarshal(data, &op); err != nil {
			return Frame{}, fmt.Errorf("decode string frame: %w", err)
		}
		return Frame{Op: op}, nil
	}

	if !json.Valid(data) {
		// A handful of control messages arrive as plain text.
		return Frame{Op: string(data)}, nil
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Op == "" {
		return Frame{}, fmt.Errorf("frame without opcode")
	}
	return f, nil
}

// Encode marshals an outbound frame.
func Encode(op string, d any, fetchID string) ([]byte, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode payload for %q: %w", op, err)
	}
	raw, err := json.Marshal(Frame{Op: op, D: payload, FetchID: fetchID})
	if err != nil {
		return nil, fmt.Errorf("encode frame %q: %w", op, err)
	}
	return raw, nil
}
