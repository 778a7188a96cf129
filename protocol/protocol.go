// Package protocol defines the wire vocabulary shared by the chat server
// and client: a closed set of JSON frames distinguished by a "type"
// discriminator. The server is the sole assigner of message ids, sender
// identity and timestamps on outbound frames; clients may only submit
// Inbound frames carrying content.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Frame type discriminators.
const (
	TypeMessage    = "message"
	TypeUserJoined = "user_joined"
	TypeUserLeft   = "user_left"
	TypeRoomUsers  = "room_users"
	TypeError      = "error"
)

// Frame is implemented by every outbound frame variant.
type Frame interface {
	FrameType() string
}

// Message is a chat line broadcast to every member of a room,
// including the sender.
type Message struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	RoomID    int64     `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// FrameType returns the discriminator for Message frames.
func (Message) FrameType() string { return TypeMessage }

// Presence announces a join or leave transition. It is never delivered to
// the connection that caused it.
type Presence struct {
	Type      string    `json:"type"` // user_joined or user_left
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// FrameType returns the discriminator carried by this presence frame.
func (p Presence) FrameType() string { return p.Type }

// RoomUser identifies one member in a room_users snapshot.
type RoomUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// RoomUsers is the full presence snapshot for a room. It is sent to a
// newly joined connection and re-broadcast to all members whenever
// membership changes, so clients never need to diff.
type RoomUsers struct {
	Type      string     `json:"type"`
	Users     []RoomUser `json:"users"`
	Timestamp time.Time  `json:"timestamp"`
}

// FrameType returns the discriminator for RoomUsers frames.
func (RoomUsers) FrameType() string { return TypeRoomUsers }

// Error is a failure notice delivered only to the connection that
// triggered it, never broadcast.
type Error struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// FrameType returns the discriminator for Error frames.
func (Error) FrameType() string { return TypeError }

// Unknown is the decode fallback for frame types outside the closed set.
// Receivers treat it as a no-op.
type Unknown struct {
	Type string
}

// FrameType returns the unrecognized discriminator.
func (u Unknown) FrameType() string { return u.Type }

// Inbound is the only frame clients send: {"type":"message","content":...}.
type Inbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewMessage builds an outbound chat frame with a UTC timestamp.
func NewMessage(id, roomID, userID int64, username, content string) Message {
	return Message{
		Type:      TypeMessage,
		ID:        id,
		Content:   content,
		UserID:    userID,
		Username:  username,
		RoomID:    roomID,
		Timestamp: time.Now().UTC(),
	}
}

// NewPresence builds a user_joined or user_left frame.
func NewPresence(frameType string, userID int64, username string) Presence {
	return Presence{
		Type:      frameType,
		UserID:    userID,
		Username:  username,
		Timestamp: time.Now().UTC(),
	}
}

// NewRoomUsers builds a full presence snapshot frame.
func NewRoomUsers(users []RoomUser) RoomUsers {
	if users == nil {
		users = []RoomUser{}
	}
	return RoomUsers{
		Type:      TypeRoomUsers,
		Users:     users,
		Timestamp: time.Now().UTC(),
	}
}

// NewError builds an error frame.
func NewError(message string) Error {
	return Error{
		Type:      TypeError,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Encode marshals a frame to its JSON wire form.
func Encode(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", f.FrameType(), err)
	}
	return data, nil
}

// Decode parses an outbound frame by its type discriminator. Malformed
// JSON is an error; a well-formed frame with an unrecognized type decodes
// to Unknown so receivers can ignore it without failing.
func Decode(data []byte) (Frame, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch env.Type {
	case TypeMessage:
		var f Message
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed message frame: %w", err)
		}
		return f, nil
	case TypeUserJoined, TypeUserLeft:
		var f Presence
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed presence frame: %w", err)
		}
		return f, nil
	case TypeRoomUsers:
		var f RoomUsers
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed room_users frame: %w", err)
		}
		return f, nil
	case TypeError:
		var f Error
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed error frame: %w", err)
		}
		return f, nil
	default:
		return Unknown{Type: env.Type}, nil
	}
}

// DecodeInbound parses a client-submitted frame. Only the "message" type
// is accepted from clients.
func DecodeInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("malformed inbound frame: %w", err)
	}
	if in.Type != TypeMessage {
		return Inbound{}, fmt.Errorf("unsupported inbound frame type: %q", in.Type)
	}
	return in, nil
}

// TrimContent normalizes user-authored text. The empty result after
// trimming is what both sides treat as a rejectable message.
func TrimContent(content string) string {
	return strings.TrimSpace(content)
}
