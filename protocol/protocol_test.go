package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecode_KnownVariants(t *testing.T) {
	tests := []struct {
		name     string
		frame    Frame
		wantType string
	}{
		{
			name:     "message",
			frame:    NewMessage(7, 2, 1, "alice", "hi"),
			wantType: TypeMessage,
		},
		{
			name:     "user_joined",
			frame:    NewPresence(TypeUserJoined, 1, "alice"),
			wantType: TypeUserJoined,
		},
		{
			name:     "user_left",
			frame:    NewPresence(TypeUserLeft, 2, "bob"),
			wantType: TypeUserLeft,
		},
		{
			name:     "room_users",
			frame:    NewRoomUsers([]RoomUser{{UserID: 1, Username: "alice"}}),
			wantType: TypeRoomUsers,
		},
		{
			name:     "error",
			frame:    NewError("boom"),
			wantType: TypeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.frame)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if decoded.FrameType() != tt.wantType {
				t.Errorf("Decode() type = %q, want %q", decoded.FrameType(), tt.wantType)
			}
		})
	}
}

func TestDecode_MessageFields(t *testing.T) {
	data, err := Encode(NewMessage(42, 2, 1, "alice", "hello world"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	msg, ok := decoded.(Message)
	if !ok {
		t.Fatalf("Decode() returned %T, want Message", decoded)
	}
	if msg.ID != 42 || msg.RoomID != 2 || msg.UserID != 1 {
		t.Errorf("Decode() ids = (%d, %d, %d), want (42, 2, 1)", msg.ID, msg.RoomID, msg.UserID)
	}
	if msg.Username != "alice" || msg.Content != "hello world" {
		t.Errorf("Decode() payload = (%q, %q)", msg.Username, msg.Content)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Decode() timestamp should not be zero")
	}
}

func TestDecode_UnknownTypeIsNoOp(t *testing.T) {
	decoded, err := Decode([]byte(`{"type":"typing_indicator","user_id":1}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	unknown, ok := decoded.(Unknown)
	if !ok {
		t.Fatalf("Decode() returned %T, want Unknown", decoded)
	}
	if unknown.Type != "typing_indicator" {
		t.Errorf("Unknown.Type = %q, want %q", unknown.Type, "typing_indicator")
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Error("Decode() expected error for malformed JSON, got nil")
	}
}

func TestDecodeInbound(t *testing.T) {
	t.Run("valid message", func(t *testing.T) {
		in, err := DecodeInbound([]byte(`{"type":"message","content":"hi there"}`))
		if err != nil {
			t.Fatalf("DecodeInbound() error = %v", err)
		}
		if in.Content != "hi there" {
			t.Errorf("DecodeInbound() content = %q, want %q", in.Content, "hi there")
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`{"type":"user_joined","content":"x"}`))
		if err == nil {
			t.Error("DecodeInbound() expected error for non-message type, got nil")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeInbound([]byte(`not json`))
		if err == nil {
			t.Error("DecodeInbound() expected error for malformed payload, got nil")
		}
	})
}

func TestEncode_TimestampIsUTC(t *testing.T) {
	data, err := Encode(NewMessage(1, 1, 1, "alice", "hi"))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var raw struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal wire form: %v", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		t.Fatalf("timestamp %q is not ISO-8601: %v", raw.Timestamp, err)
	}
	if _, offset := ts.Zone(); offset != 0 {
		t.Errorf("timestamp %q is not UTC", raw.Timestamp)
	}
}

func TestTrimContent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hi  ", "hi"},
		{"\t\n ", ""},
		{"", ""},
		{"already clean", "already clean"},
	}

	for _, tt := range tests {
		if got := TrimContent(tt.in); got != tt.want {
			t.Errorf("TrimContent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
