package stats

import (
	"context"
	"testing"

	"github.com/example/realtime-chat/events"
)

func TestStats_CountersAccumulate(t *testing.T) {
	m := NewModule()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := m.handleMessageSent(ctx, events.MessageSentEvent{RoomID: 1}, nil); err != nil {
			t.Fatalf("handleMessageSent() error = %v", err)
		}
	}
	if err := m.handleMessageSent(ctx, events.MessageSentEvent{RoomID: 2}, nil); err != nil {
		t.Fatalf("handleMessageSent() error = %v", err)
	}
	if err := m.handleUserJoined(ctx, events.UserJoinedEvent{RoomID: 1}, nil); err != nil {
		t.Fatalf("handleUserJoined() error = %v", err)
	}
	if err := m.handleUserLeft(ctx, events.UserLeftEvent{RoomID: 1}, nil); err != nil {
		t.Fatalf("handleUserLeft() error = %v", err)
	}
	if err := m.handleRoomCreated(ctx, events.RoomCreatedEvent{RoomID: 7}, nil); err != nil {
		t.Fatalf("handleRoomCreated() error = %v", err)
	}

	resp, err := m.handleSnapshot(ctx, SnapshotRequest{}, nil)
	if err != nil {
		t.Fatalf("handleSnapshot() error = %v", err)
	}

	if resp.RoomsCreated != 1 {
		t.Errorf("RoomsCreated = %d, want 1", resp.RoomsCreated)
	}
	if len(resp.Rooms) != 2 {
		t.Fatalf("tracked rooms = %d, want 2", len(resp.Rooms))
	}

	byRoom := make(map[int64]RoomStats)
	for _, rs := range resp.Rooms {
		byRoom[rs.RoomID] = rs
	}
	if rs := byRoom[1]; rs.Messages != 3 || rs.Joins != 1 || rs.Leaves != 1 {
		t.Errorf("room 1 stats = %+v", rs)
	}
	if rs := byRoom[2]; rs.Messages != 1 {
		t.Errorf("room 2 stats = %+v", rs)
	}
}
