package history

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// HistoryPort defines the interface for history operations used by
// other modules.
type HistoryPort interface {
	Append(ctx context.Context, roomID, id, userID int64, payload string) error
	ListByRoom(ctx context.Context, roomID int64, max int) ([]*domain.HistoryEntry, error)
	MaxID(ctx context.Context, roomID int64) (int64, error)
}

// HistoryAdapter implements HistoryPort using the service container.
type HistoryAdapter struct {
	container mono.ServiceContainer
}

// NewHistoryAdapter creates a new HistoryAdapter.
func NewHistoryAdapter(container mono.ServiceContainer) HistoryPort {
	if container == nil {
		panic("history: ServiceContainer is nil")
	}
	return &HistoryAdapter{container: container}
}

// Append persists one message row.
func (a *HistoryAdapter) Append(ctx context.Context, roomID, id, userID int64, payload string) error {
	req := AppendRequest{RoomID: roomID, ID: id, UserID: userID, Payload: payload}
	var resp AppendResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceAppend,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListByRoom returns a room's history in insertion order.
func (a *HistoryAdapter) ListByRoom(ctx context.Context, roomID int64, max int) ([]*domain.HistoryEntry, error) {
	req := ListRequest{RoomID: roomID, Max: max}
	var resp ListResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceList,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	entries := make([]*domain.HistoryEntry, 0, len(resp.Messages))
	for _, row := range resp.Messages {
		entries = append(entries, &domain.HistoryEntry{
			ID:        row.ID,
			RoomID:    row.RoomID,
			UserID:    row.UserID,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return entries, nil
}

// MaxID returns a room's highest message id, 0 when the room is empty.
func (a *HistoryAdapter) MaxID(ctx context.Context, roomID int64) (int64, error) {
	req := MaxIDRequest{RoomID: roomID}
	var resp MaxIDResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceMaxID,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return 0, fmt.Errorf("failed to read max id: %w", err)
	}
	return resp.MaxID, nil
}
