package history

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
)

// appendMessage handles the history.append service request.
func (m *HistoryModule) appendMessage(_ context.Context, req AppendRequest, _ *mono.Msg) (AppendResponse, error) {
	if req.RoomID <= 0 {
		return AppendResponse{}, fmt.Errorf("room_id must be positive")
	}
	if req.ID <= 0 {
		return AppendResponse{}, fmt.Errorf("id must be positive")
	}
	if req.Payload == "" {
		return AppendResponse{}, fmt.Errorf("payload is required")
	}

	msg := &Message{
		RoomID:  req.RoomID,
		ID:      req.ID,
		UserID:  req.UserID,
		Payload: req.Payload,
	}

	if err := m.repo.Append(msg); err != nil {
		return AppendResponse{}, err
	}

	return AppendResponse{Appended: true}, nil
}

// listMessages handles the history.list service request.
func (m *HistoryModule) listMessages(_ context.Context, req ListRequest, _ *mono.Msg) (ListResponse, error) {
	if req.RoomID <= 0 {
		return ListResponse{}, fmt.Errorf("room_id must be positive")
	}

	rows, err := m.repo.ListByRoom(req.RoomID, req.Max)
	if err != nil {
		return ListResponse{}, err
	}

	response := ListResponse{
		Messages: make([]Entry, 0, len(rows)),
		Total:    len(rows),
	}
	for _, row := range rows {
		response.Messages = append(response.Messages, Entry{
			ID:        row.ID,
			RoomID:    row.RoomID,
			UserID:    row.UserID,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		})
	}

	return response, nil
}

// maxID handles the history.max_id service request.
func (m *HistoryModule) maxID(_ context.Context, req MaxIDRequest, _ *mono.Msg) (MaxIDResponse, error) {
	if req.RoomID <= 0 {
		return MaxIDResponse{}, fmt.Errorf("room_id must be positive")
	}

	max, err := m.repo.MaxID(req.RoomID)
	if err != nil {
		return MaxIDResponse{}, err
	}

	return MaxIDResponse{MaxID: max}, nil
}
