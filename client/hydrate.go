package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/realtime-chat/protocol"
)

// historyPayload mirrors the history endpoint's response body. Each
// element is a stored frame in its wire form.
type historyPayload struct {
	Messages []json.RawMessage `json:"messages"`
}

// Hydrate performs the one-shot history fetch for the configured room
// and merges the persisted message frames into the log. Hydration races
// with live delivery: frames already received keep their place because
// merging is by id, never wholesale replacement. Non-message frames in
// history are skipped. On failure the log stays live-only and a single
// HydrationFailure notice is surfaced.
func (m *Manager) Hydrate(ctx context.Context) error {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return ErrTornDown
	}
	gen := m.generation
	m.mu.Unlock()

	msgs, err := m.fetchHistory(ctx)
	if err != nil {
		m.notify(Notice{
			Kind:    NoticeHydrationFailure,
			Message: "could not load message history",
		})
		return fmt.Errorf("hydration failed for room %d: %w", m.cfg.RoomID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A teardown while the fetch was in flight makes the result stale.
	if m.tornDown || gen != m.generation {
		return nil
	}
	for _, msg := range msgs {
		m.mergeMessageLocked(msg)
	}
	return nil
}

// fetchHistory reads and decodes the room's persisted frames.
func (m *Manager) fetchHistory(ctx context.Context) ([]protocol.Message, error) {
	target := fmt.Sprintf("%s/ws/%d/messages?max=%d", m.cfg.BaseURL, m.cfg.RoomID, m.cfg.HistoryMax)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history endpoint returned status %d", resp.StatusCode)
	}

	var payload historyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode history payload: %w", err)
	}

	msgs := make([]protocol.Message, 0, len(payload.Messages))
	for _, raw := range payload.Messages {
		frame, err := protocol.Decode(raw)
		if err != nil {
			continue
		}
		if msg, ok := frame.(protocol.Message); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}
