package hub

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/history"
	"github.com/example/realtime-chat/protocol"
	"github.com/go-monolith/mono"
)

// room holds the live membership of one room id. Its mutex serializes
// every connect, disconnect and message for that room, so deliveries
// within a room are totally ordered while distinct rooms run in parallel.
type room struct {
	id      int64
	mu      sync.Mutex
	members map[*Connection]struct{}
	seq     int64
	seeded  bool
}

// Hub fans frames out to room members. Rooms are created lazily on first
// connect; an absent room is an empty room. Emptied rooms are kept so the
// message id sequence survives reconnect churn.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[int64]*room
	history history.HistoryPort
	bus     mono.EventBus
}

// NewHub creates a Hub backed by the given history port.
func NewHub(historyPort history.HistoryPort) *Hub {
	return &Hub{
		rooms:   make(map[int64]*room),
		history: historyPort,
	}
}

// SetEventBus attaches the event bus used for broadcast notifications.
// The bus is observability only; delivery never depends on it.
func (h *Hub) SetEventBus(bus mono.EventBus) {
	h.bus = bus
}

// room returns the registry for a room id, creating it on first use.
func (h *Hub) room(roomID int64) *room {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		return r
	}
	r = &room{
		id:      roomID,
		members: make(map[*Connection]struct{}),
	}
	h.rooms[roomID] = r
	return r
}

// Connect registers a connection with its room, announces the join to
// the existing members and sends the membership snapshot to everyone,
// the new connection included.
func (h *Hub) Connect(ctx context.Context, conn *Connection) {
	r := h.room(conn.RoomID)
	go conn.writePump()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.seeded {
		max, err := h.history.MaxID(ctx, r.id)
		if err != nil {
			log.Printf("[hub] Failed to seed sequence for room %d, starting at 0: %v", r.id, err)
		} else {
			r.seq = max
		}
		r.seeded = true
	}

	r.members[conn] = struct{}{}

	// The join notice goes to everyone except the connection that caused it.
	joined := protocol.NewPresence(protocol.TypeUserJoined, conn.UserID, conn.Username)
	if data, err := protocol.Encode(joined); err == nil {
		for member := range r.members {
			if member == conn {
				continue
			}
			h.deliver(member, data)
		}
	}

	h.broadcastRoomUsersLocked(r)

	log.Printf("[hub] Connection %s (%s) joined room %d", conn.ID, conn.Username, conn.RoomID)
	h.publishUserJoined(conn)
}

// Receive processes one raw inbound frame from a connection. Malformed,
// empty and over-limit submissions produce an error frame for the sender
// only; a valid message is assigned the next room id, persisted, and
// broadcast to every member including the sender.
func (h *Hub) Receive(ctx context.Context, conn *Connection, raw []byte) {
	if !conn.limiter.allow() {
		h.unicastError(conn, "rate limit exceeded, please slow down")
		return
	}

	in, err := protocol.DecodeInbound(raw)
	if err != nil {
		h.unicastError(conn, "invalid message payload")
		return
	}

	content := protocol.TrimContent(in.Content)
	if content == "" {
		h.unicastError(conn, "message content cannot be empty")
		return
	}

	r := h.room(conn.RoomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[conn]; !ok {
		return
	}

	r.seq++
	frame := protocol.NewMessage(r.seq, conn.RoomID, conn.UserID, conn.Username, content)
	data, err := protocol.Encode(frame)
	if err != nil {
		r.seq--
		h.unicastError(conn, "failed to encode message")
		return
	}

	// A persistence failure is reported to the sender but the live
	// broadcast still happens; the room sees the message, history does
	// not. The divergence is logged so it is never silent.
	if err := h.history.Append(ctx, frame.RoomID, frame.ID, frame.UserID, string(data)); err != nil {
		log.Printf("[hub] Failed to persist message %d in room %d: %v", frame.ID, frame.RoomID, err)
		h.unicastError(conn, "message could not be saved")
	}

	for member := range r.members {
		h.deliver(member, data)
	}

	h.publishMessageSent(frame)
}

// Disconnect removes a connection from its room, announces the leave to
// the remaining members and re-broadcasts the membership snapshot.
// Calling it again for the same connection is a no-op.
func (h *Hub) Disconnect(conn *Connection) {
	h.mu.RLock()
	r := h.rooms[conn.RoomID]
	h.mu.RUnlock()
	if r == nil {
		conn.close()
		return
	}

	r.mu.Lock()
	if _, ok := r.members[conn]; !ok {
		r.mu.Unlock()
		conn.close()
		return
	}
	delete(r.members, conn)

	left := protocol.NewPresence(protocol.TypeUserLeft, conn.UserID, conn.Username)
	if data, err := protocol.Encode(left); err == nil {
		for member := range r.members {
			h.deliver(member, data)
		}
	}
	h.broadcastRoomUsersLocked(r)
	r.mu.Unlock()

	conn.close()

	log.Printf("[hub] Connection %s (%s) left room %d", conn.ID, conn.Username, conn.RoomID)
	h.publishUserLeft(conn)
}

// ListHistory returns a room's persisted messages in insertion order.
func (h *Hub) ListHistory(ctx context.Context, roomID int64, max int) ([]*domain.HistoryEntry, error) {
	return h.history.ListByRoom(ctx, roomID, max)
}

// Members returns the current membership of a room.
func (h *Hub) Members(roomID int64) []domain.Member {
	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

// ConnectionCount returns the total number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, r := range h.rooms {
		r.mu.Lock()
		total += len(r.members)
		r.mu.Unlock()
	}
	return total
}

// RoomCount returns the number of room registries created so far.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// CloseAll closes every live connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, r := range h.rooms {
		r.mu.Lock()
		for member := range r.members {
			member.close()
		}
		r.members = make(map[*Connection]struct{})
		r.mu.Unlock()
	}
}

// membersLocked snapshots the membership of a room. Callers hold r.mu.
func (r *room) membersLocked() []domain.Member {
	members := make([]domain.Member, 0, len(r.members))
	for member := range r.members {
		members = append(members, domain.Member{
			UserID:   member.UserID,
			Username: member.Username,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members
}

// broadcastRoomUsersLocked sends the membership snapshot to every member
// of the room. Callers hold r.mu.
func (h *Hub) broadcastRoomUsersLocked(r *room) {
	members := r.membersLocked()
	users := make([]protocol.RoomUser, 0, len(members))
	for _, m := range members {
		users = append(users, protocol.RoomUser{UserID: m.UserID, Username: m.Username})
	}

	data, err := protocol.Encode(protocol.NewRoomUsers(users))
	if err != nil {
		log.Printf("[hub] Failed to encode room_users for room %d: %v", r.id, err)
		return
	}
	for member := range r.members {
		h.deliver(member, data)
	}
}

// deliver offers a frame to one member, logging slow-consumer drops.
func (h *Hub) deliver(member *Connection, data []byte) {
	if !member.enqueue(data) {
		log.Printf("[hub] Dropped frame for connection %s (buffer full or closed)", member.ID)
	}
}

// unicastError sends an error frame to a single connection.
func (h *Hub) unicastError(conn *Connection, message string) {
	data, err := protocol.Encode(protocol.NewError(message))
	if err != nil {
		log.Printf("[hub] Failed to encode error frame: %v", err)
		return
	}
	h.deliver(conn, data)
}

func (h *Hub) publishMessageSent(frame protocol.Message) {
	if h.bus == nil {
		return
	}
	event := events.MessageSentEvent{
		MessageID: frame.ID,
		RoomID:    frame.RoomID,
		UserID:    frame.UserID,
		Username:  frame.Username,
		Content:   frame.Content,
		Timestamp: frame.Timestamp,
	}
	if err := events.MessageSentV1.Publish(h.bus, event, nil); err != nil {
		log.Printf("[hub] Failed to publish MessageSent event: %v", err)
	}
}

func (h *Hub) publishUserJoined(conn *Connection) {
	if h.bus == nil {
		return
	}
	event := events.UserJoinedEvent{
		RoomID:    conn.RoomID,
		UserID:    conn.UserID,
		Username:  conn.Username,
		Timestamp: time.Now().UTC(),
	}
	if err := events.UserJoinedV1.Publish(h.bus, event, nil); err != nil {
		log.Printf("[hub] Failed to publish UserJoined event: %v", err)
	}
}

func (h *Hub) publishUserLeft(conn *Connection) {
	if h.bus == nil {
		return
	}
	event := events.UserLeftEvent{
		RoomID:    conn.RoomID,
		UserID:    conn.UserID,
		Username:  conn.Username,
		Timestamp: time.Now().UTC(),
	}
	if err := events.UserLeftV1.Publish(h.bus, event, nil); err != nil {
		log.Printf("[hub] Failed to publish UserLeft event: %v", err)
	}
}
