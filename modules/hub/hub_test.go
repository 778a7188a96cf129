package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/protocol"
)

// fakeConn collects frames written through the connection's write pump.
type fakeConn struct {
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 256)}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames <- buf
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// next blocks until the connection receives a frame.
func (f *fakeConn) next(t *testing.T) protocol.Frame {
	t.Helper()
	select {
	case data := <-f.frames:
		frame, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("received undecodable frame: %v", err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// expectNone asserts no frame arrives within a short window.
func (f *fakeConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case data := <-f.frames:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

// fakeHistory is an in-memory HistoryPort with failure injection.
type fakeHistory struct {
	mu         sync.Mutex
	rows       map[int64][]*domain.HistoryEntry
	seed       map[int64]int64
	failAppend bool
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		rows: make(map[int64][]*domain.HistoryEntry),
		seed: make(map[int64]int64),
	}
}

func (s *fakeHistory) Append(_ context.Context, roomID, id, userID int64, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return errors.New("disk full")
	}
	s.rows[roomID] = append(s.rows[roomID], &domain.HistoryEntry{
		ID:      id,
		RoomID:  roomID,
		UserID:  userID,
		Payload: payload,
	})
	return nil
}

func (s *fakeHistory) ListByRoom(_ context.Context, roomID int64, max int) ([]*domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[roomID]
	if max > 0 && len(rows) > max {
		rows = rows[len(rows)-max:]
	}
	return rows, nil
}

func (s *fakeHistory) MaxID(_ context.Context, roomID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seed, ok := s.seed[roomID]; ok {
		return seed, nil
	}
	rows := s.rows[roomID]
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[len(rows)-1].ID, nil
}

func (s *fakeHistory) count(roomID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[roomID])
}

// connect joins a fresh connection to a room and returns it with its
// underlying fake socket.
func connect(t *testing.T, h *Hub, roomID, userID int64, username string) (*Connection, *fakeConn) {
	t.Helper()
	fc := newFakeConn()
	conn := NewConnection(fc, roomID, userID, username)
	h.Connect(context.Background(), conn)
	return conn, fc
}

func inbound(content string) []byte {
	return []byte(fmt.Sprintf(`{"type":"message","content":%q}`, content))
}

func TestHub_ConnectSendsSnapshotNotOwnJoin(t *testing.T) {
	h := NewHub(newFakeHistory())

	_, fcA := connect(t, h, 1, 1, "alice")

	// The first frame a new connection sees is the membership snapshot;
	// its own join notice is never delivered to it.
	frame := fcA.next(t)
	snapshot, ok := frame.(protocol.RoomUsers)
	if !ok {
		t.Fatalf("first frame = %T (%s), want RoomUsers", frame, frame.FrameType())
	}
	if len(snapshot.Users) != 1 || snapshot.Users[0].Username != "alice" {
		t.Errorf("snapshot users = %+v, want [alice]", snapshot.Users)
	}
}

func TestHub_JoinNotifiesExistingMembers(t *testing.T) {
	h := NewHub(newFakeHistory())

	_, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t) // own snapshot

	_, fcB := connect(t, h, 1, 2, "bob")

	// Existing member sees the join notice, then the refreshed snapshot.
	frame := fcA.next(t)
	joined, ok := frame.(protocol.Presence)
	if !ok || joined.Type != protocol.TypeUserJoined {
		t.Fatalf("frame = %T (%s), want user_joined", frame, frame.FrameType())
	}
	if joined.UserID != 2 || joined.Username != "bob" {
		t.Errorf("join notice = (%d, %q), want (2, bob)", joined.UserID, joined.Username)
	}

	frame = fcA.next(t)
	snapshot, ok := frame.(protocol.RoomUsers)
	if !ok {
		t.Fatalf("frame = %T, want RoomUsers", frame)
	}
	if len(snapshot.Users) != 2 {
		t.Errorf("snapshot has %d users, want 2", len(snapshot.Users))
	}

	// The new member gets only the snapshot, never its own join.
	frame = fcB.next(t)
	if _, ok := frame.(protocol.RoomUsers); !ok {
		t.Fatalf("new member's first frame = %T (%s), want RoomUsers", frame, frame.FrameType())
	}
	fcB.expectNone(t)
}

func TestHub_BroadcastIncludesSenderExactlyOnce(t *testing.T) {
	h := NewHub(newFakeHistory())
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)
	_, fcB := connect(t, h, 1, 2, "bob")
	fcA.next(t) // bob joined
	fcA.next(t) // snapshot
	fcB.next(t) // snapshot

	h.Receive(ctx, connA, inbound("hello room"))

	for name, fc := range map[string]*fakeConn{"sender": fcA, "receiver": fcB} {
		frame := fc.next(t)
		msg, ok := frame.(protocol.Message)
		if !ok {
			t.Fatalf("%s got %T (%s), want Message", name, frame, frame.FrameType())
		}
		if msg.ID != 1 || msg.Content != "hello room" || msg.UserID != 1 || msg.Username != "alice" {
			t.Errorf("%s message = %+v", name, msg)
		}
		fc.expectNone(t)
	}
}

func TestHub_MonotonicIDsSeededFromHistory(t *testing.T) {
	store := newFakeHistory()
	store.seed[1] = 41
	h := NewHub(store)
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)
	connB, fcB := connect(t, h, 1, 2, "bob")
	fcA.next(t)
	fcA.next(t)
	fcB.next(t)

	h.Receive(ctx, connA, inbound("first"))
	h.Receive(ctx, connB, inbound("second"))
	h.Receive(ctx, connA, inbound("third"))

	want := []int64{42, 43, 44}
	for i, wantID := range want {
		frame := fcA.next(t)
		msg, ok := frame.(protocol.Message)
		if !ok {
			t.Fatalf("frame %d = %T, want Message", i, frame)
		}
		if msg.ID != wantID {
			t.Errorf("message %d id = %d, want %d", i, msg.ID, wantID)
		}
	}
}

func TestHub_CrossRoomIsolation(t *testing.T) {
	h := NewHub(newFakeHistory())
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)
	_, fcC := connect(t, h, 2, 3, "carol")
	fcC.next(t)

	h.Receive(ctx, connA, inbound("room one only"))

	fcA.next(t)
	fcC.expectNone(t)
}

func TestHub_EmptyContentRejected(t *testing.T) {
	h := NewHub(newFakeHistory())
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)
	_, fcB := connect(t, h, 1, 2, "bob")
	fcA.next(t)
	fcA.next(t)
	fcB.next(t)

	h.Receive(ctx, connA, inbound("   \t\n  "))

	frame := fcA.next(t)
	if _, ok := frame.(protocol.Error); !ok {
		t.Fatalf("sender got %T (%s), want Error", frame, frame.FrameType())
	}
	fcB.expectNone(t)
}

func TestHub_MalformedPayloadKeepsConnection(t *testing.T) {
	h := NewHub(newFakeHistory())
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)

	h.Receive(ctx, connA, []byte(`this is not json`))
	frame := fcA.next(t)
	if _, ok := frame.(protocol.Error); !ok {
		t.Fatalf("got %T (%s), want Error", frame, frame.FrameType())
	}

	// The connection survives and can still send.
	h.Receive(ctx, connA, inbound("still here"))
	frame = fcA.next(t)
	msg, ok := frame.(protocol.Message)
	if !ok {
		t.Fatalf("got %T, want Message", frame)
	}
	if msg.Content != "still here" {
		t.Errorf("content = %q, want %q", msg.Content, "still here")
	}
}

func TestHub_PersistFailureStillBroadcasts(t *testing.T) {
	store := newFakeHistory()
	store.failAppend = true
	h := NewHub(store)
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)
	_, fcB := connect(t, h, 1, 2, "bob")
	fcA.next(t)
	fcA.next(t)
	fcB.next(t)

	h.Receive(ctx, connA, inbound("lost to disk"))

	// Sender sees the persistence error first, then its own echo.
	frame := fcA.next(t)
	if _, ok := frame.(protocol.Error); !ok {
		t.Fatalf("sender got %T (%s), want Error", frame, frame.FrameType())
	}
	frame = fcA.next(t)
	if msg, ok := frame.(protocol.Message); !ok || msg.Content != "lost to disk" {
		t.Fatalf("sender echo = %v", frame)
	}

	// The room still receives the live message.
	frame = fcB.next(t)
	if msg, ok := frame.(protocol.Message); !ok || msg.Content != "lost to disk" {
		t.Fatalf("receiver got %v, want the live message", frame)
	}

	if store.count(1) != 0 {
		t.Errorf("history rows = %d, want 0", store.count(1))
	}
}

func TestHub_DisconnectIsIdempotent(t *testing.T) {
	h := NewHub(newFakeHistory())

	_, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)
	connB, fcB := connect(t, h, 1, 2, "bob")
	fcA.next(t)
	fcA.next(t)
	fcB.next(t)

	h.Disconnect(connB)
	h.Disconnect(connB)

	// Exactly one leave notice and one refreshed snapshot.
	frame := fcA.next(t)
	left, ok := frame.(protocol.Presence)
	if !ok || left.Type != protocol.TypeUserLeft {
		t.Fatalf("frame = %T (%s), want user_left", frame, frame.FrameType())
	}
	if left.UserID != 2 {
		t.Errorf("leave notice user = %d, want 2", left.UserID)
	}

	frame = fcA.next(t)
	snapshot, ok := frame.(protocol.RoomUsers)
	if !ok {
		t.Fatalf("frame = %T, want RoomUsers", frame)
	}
	if len(snapshot.Users) != 1 || snapshot.Users[0].UserID != 1 {
		t.Errorf("snapshot users = %+v, want [alice]", snapshot.Users)
	}
	fcA.expectNone(t)

	if !fcB.isClosed() {
		t.Error("disconnected socket should be closed")
	}
}

func TestHub_DisconnectedSenderIsIgnored(t *testing.T) {
	h := NewHub(newFakeHistory())
	ctx := context.Background()

	_, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)
	connB, fcB := connect(t, h, 1, 2, "bob")
	fcA.next(t)
	fcA.next(t)
	fcB.next(t)

	h.Disconnect(connB)
	fcA.next(t) // user_left
	fcA.next(t) // snapshot

	h.Receive(ctx, connB, inbound("ghost message"))
	fcA.expectNone(t)
}

func TestHub_ConcurrentSendsKeepIDsUnique(t *testing.T) {
	h := NewHub(newFakeHistory())
	ctx := context.Background()

	conns := make([]*Connection, 0, 4)
	fcs := make([]*fakeConn, 0, 4)
	for i := int64(1); i <= 4; i++ {
		conn, fc := connect(t, h, 1, i, fmt.Sprintf("user%d", i))
		conns = append(conns, conn)
		fcs = append(fcs, fc)
	}

	const perSender = 3
	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				h.Receive(ctx, c, inbound("burst"))
			}
		}(conn)
	}
	wg.Wait()

	// Every member sees every message exactly once with unique ids.
	total := len(conns) * perSender
	seen := make(map[int64]bool)
	for {
		frame := fcs[0].next(t)
		msg, ok := frame.(protocol.Message)
		if !ok {
			continue // presence and snapshot frames from setup
		}
		if seen[msg.ID] {
			t.Fatalf("duplicate message id %d", msg.ID)
		}
		seen[msg.ID] = true
		if len(seen) == total {
			break
		}
	}
	for id := int64(1); id <= int64(total); id++ {
		if !seen[id] {
			t.Errorf("missing message id %d", id)
		}
	}
}

// stallConn simulates a consumer whose socket never drains: the first
// write blocks until release is closed, so the write pump stalls and
// the connection's send buffer fills up behind it.
type stallConn struct {
	release chan struct{}
}

func (s *stallConn) WriteMessage(_ int, _ []byte) error {
	<-s.release
	return nil
}

func (s *stallConn) Close() error { return nil }

func TestHub_RateLimitOverLimitUnicastsError(t *testing.T) {
	store := newFakeHistory()
	h := NewHub(store)
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)
	_, fcB := connect(t, h, 1, 2, "bob")
	fcA.next(t)
	fcA.next(t)
	fcB.next(t)

	// Spend the whole burst, then one more.
	for i := 0; i < burstSize; i++ {
		h.Receive(ctx, connA, inbound(fmt.Sprintf("burst %d", i)))
	}
	h.Receive(ctx, connA, inbound("over the limit"))

	// The sender sees every in-budget message, then the error frame.
	for i := 0; i < burstSize; i++ {
		frame := fcA.next(t)
		if _, ok := frame.(protocol.Message); !ok {
			t.Fatalf("frame %d = %T (%s), want Message", i, frame, frame.FrameType())
		}
	}
	frame := fcA.next(t)
	if _, ok := frame.(protocol.Error); !ok {
		t.Fatalf("over-limit frame = %T (%s), want Error", frame, frame.FrameType())
	}

	// The room sees only the in-budget messages, never the rejected one.
	for i := 0; i < burstSize; i++ {
		fcB.next(t)
	}
	fcB.expectNone(t)

	if store.count(1) != burstSize {
		t.Errorf("history rows = %d, want %d", store.count(1), burstSize)
	}
}

func TestHub_SlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(newFakeHistory())
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)

	release := make(chan struct{})
	defer close(release)
	connB := NewConnection(&stallConn{release: release}, 1, 2, "bob")
	h.Connect(ctx, connB)
	fcA.next(t) // bob joined
	fcA.next(t) // snapshot

	// Saturate the stalled member's send buffer.
	filled := false
	for i := 0; i < sendBufferSize+2; i++ {
		if !connB.enqueue([]byte(`{"type":"error","message":"filler"}`)) {
			filled = true
			break
		}
	}
	if !filled {
		t.Fatal("send buffer never reported full")
	}

	// The room must keep moving: the send completes and the healthy
	// member receives the message while the stalled one drops it.
	h.Receive(ctx, connA, inbound("not blocked"))
	frame := fcA.next(t)
	msg, ok := frame.(protocol.Message)
	if !ok || msg.Content != "not blocked" {
		t.Fatalf("healthy member got %v, want the live message", frame)
	}

	h.Disconnect(connB)
	frame = fcA.next(t)
	if left, ok := frame.(protocol.Presence); !ok || left.Type != protocol.TypeUserLeft {
		t.Fatalf("frame = %T (%s), want user_left", frame, frame.FrameType())
	}
}

func TestRateLimiterRefills(t *testing.T) {
	l := newRateLimiter(1, 10)

	if !l.allow() {
		t.Fatal("first token should be available")
	}
	if l.allow() {
		t.Fatal("bucket of one should be empty after one spend")
	}

	// 10 tokens/s: 300ms accrues enough for one more.
	time.Sleep(300 * time.Millisecond)
	if !l.allow() {
		t.Error("bucket should have refilled")
	}
}

func TestHub_ListHistoryPassesThrough(t *testing.T) {
	store := newFakeHistory()
	h := NewHub(store)
	ctx := context.Background()

	connA, fcA := connect(t, h, 1, 1, "alice")
	fcA.next(t)

	h.Receive(ctx, connA, inbound("persisted"))
	fcA.next(t)

	entries, err := h.ListHistory(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	// The stored payload is the broadcast frame itself.
	frame, err := protocol.Decode([]byte(entries[0].Payload))
	if err != nil {
		t.Fatalf("stored payload is not a frame: %v", err)
	}
	msg, ok := frame.(protocol.Message)
	if !ok || msg.Content != "persisted" {
		t.Errorf("stored frame = %v", frame)
	}
}
