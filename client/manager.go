// Package client implements the connection lifecycle manager for one
// (room, user) pairing: it opens the duplex channel, recovers from
// closures with capped exponential backoff, and maintains the in-memory
// message log and presence snapshot a presentation layer renders from.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/realtime-chat/protocol"
	"github.com/gorilla/websocket"
)

// Status is the lifecycle state of a Manager.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusReconnecting
	StatusFailed
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NoticeKind classifies a durable user-visible notice.
type NoticeKind int

const (
	// NoticeReconnectExhausted is produced exactly once when the
	// automatic reconnection ceiling is reached.
	NoticeReconnectExhausted NoticeKind = iota
	// NoticeHydrationFailure is produced when the one-shot history
	// fetch fails; the log continues live-only.
	NoticeHydrationFailure
	// NoticeServerError carries an error frame received from the server.
	NoticeServerError
)

// Notice is a durable, user-visible condition surfaced to observers.
type Notice struct {
	Kind    NoticeKind
	Message string
}

const (
	defaultBackoffBase = time.Second
	backoffCap         = 30 // in units of the backoff base
	maxAttempts        = 5
	defaultHistoryMax  = 50
)

var (
	// ErrNotOpen is returned by Send while the channel is not open.
	// Content is never queued; the caller owns retry policy.
	ErrNotOpen = errors.New("connection is not open")
	// ErrEmptyContent is returned by Send for whitespace-only content.
	ErrEmptyContent = errors.New("message content cannot be empty")
	// ErrTornDown is returned once Teardown has been called.
	ErrTornDown = errors.New("manager has been torn down")
)

// Config parameterizes a Manager for one (room, user) pairing.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:3000".
	BaseURL  string
	RoomID   int64
	UserID   int64
	Username string

	// BackoffBase is the backoff time unit. Defaults to one second.
	BackoffBase time.Duration
	// HistoryMax bounds the hydration fetch. Defaults to 50.
	HistoryMax int

	// OnStatus observes every state transition. Optional.
	OnStatus func(Status)
	// OnNotice observes durable notices. Optional.
	OnNotice func(Notice)

	Dialer     *websocket.Dialer
	HTTPClient *http.Client
}

// Manager owns one duplex channel and its reconnection policy. A
// Manager is bound to a single (room, user) pairing for its whole life;
// changing room or identity means tearing it down and building a new one.
type Manager struct {
	cfg Config

	mu         sync.Mutex
	status     Status
	attempt    int
	conn       *websocket.Conn
	timer      *time.Timer
	generation int
	tornDown   bool

	messages []protocol.Message
	seen     map[int64]struct{}
	presence []protocol.Presence
	members  []protocol.RoomUser
}

// NewManager validates the configuration and builds an idle Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.RoomID <= 0 {
		return nil, fmt.Errorf("invalid room id: %d", cfg.RoomID)
	}
	if cfg.UserID <= 0 {
		return nil, fmt.Errorf("invalid user id: %d", cfg.UserID)
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("username is required")
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = defaultHistoryMax
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Manager{
		cfg:    cfg,
		status: StatusIdle,
		seen:   make(map[int64]struct{}),
	}, nil
}

// backoffDelay returns the delay scheduled before reattempt n,
// min(base * 2^n, 30 * base). Attempts 1..5 yield {2,4,8,16,30} units.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	units := int64(1) << uint(attempt)
	if units > backoffCap {
		units = backoffCap
	}
	return time.Duration(units) * base
}

// Start moves an idle Manager to Connecting. The dial happens on a
// background goroutine; observers learn the outcome via OnStatus.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return ErrTornDown
	}
	if m.status != StatusIdle {
		m.mu.Unlock()
		return fmt.Errorf("cannot start from %s state", m.status)
	}
	m.setStatusLocked(StatusConnecting)
	gen := m.generation
	m.mu.Unlock()

	go m.dial(gen)
	return nil
}

// Reconnect requests a manual reconnection after the automatic ceiling
// was reached. It resets the attempt counter and dials again.
func (m *Manager) Reconnect() error {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return ErrTornDown
	}
	if m.status != StatusFailed {
		m.mu.Unlock()
		return fmt.Errorf("cannot reconnect from %s state", m.status)
	}
	m.attempt = 0
	m.setStatusLocked(StatusConnecting)
	gen := m.generation
	m.mu.Unlock()

	go m.dial(gen)
	return nil
}

// Teardown cancels any pending reconnection timer, closes the live
// socket and retires the Manager. A torn-down Manager never dials again.
func (m *Manager) Teardown() {
	m.mu.Lock()
	m.tornDown = true
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.setStatusLocked(StatusIdle)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Send submits one chat line. It succeeds only in Open; there is no
// outbound queue, so a rejected send is the caller's to retry.
func (m *Manager) Send(content string) error {
	trimmed := protocol.TrimContent(content)
	if trimmed == "" {
		return ErrEmptyContent
	}

	m.mu.Lock()
	if m.status != StatusOpen || m.conn == nil {
		m.mu.Unlock()
		return ErrNotOpen
	}
	conn := m.conn
	m.mu.Unlock()

	data, err := json.Marshal(protocol.Inbound{Type: protocol.TypeMessage, Content: trimmed})
	if err != nil {
		return fmt.Errorf("failed to encode inbound frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Messages returns the message log ordered by server-assigned id.
func (m *Manager) Messages() []protocol.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Presence returns the accumulated join/leave notices for other users.
func (m *Manager) Presence() []protocol.Presence {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Presence, len(m.presence))
	copy(out, m.presence)
	return out
}

// Members returns the latest room membership snapshot.
func (m *Manager) Members() []protocol.RoomUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.RoomUser, len(m.members))
	copy(out, m.members)
	return out
}

// handshakeURL builds the duplex endpoint for the configured identity.
func (m *Manager) handshakeURL() string {
	base := m.cfg.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(m.cfg.UserID, 10))
	q.Set("username", m.cfg.Username)
	return fmt.Sprintf("%s/ws/%d?%s", base, m.cfg.RoomID, q.Encode())
}

// dial attempts the handshake for one generation of the Manager.
func (m *Manager) dial(gen int) {
	conn, resp, err := m.cfg.Dialer.Dial(m.handshakeURL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	if m.tornDown || gen != m.generation {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		slog.Warn("Handshake failed", "roomID", m.cfg.RoomID, "error", err)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.attempt = 0
	m.setStatusLocked(StatusOpen)
	m.mu.Unlock()

	go m.readLoop(conn, gen)
}

// readLoop consumes frames until the socket closes, then hands control
// back to the reconnection policy.
func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		m.dispatch(data)
	}
	_ = conn.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tornDown || gen != m.generation {
		return
	}
	m.conn = nil
	m.scheduleReconnectLocked()
}

// scheduleReconnectLocked advances the backoff state machine after a
// closure or failed dial. The attempt counter is incremented before
// scheduling; crossing the ceiling is terminal until Reconnect.
// Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	m.attempt++
	if m.attempt > maxAttempts {
		m.setStatusLocked(StatusFailed)
		m.notify(Notice{
			Kind:    NoticeReconnectExhausted,
			Message: "connection lost, automatic reconnection gave up",
		})
		return
	}

	m.setStatusLocked(StatusReconnecting)
	delay := backoffDelay(m.cfg.BackoffBase, m.attempt)
	gen := m.generation
	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.tornDown || gen != m.generation {
			m.mu.Unlock()
			return
		}
		m.timer = nil
		m.setStatusLocked(StatusConnecting)
		m.mu.Unlock()
		m.dial(gen)
	})
}

// dispatch routes one inbound frame. Unknown variants are ignored.
func (m *Manager) dispatch(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		slog.Warn("Dropped malformed frame", "error", err)
		return
	}

	switch f := frame.(type) {
	case protocol.Message:
		m.mu.Lock()
		m.mergeMessageLocked(f)
		m.mu.Unlock()
	case protocol.Presence:
		// Self-notifications are filtered here, not server-side.
		if f.UserID == m.cfg.UserID {
			return
		}
		m.mu.Lock()
		m.presence = append(m.presence, f)
		m.mu.Unlock()
	case protocol.RoomUsers:
		m.mu.Lock()
		m.members = f.Users
		m.mu.Unlock()
	case protocol.Error:
		m.notify(Notice{Kind: NoticeServerError, Message: f.Message})
	case protocol.Unknown:
		// No-op by contract.
	}
}

// mergeMessageLocked inserts a message into the id-ordered log, dropping
// duplicates. Merging by id is what keeps a slow hydration from
// clobbering messages already delivered live. Callers hold m.mu.
func (m *Manager) mergeMessageLocked(msg protocol.Message) {
	if _, dup := m.seen[msg.ID]; dup {
		return
	}
	m.seen[msg.ID] = struct{}{}
	m.messages = append(m.messages, msg)
	sort.SliceStable(m.messages, func(i, j int) bool {
		return m.messages[i].ID < m.messages[j].ID
	})
}

// setStatusLocked records a transition and notifies observers.
// Callers hold m.mu.
func (m *Manager) setStatusLocked(status Status) {
	if m.status == status {
		return
	}
	m.status = status
	if m.cfg.OnStatus != nil {
		go m.cfg.OnStatus(status)
	}
}

// notify surfaces a durable notice to observers.
func (m *Manager) notify(n Notice) {
	if m.cfg.OnNotice != nil {
		go m.cfg.OnNotice(n)
	}
}
