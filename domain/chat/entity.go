package chat

import "time"

// Room represents a chat room. Rooms scope message fan-out and presence;
// they are managed through the roster surface, but the broadcast hub
// accepts any room id without checking existence.
type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User represents a registered account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryEntry is one persisted row of a room's message history. Payload
// holds the serialized wire frame; readers parse it and keep only the
// chat-message frames for display.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Payload   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Member identifies one user currently connected to a room.
type Member struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}
