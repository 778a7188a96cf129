package history

import "time"

// Service names as registered in the module's container. Callers hold a
// container scoped to this module, so the short names resolve directly.
const (
	ServiceAppend = "append"
	ServiceList   = "list"
	ServiceMaxID  = "max_id"
)

// AppendRequest is the request for persisting one message row.
type AppendRequest struct {
	RoomID  int64  `json:"room_id"`
	ID      int64  `json:"id"`
	UserID  int64  `json:"user_id"`
	Payload string `json:"payload"`
}

// AppendResponse is the response after persisting a message row.
type AppendResponse struct {
	Appended bool `json:"appended"`
}

// ListRequest is the request for reading a room's history.
type ListRequest struct {
	RoomID int64 `json:"room_id"`
	Max    int   `json:"max"`
}

// Entry is one history row in responses.
type Entry struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	UserID    int64     `json:"user_id"`
	Payload   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ListResponse is the response containing a room's history rows.
type ListResponse struct {
	Messages []Entry `json:"messages"`
	Total    int     `json:"total"`
}

// MaxIDRequest is the request for a room's highest message id.
type MaxIDRequest struct {
	RoomID int64 `json:"room_id"`
}

// MaxIDResponse carries a room's highest message id, 0 when empty.
type MaxIDResponse struct {
	MaxID int64 `json:"max_id"`
}
