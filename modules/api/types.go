package api

import "encoding/json"

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateUserBody is the request body for POST /user.
type CreateUserBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginBody is the request body for POST /login. Username may hold
// either the username or the email.
type LoginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateRoomBody is the request body for POST /room.
type CreateRoomBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatorID   int64  `json:"creator_id"`
}

// UserResponse is the API response for a user.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RoomResponse is the API response for a room.
type RoomResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatorID   int64  `json:"creator_id"`
	Members     int    `json:"members"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// HistoryResponse is the API response for GET /ws/:room_id/messages.
// Each element is a stored message frame returned verbatim, so REST
// hydration yields exactly what the live broadcast delivered.
type HistoryResponse struct {
	RoomID   int64             `json:"room_id"`
	Messages []json.RawMessage `json:"messages"`
	Total    int               `json:"total"`
}
