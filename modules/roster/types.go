package roster

import "time"

// Service names as registered in the module's container. Callers hold a
// container scoped to this module, so the short names resolve directly.
const (
	ServiceCreateUser    = "create_user"
	ServiceGetUser       = "get_user"
	ServiceDeleteUser    = "delete_user"
	ServiceLogin         = "login"
	ServiceValidateToken = "validate_token"
	ServiceCreateRoom    = "create_room"
	ServiceListRooms     = "list_rooms"
	ServiceDeleteRoom    = "delete_room"
	ServiceRenameRoom    = "rename_room"
)

// CreateUserRequest is the request for registering an account.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents a user in responses.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// GetUserRequest is the request for fetching a user.
type GetUserRequest struct {
	ID int64 `json:"id"`
}

// DeleteUserRequest is the request for deleting a user.
type DeleteUserRequest struct {
	ID int64 `json:"id"`
}

// DeleteUserResponse is the response after deleting a user.
type DeleteUserResponse struct {
	Deleted bool `json:"deleted"`
}

// LoginRequest is the request for authenticating. Username may hold
// either the username or the email.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response after a successful login.
type LoginResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

// ValidateTokenRequest is the request for validating a session token.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse is the response of a token validation.
type ValidateTokenResponse struct {
	Valid    bool   `json:"valid"`
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CreateRoomRequest is the request for creating a room.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatorID   int64  `json:"creator_id"`
}

// RoomResponse represents a room in responses.
type RoomResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListRoomsRequest is the request for listing rooms.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response containing all rooms.
type ListRoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
	Total int            `json:"total"`
}

// DeleteRoomRequest is the request for deleting a room.
type DeleteRoomRequest struct {
	ID int64 `json:"id"`
}

// DeleteRoomResponse is the response after deleting a room.
type DeleteRoomResponse struct {
	Deleted bool `json:"deleted"`
}

// RenameRoomRequest is the request for renaming a room.
type RenameRoomRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RenameRoomResponse is the response after renaming a room.
type RenameRoomResponse struct {
	Renamed bool `json:"renamed"`
}
