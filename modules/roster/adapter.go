package roster

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Claims carries the validated identity of a session token.
type Claims struct {
	UserID   int64
	Username string
}

// RosterPort defines the interface other modules use for user, room and
// session operations.
type RosterPort interface {
	CreateUser(ctx context.Context, username, email, password string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	Login(ctx context.Context, identifier, password string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	CreateRoom(ctx context.Context, name, description string, creatorID int64) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]*domain.Room, error)
	DeleteRoom(ctx context.Context, id int64) error
	RenameRoom(ctx context.Context, id int64, name string) error
}

// RosterAdapter implements RosterPort using the service container.
type RosterAdapter struct {
	container mono.ServiceContainer
}

// NewRosterAdapter creates a new RosterAdapter.
func NewRosterAdapter(container mono.ServiceContainer) RosterPort {
	if container == nil {
		panic("roster: ServiceContainer is nil")
	}
	return &RosterAdapter{container: container}
}

// CreateUser registers a new account.
func (a *RosterAdapter) CreateUser(ctx context.Context, username, email, password string) (*domain.User, error) {
	req := CreateUserRequest{Username: username, Email: email, Password: password}
	var resp UserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return toDomainUser(resp), nil
}

// GetUser retrieves a user by id.
func (a *RosterAdapter) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	req := GetUserRequest{ID: id}
	var resp UserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toDomainUser(resp), nil
}

// DeleteUser removes a user by id.
func (a *RosterAdapter) DeleteUser(ctx context.Context, id int64) error {
	req := DeleteUserRequest{ID: id}
	var resp DeleteUserResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDeleteUser,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Login authenticates by username or email.
func (a *RosterAdapter) Login(ctx context.Context, identifier, password string) (*LoginResponse, error) {
	req := LoginRequest{Username: identifier, Password: password}
	var resp LoginResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceLogin,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return &resp, nil
}

// ValidateToken validates a session token.
func (a *RosterAdapter) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceValidateToken,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("validate_token request failed: %w", err)
	}

	if !resp.Valid {
		return nil, fmt.Errorf("token validation failed: %s", resp.Error)
	}

	return &Claims{
		UserID:   resp.UserID,
		Username: resp.Username,
	}, nil
}

// CreateRoom creates a new room.
func (a *RosterAdapter) CreateRoom(ctx context.Context, name, description string, creatorID int64) (*domain.Room, error) {
	req := CreateRoomRequest{Name: name, Description: description, CreatorID: creatorID}
	var resp RoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return toDomainRoom(resp), nil
}

// ListRooms returns all rooms.
func (a *RosterAdapter) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(resp.Rooms))
	for _, room := range resp.Rooms {
		rooms = append(rooms, toDomainRoom(room))
	}
	return rooms, nil
}

// DeleteRoom removes a room by id.
func (a *RosterAdapter) DeleteRoom(ctx context.Context, id int64) error {
	req := DeleteRoomRequest{ID: id}
	var resp DeleteRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDeleteRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// RenameRoom updates a room's name.
func (a *RosterAdapter) RenameRoom(ctx context.Context, id int64, name string) error {
	req := RenameRoomRequest{ID: id, Name: name}
	var resp RenameRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRenameRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to rename room: %w", err)
	}
	return nil
}

// toDomainUser converts a UserResponse to a domain User.
func toDomainUser(resp UserResponse) *domain.User {
	return &domain.User{
		ID:        resp.ID,
		Username:  resp.Username,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
	}
}

// toDomainRoom converts a RoomResponse to a domain Room.
func toDomainRoom(resp RoomResponse) *domain.Room {
	return &domain.Room{
		ID:          resp.ID,
		Name:        resp.Name,
		Description: resp.Description,
		CreatorID:   resp.CreatorID,
		CreatedAt:   resp.CreatedAt,
	}
}
