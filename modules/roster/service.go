package roster

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when the password does not match.
	ErrInvalidCredentials = errors.New("invalid password")
	// ErrInvalidEmail is returned when the email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrUsernameEmpty is returned when the username is empty.
	ErrUsernameEmpty = errors.New("username cannot be empty")
	// ErrRoomNameEmpty is returned when the room name is empty.
	ErrRoomNameEmpty = errors.New("room name cannot be empty")
	// ErrWeakPassword is returned when the password is too short.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when the password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
)

// RosterService handles user and room management business logic.
type RosterService struct {
	repo   *Repository
	hasher *PasswordHasher
	jwt    *JWTManager
}

// NewRosterService creates a new RosterService.
func NewRosterService(repo *Repository, hasher *PasswordHasher, jwt *JWTManager) *RosterService {
	return &RosterService{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
	}
}

// CreateUser registers a new account.
func (s *RosterService) CreateUser(_ context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameEmpty
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// GetUser retrieves a user by id.
func (s *RosterService) GetUser(_ context.Context, id int64) (*User, error) {
	return s.repo.FindUserByID(id)
}

// DeleteUser removes a user by id.
func (s *RosterService) DeleteUser(_ context.Context, id int64) error {
	return s.repo.DeleteUser(id)
}

// Login authenticates by username or email and returns the user together
// with a signed session token. An unknown identifier yields
// ErrUserNotFound; a wrong password yields ErrInvalidCredentials.
func (s *RosterService) Login(_ context.Context, identifier, password string) (*User, string, error) {
	user, err := s.repo.FindUserByLogin(identifier)
	if err != nil {
		return nil, "", err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return user, token, nil
}

// ValidateToken validates a session token and returns its claims.
func (s *RosterService) ValidateToken(_ context.Context, token string) (*JWTClaims, error) {
	return s.jwt.ValidateToken(token)
}

// CreateRoom creates a new room owned by an existing user.
func (s *RosterService) CreateRoom(_ context.Context, name, description string, creatorID int64) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrRoomNameEmpty
	}
	if _, err := s.repo.FindUserByID(creatorID); err != nil {
		return nil, err
	}

	room := &Room{
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
	}
	if err := s.repo.CreateRoom(room); err != nil {
		return nil, err
	}

	return room, nil
}

// ListRooms returns all rooms.
func (s *RosterService) ListRooms(_ context.Context) ([]*Room, error) {
	return s.repo.ListRooms()
}

// DeleteRoom removes a room by id.
func (s *RosterService) DeleteRoom(_ context.Context, id int64) error {
	return s.repo.DeleteRoom(id)
}

// RenameRoom updates a room's name.
func (s *RosterService) RenameRoom(_ context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrRoomNameEmpty
	}
	return s.repo.RenameRoom(id, name)
}
