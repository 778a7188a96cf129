package roster

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a username or email is taken.
	ErrUserExists = errors.New("username or email already taken")
	// ErrRoomNotFound is returned when a room is not found.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when a room name is taken.
	ErrRoomExists = errors.New("room name already taken")
)

// Repository handles user and room persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new roster repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user row.
func (r *Repository) CreateUser(user *User) error {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByID finds a user by id.
func (r *Repository) FindUserByID(id int64) (*User, error) {
	var user User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// FindUserByLogin finds a user whose username or email matches the
// given identifier.
func (r *Repository) FindUserByLogin(identifier string) (*User, error) {
	var user User
	err := r.db.First(&user, "username = ? OR email = ?", identifier, identifier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// DeleteUser removes a user by id.
func (r *Repository) DeleteUser(id int64) error {
	result := r.db.Delete(&User{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateRoom creates a new room row.
func (r *Repository) CreateRoom(room *Room) error {
	if err := r.db.Create(room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// ListRooms returns all rooms ordered by id.
func (r *Repository) ListRooms() ([]*Room, error) {
	var rooms []*Room
	if err := r.db.Order("id ASC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// FindRoomByID finds a room by id.
func (r *Repository) FindRoomByID(id int64) (*Room, error) {
	var room Room
	if err := r.db.First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// DeleteRoom removes a room by id.
func (r *Repository) DeleteRoom(id int64) error {
	result := r.db.Delete(&Room{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// RenameRoom updates a room's name.
func (r *Repository) RenameRoom(id int64, name string) error {
	result := r.db.Model(&Room{}).Where("id = ?", id).Update("name", name)
	if err := result.Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return fmt.Errorf("failed to rename room: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}
