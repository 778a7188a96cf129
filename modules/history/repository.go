package history

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrDuplicateID is returned when a (room, id) pair is appended twice.
var ErrDuplicateID = errors.New("message id already exists in room")

// Repository provides access to message history storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new history repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append saves a new message row. The caller supplies the per-room id.
func (r *Repository) Append(msg *Message) error {
	if err := r.db.Create(msg).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// ListByRoom returns the most recent messages of a room in insertion
// order (ascending id). A max of 0 or less returns everything.
func (r *Repository) ListByRoom(roomID int64, max int) ([]*Message, error) {
	query := r.db.Where("room_id = ?", roomID).Order("id DESC")
	if max > 0 {
		query = query.Limit(max)
	}

	var rows []*Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages for room %d: %w", roomID, err)
	}

	// Fetched newest-first so the limit keeps the tail; flip back to
	// insertion order for callers.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// MaxID returns the highest message id recorded for a room, 0 when the
// room has no history. The hub uses this to seed its per-room sequence.
func (r *Repository) MaxID(roomID int64) (int64, error) {
	var max int64
	err := r.db.Model(&Message{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read max id for room %d: %w", roomID, err)
	}
	return max, nil
}
