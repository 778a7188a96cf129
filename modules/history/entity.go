package history

import "time"

// Message is one persisted row of room history. IDs are assigned by the
// broadcast hub and are monotonic per room, so the primary key is the
// (room_id, id) pair rather than a global auto-increment.
type Message struct {
	RoomID    int64     `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Payload   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for the Message model.
func (Message) TableName() string {
	return "messages"
}
