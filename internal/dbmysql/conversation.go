package dbmysql

import (
	"database/sql"
	"time"
)

type ConversationType int

const (
	ConversationDirect ConversationType = 1
	ConversationGroup  ConversationType = 2
)

// Conversation carries a denormalized pointer to its latest message so the
// conversation list can sort without joining messages. The pointer is updated
// in the same transaction as each send.
type Conversation struct {
	ID            string           `gorm:"primaryKey;size:36"` // caller-supplied
	Name          string           `gorm:"size:100"`
	Type          ConversationType `gorm:"default:1"`
	LastMessageID sql.NullString   `gorm:"size:36"`
	LastMessageAt sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
