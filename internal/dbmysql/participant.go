package dbmysql

import (
	"database/sql"
	"time"
)

type ParticipantRole int

const (
	RoleMember ParticipantRole = 1
	RoleAdmin  ParticipantRole = 2
)

// ConversationParticipant is one row per (conversation, user) pair, active or
// historical. Leaving sets LeftAt; rejoining clears it instead of inserting a
// duplicate row.
type ConversationParticipant struct {
	ConversationID string          `gorm:"primaryKey;size:36"`
	UserID         string          `gorm:"primaryKey;size:36;index"`
	Role           ParticipantRole `gorm:"default:1"`
	JoinedAt       time.Time
	LeftAt         sql.NullTime
}
