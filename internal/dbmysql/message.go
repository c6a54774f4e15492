package dbmysql

import (
	"database/sql"
	"time"
)

// Message stores only the encryption envelope: the base64 ciphertext (with
// the GCM tag appended) and the per-message IV. Plaintext never hits a column.
type Message struct {
	ID             string `gorm:"primaryKey;size:36"`
	ConversationID string `gorm:"index;size:36"`
	SenderID       string `gorm:"index;size:36"`
	Ciphertext     string `gorm:"type:text"`
	IV             string `gorm:"size:64"`
	ReplyToID      sql.NullString `gorm:"size:36"`
	CreatedAt      time.Time      `gorm:"index"`
	EditedAt       sql.NullTime
	DeletedAt      sql.NullTime
}
