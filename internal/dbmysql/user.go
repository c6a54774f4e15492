package dbmysql

import (
	"time"
)

type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"uniqueIndex;size:50"`
	Email        string `gorm:"size:255"`
	DisplayName  string `gorm:"size:100"`
	AvatarFileID string `gorm:"size:36"`
	PasswordHash string `gorm:"size:100"`
	IsActive     bool   `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
