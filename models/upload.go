package models

import "time"

// Upload records one accepted image upload. Rows are written exactly once
// by the quota guard and are immutable afterwards; nothing deletes them.
// CreatedAt is the reference instant the guard counted the upload against.
type Upload struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index:idx_uploads_user_created;not null" json:"user_id"`
	StoredName   string    `gorm:"size:255;not null" json:"stored_name"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	CreatedAt    time.Time `gorm:"index:idx_uploads_user_created;not null" json:"created_at"`
}
