package model

import (
	"time"

	"gorm.io/gorm"
)

// UploadLink is a time-limited token handed to a client for uploading into a
// single project. MaxUses == nil means unlimited.
type UploadLink struct {
	gorm.Model
	Token     string    `json:"token" gorm:"uniqueIndex"`
	ProjectID uint      `json:"project_id"`
	Project   *Project  `json:"project,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUses   *int      `json:"max_uses"`
	UsedCount int       `json:"used_count"`
}

// Expired reports whether the link can no longer accept uploads because its
// expiry timestamp has passed.
func (l *UploadLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Exhausted reports whether the link has hit its usage ceiling.
func (l *UploadLink) Exhausted() bool {
	return l.MaxUses != nil && l.UsedCount >= *l.MaxUses
}
