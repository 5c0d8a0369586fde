package models

import "time"

// UserPermissionCache is the persisted fallback copy of a user's computed permissions.
// It is derived state: a row is only served while IsValid and ExpiresAt is in the future.
type UserPermissionCache struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint64 `gorm:"uniqueIndex;not null"`
	// PermissionsJSON holds the encoded permission records.
	PermissionsJSON string    `gorm:"type:text;not null"`
	CachedAt        time.Time `gorm:"not null"`
	ExpiresAt       time.Time `gorm:"not null;index"`
	IsValid         bool      `gorm:"not null"`
}

// TableName specifies the database table name for the UserPermissionCache model.
func (UserPermissionCache) TableName() string {
	return "user_permission_caches"
}

// Expired reports whether the row is past its expiry at now.
func (c *UserPermissionCache) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
