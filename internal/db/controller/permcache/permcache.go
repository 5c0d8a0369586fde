// Package permcache stores the persisted fallback copy of computed user permissions.
package permcache

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pmhub/pmhub/internal/db/models"
)

const userIDQueryPattern = "user_id = ?"

var (
	// ErrRowNotFound is returned when no valid, unexpired row exists for the user.
	ErrRowNotFound = errors.New("permission cache row not found")
	// ErrUserIDZero is returned for a zero user id.
	ErrUserIDZero = errors.New("permission cache user id cannot be zero")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get returns the user's row if it is valid and not expired at now.
func Get(db *gorm.DB, userID uint64, now time.Time) (*models.UserPermissionCache, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if userID == 0 {
		return nil, ErrUserIDZero
	}

	var row models.UserPermissionCache

	result := db.Where(userIDQueryPattern, userID).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRowNotFound
		}

		return nil, result.Error
	}

	if !row.IsValid || row.Expired(now) {
		return nil, ErrRowNotFound
	}

	return &row, nil
}

// Set creates or overwrites the user's row. The row is valid until now+ttl.
func Set(db *gorm.DB, userID uint64, payload string, ttl time.Duration, now time.Time) (*models.UserPermissionCache, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if userID == 0 {
		return nil, ErrUserIDZero
	}

	row := models.UserPermissionCache{
		UserID:          userID,
		PermissionsJSON: payload,
		CachedAt:        now,
		ExpiresAt:       now.Add(ttl),
		IsValid:         true,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"permissions_json", "cached_at", "expires_at", "is_valid"}),
	}).Create(&row)
	if result.Error != nil {
		return nil, result.Error
	}

	return &row, nil
}

// Invalidate marks the rows of the given users invalid and returns the number of rows changed.
func Invalidate(db *gorm.DB, userIDs ...uint64) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	if len(userIDs) == 0 {
		return 0, nil
	}

	result := db.Model(&models.UserPermissionCache{}).
		Where("user_id IN ? AND is_valid = ?", userIDs, true).
		Update("is_valid", false)

	return result.RowsAffected, result.Error
}

// InvalidateAll marks every row invalid.
func InvalidateAll(db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	result := db.Model(&models.UserPermissionCache{}).
		Where("is_valid = ?", true).
		Update("is_valid", false)

	return result.RowsAffected, result.Error
}

// DeleteExpired removes rows that expired before now or were invalidated.
func DeleteExpired(db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, ErrDBNil
	}

	result := db.Where("expires_at < ? OR is_valid = ?", now, false).
		Delete(&models.UserPermissionCache{})

	return result.RowsAffected, result.Error
}
