package models

import "time"

// Role is a named bundle of permissions assignable to users directly or through group mappings.
type Role struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;size:50;not null"`
	Name        string `gorm:"uniqueIndex;size:100;not null"`
	Description string `gorm:"size:255"`
	IsActive    bool   `gorm:"not null"`
	// IsSystem roles are created by the seeder and can not be deleted.
	IsSystem  bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Role model.
func (Role) TableName() string {
	return "roles"
}
