package models

import "time"

// Permission is an atomic capability identified by its (ResourceType, ActionType) pair.
type Permission struct {
	ID uint `gorm:"primaryKey"`
	// Code is unique, conventionally "resource:action" (e.g. "project:read").
	Code         string `gorm:"uniqueIndex;size:100;not null"`
	Name         string `gorm:"size:100;not null"`
	Description  string `gorm:"size:255"`
	ResourceType string `gorm:"size:50;not null;index:idx_permission_pair"`
	ActionType   string `gorm:"size:50;not null;index:idx_permission_pair"`
	// Module groups permissions for display.
	Module    string `gorm:"size:50"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Permission model.
func (Permission) TableName() string {
	return "permissions"
}
