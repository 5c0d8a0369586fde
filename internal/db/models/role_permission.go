package models

import "time"

// RolePermission links a role to a permission and keeps the grant history.
// Revoking flips IsGranted and stamps the revoke fields; the row is never deleted,
// so a (role, permission) pair has at most one row.
type RolePermission struct {
	ID           uint `gorm:"primaryKey"`
	RoleID       uint `gorm:"not null;uniqueIndex:idx_role_permission"`
	PermissionID uint `gorm:"not null;uniqueIndex:idx_role_permission;index"`
	IsGranted    bool `gorm:"not null;index"`
	GrantedAt    time.Time
	GrantedBy    uint64
	RevokedAt    *time.Time
	RevokedBy    *uint64
	Reason       string `gorm:"size:255"`

	Role       Role       `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	Permission Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the database table name for the RolePermission model.
func (RolePermission) TableName() string {
	return "role_permissions"
}
