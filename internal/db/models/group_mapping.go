package models

import "time"

// GroupMapping gives the members of a group an additional role.
// A group maps to at most one role.
type GroupMapping struct {
	ID        uint  `gorm:"primaryKey"`
	GroupID   uint  `gorm:"not null;uniqueIndex"`
	RoleID    uint  `gorm:"not null;index"`
	Group     Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	Role      Role  `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the database table name for the GroupMapping model.
func (GroupMapping) TableName() string {
	return "group_mappings"
}
