package models

import "time"

// UserGroup is the membership of a user in a group.
type UserGroup struct {
	UserID    uint64 `gorm:"primaryKey;column:user_id"`
	GroupID   uint   `gorm:"primaryKey;column:group_id;index"`
	User      User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Group     Group  `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserGroup model.
func (UserGroup) TableName() string {
	return "user_groups"
}
