// Package models contains the gorm models of the permission store.
//
// Permission, Role and RolePermission are authoritative. UserPermissionCache rows
// are derived state and are always recomputed from them.
package models

// All returns every model in migration order.
func All() []any {
	return []any{
		&Permission{},
		&Role{},
		&RolePermission{},
		&User{},
		&Group{},
		&UserGroup{},
		&GroupMapping{},
		&UserPermissionCache{},
	}
}
