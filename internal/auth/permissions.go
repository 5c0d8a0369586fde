package auth

import "github.com/pmhub/pmhub/internal/permission"

// Resource types guarded by the API.
const (
	ResourcePermission = "permission"
	ResourceRole       = "role"
	ResourceUser       = "user"
	ResourceCache      = "cache"
	ResourceConfig     = "config"
)

// Action types.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	// ActionManage covers grants, role assignment and checks on behalf of other users.
	ActionManage = "manage"
)

// PermissionManage allows batch checks for another user.
var PermissionManage = permission.Check{ResourceType: ResourcePermission, ActionType: ActionManage} //nolint:gochecknoglobals

// Builtin returns the permissions guarding the API, created by the seeder.
func Builtin() []permission.CreatePermissionInput {
	type def struct {
		rt, at, name string
	}

	defs := []def{
		{ResourcePermission, ActionRead, "View permissions"},
		{ResourcePermission, ActionCreate, "Create permissions"},
		{ResourcePermission, ActionUpdate, "Edit permissions"},
		{ResourcePermission, ActionDelete, "Delete permissions"},
		{ResourcePermission, ActionManage, "Check permissions of other users"},
		{ResourceRole, ActionRead, "View roles"},
		{ResourceRole, ActionCreate, "Create roles"},
		{ResourceRole, ActionUpdate, "Edit roles"},
		{ResourceRole, ActionDelete, "Delete roles"},
		{ResourceRole, ActionManage, "Grant and revoke role permissions"},
		{ResourceUser, ActionCreate, "Create users"},
		{ResourceUser, ActionManage, "Assign roles and groups"},
		{ResourceCache, ActionRead, "View cache statistics"},
		{ResourceCache, ActionManage, "Clear and warm the permission cache"},
		{ResourceConfig, ActionRead, "View the effective configuration"},
	}

	out := make([]permission.CreatePermissionInput, 0, len(defs))
	for _, d := range defs {
		out = append(out, permission.CreatePermissionInput{
			Code:         d.rt + ":" + d.at,
			Name:         d.name,
			ResourceType: d.rt,
			ActionType:   d.at,
			Module:       "admin",
		})
	}

	return out
}
