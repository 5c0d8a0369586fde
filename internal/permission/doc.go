// Package permission is the authoritative side of access control.
//
// Store reads permissions, roles and grants through gorm. Service is the only
// writer of Permission, Role and RolePermission rows; every mutating method
// ends with an explicit call on its Invalidator so cached copies never outlive
// the change. HasPermission and BatchCheck are the matching rules: exact string
// equality on resource type and action type, no wildcards or hierarchy.
//
// A user's effective roles are the role referenced by users.role_id plus the
// roles mapped from the user's groups. Only active roles and active
// permissions with a granted link count.
package permission
