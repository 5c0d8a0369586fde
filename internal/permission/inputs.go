package permission

import "github.com/pmhub/pmhub/internal/db/models"

// CreatePermissionInput creates a permission. IsActive defaults to true.
type CreatePermissionInput struct {
	Code         string `json:"code" validate:"required,max=100"`
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=255"`
	ResourceType string `json:"resource_type" validate:"required,max=50,keypart"`
	ActionType   string `json:"action_type" validate:"required,max=50,keypart"`
	Module       string `json:"module" validate:"max=50"`
	IsActive     *bool  `json:"is_active"`
}

// UpdatePermissionInput changes only the non-nil fields.
type UpdatePermissionInput struct {
	Code         *string `json:"code" validate:"omitempty,min=1,max=100"`
	Name         *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description  *string `json:"description" validate:"omitempty,max=255"`
	ResourceType *string `json:"resource_type" validate:"omitempty,min=1,max=50,keypart"`
	ActionType   *string `json:"action_type" validate:"omitempty,min=1,max=50,keypart"`
	Module       *string `json:"module" validate:"omitempty,max=50"`
	IsActive     *bool   `json:"is_active"`
}

// GrantInput names the permissions to assign to or revoke from a role.
type GrantInput struct {
	RoleID        uint   `json:"role_id" validate:"required"`
	PermissionIDs []uint `json:"permission_ids" validate:"required,min=1,dive,required"`
	OperatorID    uint64 `json:"operator_id"`
	Reason        string `json:"reason" validate:"max=255"`
}

// AssignResult counts what an assignment changed.
type AssignResult struct {
	Granted   int `json:"granted"`   // new rows
	Regranted int `json:"regranted"` // revoked rows granted again
	Unchanged int `json:"unchanged"` // already granted
}

// RoleRecord is the API shape of a role.
type RoleRecord struct {
	ID          uint   `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsSystem    bool   `json:"is_system"`
}

// RoleFromModel converts a stored role.
func RoleFromModel(r *models.Role) RoleRecord {
	return RoleRecord{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		IsSystem:    r.IsSystem,
	}
}

// CreateRoleInput creates a role. IsActive defaults to true.
type CreateRoleInput struct {
	Code        string `json:"code" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
	IsSystem    bool   `json:"-"`
}

// UpdateRoleInput changes only the non-nil fields.
type UpdateRoleInput struct {
	Code        *string `json:"code" validate:"omitempty,min=1,max=50"`
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

// CreateUserInput creates an active local user.
type CreateUserInput struct {
	Username  string `json:"username" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	RoleID    uint   `json:"role_id" validate:"required"`
}

// CreateGroupInput creates a group.
type CreateGroupInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}
