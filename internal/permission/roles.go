package permission

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pmhub/pmhub/internal/db/controller/permcache"
	"github.com/pmhub/pmhub/internal/db/models"
)

// CreateRole inserts a role. Code and name must both be unused.
func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput) (RoleRecord, error) {
	if err := Validate(&in); err != nil {
		return RoleRecord{}, err
	}

	r := models.Role{
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		IsActive:    in.IsActive == nil || *in.IsActive,
		IsSystem:    in.IsSystem,
	}

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := codeFree(tx, &models.Role{}, "role", in.Code, 0); err != nil {
			return err
		}

		if err := columnFree(tx, &models.Role{}, "role", "name", in.Name, 0); err != nil {
			return err
		}

		return translate(tx.Create(&r).Error, "role %q already exists", in.Code)
	})
	if err != nil {
		return RoleRecord{}, err
	}

	s.log.Info().Uint("role", r.ID).Str("code", r.Code).Msg("role created")
	s.inv.InvalidateRole(ctx, r.ID)

	return RoleFromModel(&r), nil
}

// UpdateRole applies the non-nil fields of in. System roles can not be deactivated.
func (s *Service) UpdateRole(ctx context.Context, id uint, in UpdateRoleInput) (RoleRecord, error) {
	if id == 0 {
		return RoleRecord{}, NewValidationError("role id is required")
	}

	if err := Validate(&in); err != nil {
		return RoleRecord{}, err
	}

	var (
		r     models.Role
		users []uint64
	)

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := first(tx, &r, "role", id); err != nil {
			return err
		}

		updates := map[string]any{}
		holdersChanged := false

		if in.Code != nil && *in.Code != r.Code {
			if err := codeFree(tx, &models.Role{}, "role", *in.Code, id); err != nil {
				return err
			}

			updates["code"] = *in.Code
			holdersChanged = true
		}

		if in.Name != nil && *in.Name != r.Name {
			if err := columnFree(tx, &models.Role{}, "role", "name", *in.Name, id); err != nil {
				return err
			}

			updates["name"] = *in.Name
		}

		setIfChanged(updates, "description", in.Description, r.Description)

		if in.IsActive != nil && *in.IsActive != r.IsActive {
			if r.IsSystem && !*in.IsActive {
				return &ConflictError{Msg: fmt.Sprintf("system role %q can not be deactivated", r.Code)}
			}

			updates["is_active"] = *in.IsActive
			holdersChanged = true
		}

		if len(updates) == 0 {
			return nil
		}

		if err := translate(tx.Model(&r).Updates(updates).Error, "role %d code or name already exists", id); err != nil {
			return err
		}

		if err := first(tx, &r, "role", id); err != nil {
			return err
		}

		if !holdersChanged {
			return nil
		}

		var err error
		if users, err = usersWithRole(tx, id); err != nil {
			return err
		}

		_, err = permcache.Invalidate(tx, users...)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return RoleRecord{}, err
	}

	s.inv.InvalidateRole(ctx, id)
	s.inv.InvalidateUsers(ctx, users)

	return RoleFromModel(&r), nil
}

// DeleteRole removes a role no user holds directly.
// Its grants and group mappings go with it; members of mapped groups lose the role.
func (s *Service) DeleteRole(ctx context.Context, id uint) error {
	if id == 0 {
		return NewValidationError("role id is required")
	}

	var (
		r     models.Role
		users []uint64
	)

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := first(tx, &r, "role", id); err != nil {
			return err
		}

		if r.IsSystem {
			return &ConflictError{Msg: fmt.Sprintf("system role %q can not be deleted", r.Code)}
		}

		var holders int64
		if err := tx.Model(&models.User{}).Where("role_id = ?", id).Count(&holders).Error; err != nil {
			return fmt.Errorf("failed to count role holders: %w", err)
		}

		if holders > 0 {
			return &ConflictError{
				Msg:        fmt.Sprintf("role %q is still assigned to users", r.Code),
				References: holders,
			}
		}

		var err error
		if users, err = usersWithRole(tx, id); err != nil {
			return err
		}

		if err := tx.Where("role_id = ?", id).Delete(&models.GroupMapping{}).Error; err != nil {
			return fmt.Errorf("failed to delete group mappings: %w", err)
		}

		if err := tx.Where("role_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to delete grants: %w", err)
		}

		if err := translate(tx.Delete(&r).Error, "role %q is referenced", r.Code); err != nil {
			return err
		}

		_, err = permcache.Invalidate(tx, users...)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("role", id).Str("code", r.Code).Int("affectedUsers", len(users)).Msg("role deleted")
	s.inv.InvalidateRole(ctx, id)
	s.inv.InvalidateUsers(ctx, users)

	return nil
}

// GetRole returns one role.
func (s *Service) GetRole(ctx context.Context, id uint) (RoleRecord, error) {
	var r models.Role
	if err := first(s.store.db.WithContext(ctx), &r, "role", id); err != nil {
		return RoleRecord{}, err
	}

	return RoleFromModel(&r), nil
}

// ListRoles returns every role ordered by code.
func (s *Service) ListRoles(ctx context.Context) ([]RoleRecord, error) {
	var roles []models.Role
	if err := s.store.db.WithContext(ctx).Order("code").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	out := make([]RoleRecord, 0, len(roles))
	for i := range roles {
		out = append(out, RoleFromModel(&roles[i]))
	}

	return out, nil
}

// RoleByCode looks a role up by its code.
func (s *Service) RoleByCode(ctx context.Context, code string) (RoleRecord, error) {
	var r models.Role

	err := s.store.db.WithContext(ctx).Where("code = ?", code).Limit(1).Find(&r).Error
	if err != nil {
		return RoleRecord{}, fmt.Errorf("failed to load role: %w", err)
	}

	if r.ID == 0 {
		return RoleRecord{}, notFound("role", code)
	}

	return RoleFromModel(&r), nil
}

// CreateUser inserts an active user with an Argon2id hashed password.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (uint64, error) {
	if err := Validate(&in); err != nil {
		return 0, err
	}

	hash, err := models.HashPassword(in.Password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	u := models.User{
		Active:    true,
		Username:  in.Username,
		Email:     in.Email,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		RoleID:    in.RoleID,
	}

	err = s.tx(ctx, func(tx *gorm.DB) error {
		if err := roleExists(tx, in.RoleID); err != nil {
			return err
		}

		if err := columnFree(tx, &models.User{}, "user", "username", in.Username, 0); err != nil {
			return err
		}

		return translate(tx.Create(&u).Error, "username %q already exists", in.Username)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().Uint64("user", u.ID).Str("username", u.Username).Msg("user created")

	return u.ID, nil
}

// AssignRoleToUser replaces the user's direct role.
func (s *Service) AssignRoleToUser(ctx context.Context, userID uint64, roleID uint) error {
	if userID == 0 || roleID == 0 {
		return NewValidationError("user id and role id are required")
	}

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := roleExists(tx, roleID); err != nil {
			return err
		}

		result := tx.Model(&models.User{}).Where("id = ?", userID).Update("role_id", roleID)
		if result.Error != nil {
			return translate(result.Error, "user %d", userID)
		}

		if result.RowsAffected == 0 {
			return notFound("user", userID)
		}

		_, err := permcache.Invalidate(tx, userID)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint64("user", userID).Uint("role", roleID).Msg("role assigned to user")
	s.inv.InvalidateUser(ctx, userID)

	return nil
}

// CreateGroup inserts a group.
func (s *Service) CreateGroup(ctx context.Context, in CreateGroupInput) (uint, error) {
	if err := Validate(&in); err != nil {
		return 0, err
	}

	g := models.Group{Name: in.Name, Description: in.Description}

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := columnFree(tx, &models.Group{}, "group", "name", in.Name, 0); err != nil {
			return err
		}

		return translate(tx.Create(&g).Error, "group %q already exists", in.Name)
	})
	if err != nil {
		return 0, err
	}

	return g.ID, nil
}

// MapGroupToRole gives every member of the group the role, replacing an earlier mapping.
func (s *Service) MapGroupToRole(ctx context.Context, groupID, roleID uint) error {
	if groupID == 0 || roleID == 0 {
		return NewValidationError("group id and role id are required")
	}

	var (
		members  []uint64
		previous uint
	)

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := first(tx, &models.Group{}, "group", groupID); err != nil {
			return err
		}

		if err := roleExists(tx, roleID); err != nil {
			return err
		}

		var old models.GroupMapping
		if err := tx.Where("group_id = ?", groupID).Limit(1).Find(&old).Error; err != nil {
			return fmt.Errorf("failed to load group mapping: %w", err)
		}

		previous = old.RoleID

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role_id", "updated_at"}),
		}).Create(&models.GroupMapping{GroupID: groupID, RoleID: roleID}).Error
		if err != nil {
			return translate(err, "group %d is already mapped", groupID)
		}

		if members, err = usersInGroup(tx, groupID); err != nil {
			return err
		}

		_, err = permcache.Invalidate(tx, members...)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("group", groupID).Uint("role", roleID).Uint("previousRole", previous).Msg("group mapped to role")
	s.inv.InvalidateUsers(ctx, members)

	return nil
}

// AddUserToGroup makes the user a member of the group. Adding an existing member is a no-op.
func (s *Service) AddUserToGroup(ctx context.Context, userID uint64, groupID uint) error {
	if userID == 0 || groupID == 0 {
		return NewValidationError("user id and group id are required")
	}

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := first(tx, &models.User{}, "user", userID); err != nil {
			return err
		}

		if err := first(tx, &models.Group{}, "group", groupID); err != nil {
			return err
		}

		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.UserGroup{UserID: userID, GroupID: groupID}).Error
		if err != nil {
			return translate(err, "user %d is already in group %d", userID, groupID)
		}

		_, err = permcache.Invalidate(tx, userID)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return err
	}

	s.inv.InvalidateUser(ctx, userID)

	return nil
}
