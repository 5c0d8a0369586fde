package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pmhub/pmhub/internal/db/controller/permcache"
	"github.com/pmhub/pmhub/internal/db/models"
	"github.com/pmhub/pmhub/internal/logger"
)

// Invalidator drops cached state derived from the store.
// Every mutating Service method ends with the calls naming what it changed.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID uint64)
	InvalidateUsers(ctx context.Context, userIDs []uint64)
	InvalidateRole(ctx context.Context, roleID uint)
	InvalidateAllRoles(ctx context.Context)
	InvalidatePermission(ctx context.Context, permissionID uint)
	InvalidatePermissionLists(ctx context.Context)
	InvalidateAllUsers(ctx context.Context)
}

// NopInvalidator ignores every invalidation.
type NopInvalidator struct{}

func (NopInvalidator) InvalidateUser(context.Context, uint64)     {}
func (NopInvalidator) InvalidateUsers(context.Context, []uint64)  {}
func (NopInvalidator) InvalidateRole(context.Context, uint)       {}
func (NopInvalidator) InvalidateAllRoles(context.Context)         {}
func (NopInvalidator) InvalidatePermission(context.Context, uint) {}
func (NopInvalidator) InvalidatePermissionLists(context.Context)  {}
func (NopInvalidator) InvalidateAllUsers(context.Context)         {}

// Service is the only writer of permissions, roles and grants.
type Service struct {
	store *Store
	inv   Invalidator
	log   zerolog.Logger
	now   func() time.Time
}

// NewService creates a Service. A nil inv disables cache invalidation.
func NewService(store *Store, inv Invalidator) *Service {
	if inv == nil {
		inv = NopInvalidator{}
	}

	return &Service{
		store: store,
		inv:   inv,
		log:   logger.Component("permission"),
		now:   time.Now,
	}
}

// Store returns the read side.
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.store.db.WithContext(ctx).Transaction(fn) //nolint:wrapcheck
}

// CreatePermission inserts a permission. A taken code is a conflict.
func (s *Service) CreatePermission(ctx context.Context, in CreatePermissionInput) (Record, error) {
	if err := Validate(&in); err != nil {
		return Record{}, err
	}

	p := models.Permission{
		Code:         in.Code,
		Name:         in.Name,
		Description:  in.Description,
		ResourceType: in.ResourceType,
		ActionType:   in.ActionType,
		Module:       in.Module,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := codeFree(tx, &models.Permission{}, "permission", in.Code, 0); err != nil {
			return err
		}

		return translate(tx.Create(&p).Error, "permission code %q already exists", in.Code)
	})
	if err != nil {
		return Record{}, err
	}

	s.log.Info().Uint("permission", p.ID).Str("code", p.Code).Msg("permission created")
	s.inv.InvalidatePermissionLists(ctx)

	return FromModel(&p), nil
}

// UpdatePermission applies the non-nil fields of in.
// When the permission is granted to any role every user cache is dropped.
func (s *Service) UpdatePermission(ctx context.Context, id uint, in UpdatePermissionInput) (Record, error) {
	if id == 0 {
		return Record{}, NewValidationError("permission id is required")
	}

	if err := Validate(&in); err != nil {
		return Record{}, err
	}

	var (
		p       models.Permission
		granted int64
	)

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := first(tx, &p, "permission", id); err != nil {
			return err
		}

		updates := map[string]any{}

		if in.Code != nil && *in.Code != p.Code {
			if err := codeFree(tx, &models.Permission{}, "permission", *in.Code, id); err != nil {
				return err
			}

			updates["code"] = *in.Code
		}

		setIfChanged(updates, "name", in.Name, p.Name)
		setIfChanged(updates, "description", in.Description, p.Description)
		setIfChanged(updates, "resource_type", in.ResourceType, p.ResourceType)
		setIfChanged(updates, "action_type", in.ActionType, p.ActionType)
		setIfChanged(updates, "module", in.Module, p.Module)

		if in.IsActive != nil && *in.IsActive != p.IsActive {
			updates["is_active"] = *in.IsActive
		}

		if len(updates) == 0 {
			return nil
		}

		if err := translate(tx.Model(&p).Updates(updates).Error, "permission code %v already exists", updates["code"]); err != nil {
			return err
		}

		if err := first(tx, &p, "permission", id); err != nil {
			return err
		}

		var err error
		if granted, err = grantCount(tx, id); err != nil {
			return err
		}

		if granted > 0 {
			_, err = permcache.InvalidateAll(tx)
		}

		return err //nolint:wrapcheck
	})
	if err != nil {
		return Record{}, err
	}

	s.inv.InvalidatePermission(ctx, id)

	if granted > 0 {
		s.inv.InvalidateAllRoles(ctx)
		s.inv.InvalidateAllUsers(ctx)
	}

	return FromModel(&p), nil
}

// DeletePermission removes a permission that no role currently holds.
// Otherwise it fails with a *ConflictError carrying the number of granting roles.
func (s *Service) DeletePermission(ctx context.Context, id uint) error {
	if id == 0 {
		return NewValidationError("permission id is required")
	}

	var p models.Permission

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := first(tx, &p, "permission", id); err != nil {
			return err
		}

		granted, err := grantCount(tx, id)
		if err != nil {
			return err
		}

		if granted > 0 {
			return &ConflictError{
				Msg:        fmt.Sprintf("permission %q is still granted to roles", p.Code),
				References: granted,
			}
		}

		// revoked grant history goes with the permission
		if err := tx.Where("permission_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to delete grant history: %w", err)
		}

		return translate(tx.Delete(&p).Error, "permission %q is referenced", p.Code)
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("permission", id).Str("code", p.Code).Msg("permission deleted")
	s.inv.InvalidatePermission(ctx, id)

	return nil
}

// AssignPermissionsToRole grants every listed permission to the role or none of them.
// A revoked grant is granted again in place, so a pair never gets a second row.
func (s *Service) AssignPermissionsToRole(ctx context.Context, in GrantInput) (AssignResult, error) {
	if err := Validate(&in); err != nil {
		return AssignResult{}, err
	}

	ids := uniqueIDs(in.PermissionIDs)

	var (
		res   AssignResult
		users []uint64
	)

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := roleExists(tx, in.RoleID); err != nil {
			return err
		}

		if err := activePermissions(tx, ids); err != nil {
			return err
		}

		var rows []models.RolePermission
		if err := tx.Where("role_id = ? AND permission_id IN ?", in.RoleID, ids).Find(&rows).Error; err != nil {
			return fmt.Errorf("failed to load grants: %w", err)
		}

		existing := make(map[uint]*models.RolePermission, len(rows))
		for i := range rows {
			existing[rows[i].PermissionID] = &rows[i]
		}

		now := s.now()

		for _, pid := range ids {
			row, ok := existing[pid]

			switch {
			case ok && row.IsGranted:
				res.Unchanged++
			case ok:
				err := tx.Model(row).Updates(map[string]any{
					"is_granted": true,
					"granted_at": now,
					"granted_by": in.OperatorID,
					"revoked_at": nil,
					"revoked_by": nil,
					"reason":     in.Reason,
				}).Error
				if err != nil {
					return fmt.Errorf("failed to regrant permission %d: %w", pid, err)
				}

				res.Regranted++
			default:
				err := tx.Create(&models.RolePermission{
					RoleID:       in.RoleID,
					PermissionID: pid,
					IsGranted:    true,
					GrantedAt:    now,
					GrantedBy:    in.OperatorID,
					Reason:       in.Reason,
				}).Error
				if err = translate(err, "permission %d is already linked to role %d", pid, in.RoleID); err != nil {
					return err
				}

				res.Granted++
			}
		}

		var err error
		if users, err = usersWithRole(tx, in.RoleID); err != nil {
			return err
		}

		_, err = permcache.Invalidate(tx, users...)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return AssignResult{}, err
	}

	s.log.Info().
		Uint("role", in.RoleID).
		Uint64("operator", in.OperatorID).
		Int("granted", res.Granted).
		Int("regranted", res.Regranted).
		Int("affectedUsers", len(users)).
		Msg("permissions assigned")

	s.inv.InvalidateRole(ctx, in.RoleID)
	s.inv.InvalidateUsers(ctx, users)

	return res, nil
}

// RevokePermissionsFromRole revokes the listed grants and returns how many were revoked.
// Revoking nothing is ErrNotFound.
func (s *Service) RevokePermissionsFromRole(ctx context.Context, in GrantInput) (int64, error) {
	if err := Validate(&in); err != nil {
		return 0, err
	}

	ids := uniqueIDs(in.PermissionIDs)

	var (
		revoked int64
		users   []uint64
	)

	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := roleExists(tx, in.RoleID); err != nil {
			return err
		}

		result := tx.Model(&models.RolePermission{}).
			Where("role_id = ? AND permission_id IN ? AND is_granted = ?", in.RoleID, ids, true).
			Updates(map[string]any{
				"is_granted": false,
				"revoked_at": s.now(),
				"revoked_by": in.OperatorID,
				"reason":     in.Reason,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to revoke permissions: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			return fmt.Errorf("no granted permissions among %v on role %d: %w", ids, in.RoleID, ErrNotFound)
		}

		revoked = result.RowsAffected

		var err error
		if users, err = usersWithRole(tx, in.RoleID); err != nil {
			return err
		}

		_, err = permcache.Invalidate(tx, users...)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().
		Uint("role", in.RoleID).
		Uint64("operator", in.OperatorID).
		Int64("revoked", revoked).
		Int("affectedUsers", len(users)).
		Msg("permissions revoked")

	s.inv.InvalidateRole(ctx, in.RoleID)
	s.inv.InvalidateUsers(ctx, users)

	return revoked, nil
}

// PurgeExpiredCache deletes persisted permission rows that expired or were invalidated.
func (s *Service) PurgeExpiredCache(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpiredPersisted(ctx, s.now())
	if err != nil {
		return 0, err
	}

	s.log.Debug().Int64("rows", n).Msg("purged persisted permission cache")

	return n, nil
}

// Stats reports permission and grant counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

// activePermissions fails unless every id names an active permission.
func activePermissions(tx *gorm.DB, ids []uint) error {
	var perms []models.Permission
	if err := tx.Select("id", "code", "is_active").Where("id IN ?", ids).Find(&perms).Error; err != nil {
		return fmt.Errorf("failed to load permissions: %w", err)
	}

	found := make(map[uint]bool, len(perms))
	for i := range perms {
		found[perms[i].ID] = perms[i].IsActive
	}

	for _, id := range ids {
		active, ok := found[id]
		if !ok {
			return notFound("permission", id)
		}

		if !active {
			return NewValidationError(fmt.Sprintf("permission %d is inactive", id))
		}
	}

	return nil
}

func grantCount(tx *gorm.DB, permissionID uint) (int64, error) {
	var n int64

	err := tx.Model(&models.RolePermission{}).
		Where("permission_id = ? AND is_granted = ?", permissionID, true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count grants: %w", err)
	}

	return n, nil
}

// codeFree fails with a conflict when another row of model already uses code.
func codeFree(tx *gorm.DB, model any, what, code string, exceptID uint) error {
	return columnFree(tx, model, what, "code", code, exceptID)
}

func columnFree(tx *gorm.DB, model any, what, column, value string, exceptID uint) error {
	var n int64

	q := tx.Model(model).Where(column+" = ?", value)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}

	if err := q.Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check %s %s: %w", what, column, err)
	}

	if n > 0 {
		return &ConflictError{Msg: fmt.Sprintf("%s %s %q already exists", what, column, value)}
	}

	return nil
}

// first loads dest by primary key, mapping a missing row to ErrNotFound.
func first(tx *gorm.DB, dest any, what string, id any) error {
	err := tx.First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what, id)
	}

	if err != nil {
		return fmt.Errorf("failed to load %s: %w", what, err)
	}

	return nil
}

// translate turns gorm integrity errors into the package taxonomy.
func translate(err error, conflictFormat string, args ...any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &ConflictError{Msg: fmt.Sprintf(conflictFormat, args...)}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return NewValidationError("referenced record does not exist")
	default:
		return fmt.Errorf("store: %w", err)
	}
}

func setIfChanged(updates map[string]any, column string, v *string, current string) {
	if v != nil && *v != current {
		updates[column] = *v
	}
}

func uniqueIDs(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !containsUint(out, id) {
			out = append(out, id)
		}
	}

	return out
}
