package permission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/pmhub/pmhub/internal/db/controller/permcache"
	"github.com/pmhub/pmhub/internal/db/models"
)

// Store answers the read queries of the permission layer.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// EffectiveRoleIDs returns the direct role of the user plus the roles mapped from its groups.
// Inactive users have no roles.
func (s *Store) EffectiveRoleIDs(ctx context.Context, userID uint64) ([]uint, error) {
	return effectiveRoleIDs(s.db.WithContext(ctx), userID)
}

func effectiveRoleIDs(db *gorm.DB, userID uint64) ([]uint, error) {
	var user models.User

	err := db.Select("id", "role_id", "active").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("user", userID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.Active {
		return nil, nil
	}

	var groupRoleIDs []uint

	err = db.Model(&models.GroupMapping{}).
		Joins("JOIN user_groups ON user_groups.group_id = group_mappings.group_id").
		Where("user_groups.user_id = ?", userID).
		Pluck("group_mappings.role_id", &groupRoleIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load group roles: %w", err)
	}

	ids := []uint{user.RoleID}
	for _, id := range groupRoleIDs {
		if id != user.RoleID && !containsUint(ids, id) {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// UserPermissions returns the deduplicated active permissions granted to any active role of the user.
func (s *Store) UserPermissions(ctx context.Context, userID uint64) ([]Record, error) {
	db := s.db.WithContext(ctx)

	roleIDs, err := effectiveRoleIDs(db, userID)
	if err != nil {
		return nil, err
	}

	if len(roleIDs) == 0 {
		return []Record{}, nil
	}

	var perms []models.Permission

	err = db.Model(&models.Permission{}).
		Select("DISTINCT permissions.*").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN roles ON roles.id = role_permissions.role_id").
		Where("role_permissions.role_id IN ?", roleIDs).
		Where("role_permissions.is_granted = ? AND roles.is_active = ? AND permissions.is_active = ?", true, true, true).
		Order("permissions.id").
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load user permissions: %w", err)
	}

	return Dedupe(FromModels(perms)), nil
}

// UserRoleCodes returns the codes of the user's active effective roles.
func (s *Store) UserRoleCodes(ctx context.Context, userID uint64) ([]string, error) {
	db := s.db.WithContext(ctx)

	roleIDs, err := effectiveRoleIDs(db, userID)
	if err != nil {
		return nil, err
	}

	codes := []string{}
	if len(roleIDs) == 0 {
		return codes, nil
	}

	err = db.Model(&models.Role{}).
		Where("id IN ? AND is_active = ?", roleIDs, true).
		Order("code").
		Pluck("code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load role codes: %w", err)
	}

	return codes, nil
}

// RolePermissions returns the active permissions currently granted to the role.
func (s *Store) RolePermissions(ctx context.Context, roleID uint) ([]Record, error) {
	db := s.db.WithContext(ctx)

	if err := roleExists(db, roleID); err != nil {
		return nil, err
	}

	var perms []models.Permission

	err := db.Model(&models.Permission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ? AND role_permissions.is_granted = ? AND permissions.is_active = ?", roleID, true, true).
		Order("permissions.id").
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}

	return FromModels(perms), nil
}

// MatrixRole is one row of the role/permission matrix.
type MatrixRole struct {
	RoleID      uint     `json:"role_id"`
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	IsActive    bool     `json:"is_active"`
	Permissions []string `json:"permissions"` // granted active permission codes
}

// Matrix crosses every role with the permissions granted to it.
type Matrix struct {
	Roles       []MatrixRole `json:"roles"`
	Permissions []Record     `json:"permissions"`
}

// Matrix builds the full role/permission matrix.
func (s *Store) Matrix(ctx context.Context) (Matrix, error) {
	db := s.db.WithContext(ctx)

	var roles []models.Role
	if err := db.Order("id").Find(&roles).Error; err != nil {
		return Matrix{}, fmt.Errorf("failed to load roles: %w", err)
	}

	var perms []models.Permission
	if err := db.Where("is_active = ?", true).Order("id").Find(&perms).Error; err != nil {
		return Matrix{}, fmt.Errorf("failed to load permissions: %w", err)
	}

	var grants []struct {
		RoleID uint
		Code   string
	}

	err := db.Model(&models.RolePermission{}).
		Select("role_permissions.role_id, permissions.code").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("role_permissions.is_granted = ? AND permissions.is_active = ?", true, true).
		Order("role_permissions.role_id, permissions.code").
		Scan(&grants).Error
	if err != nil {
		return Matrix{}, fmt.Errorf("failed to load grants: %w", err)
	}

	byRole := make(map[uint][]string, len(roles))
	for _, g := range grants {
		byRole[g.RoleID] = append(byRole[g.RoleID], g.Code)
	}

	m := Matrix{Roles: make([]MatrixRole, 0, len(roles)), Permissions: FromModels(perms)}

	for _, r := range roles {
		codes := byRole[r.ID]
		if codes == nil {
			codes = []string{}
		}

		m.Roles = append(m.Roles, MatrixRole{RoleID: r.ID, Code: r.Code, Name: r.Name, IsActive: r.IsActive, Permissions: codes})
	}

	return m, nil
}

// UsersWithRole returns every user holding the role directly or through a group mapping.
func (s *Store) UsersWithRole(ctx context.Context, roleID uint) ([]uint64, error) {
	return usersWithRole(s.db.WithContext(ctx), roleID)
}

func usersWithRole(db *gorm.DB, roleID uint) ([]uint64, error) {
	var direct, viaGroups []uint64

	if err := db.Model(&models.User{}).Where("role_id = ?", roleID).Pluck("id", &direct).Error; err != nil {
		return nil, fmt.Errorf("failed to load role holders: %w", err)
	}

	err := db.Model(&models.UserGroup{}).
		Joins("JOIN group_mappings ON group_mappings.group_id = user_groups.group_id").
		Where("group_mappings.role_id = ?", roleID).
		Pluck("user_groups.user_id", &viaGroups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load group role holders: %w", err)
	}

	return uniqueSorted(append(direct, viaGroups...)), nil
}

// UsersInGroup returns the members of the group.
func (s *Store) UsersInGroup(ctx context.Context, groupID uint) ([]uint64, error) {
	return usersInGroup(s.db.WithContext(ctx), groupID)
}

func usersInGroup(db *gorm.DB, groupID uint) ([]uint64, error) {
	var ids []uint64

	if err := db.Model(&models.UserGroup{}).Where("group_id = ?", groupID).Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to load group members: %w", err)
	}

	return uniqueSorted(ids), nil
}

// Filter narrows ListPermissions. Zero values do not filter.
type Filter struct {
	ResourceType string `json:"resource_type,omitempty" query:"resource_type"`
	ActionType   string `json:"action_type,omitempty" query:"action_type"`
	Module       string `json:"module,omitempty" query:"module"`
	Active       *bool  `json:"active,omitempty" query:"active"`
	Keyword      string `json:"keyword,omitempty" query:"keyword"` // matched against code, name and description
	Page         int    `json:"page,omitempty" query:"page"`
	PageSize     int    `json:"page_size,omitempty" query:"page_size"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Normalize clamps paging values.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}

	switch {
	case f.PageSize < 1:
		f.PageSize = defaultPageSize
	case f.PageSize > maxPageSize:
		f.PageSize = maxPageSize
	}

	return f
}

// Page is one page of permissions.
type Page struct {
	Items    []Record `json:"items"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// ListPermissions returns the filtered permissions ordered by module and code.
func (s *Store) ListPermissions(ctx context.Context, f Filter) (Page, error) {
	f = f.Normalize()
	q := s.db.WithContext(ctx).Model(&models.Permission{})

	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}

	if f.ActionType != "" {
		q = q.Where("action_type = ?", f.ActionType)
	}

	if f.Module != "" {
		q = q.Where("module = ?", f.Module)
	}

	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	if f.Keyword != "" {
		kw := "%" + f.Keyword + "%"
		q = q.Where("code LIKE ? OR name LIKE ? OR description LIKE ?", kw, kw, kw)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("failed to count permissions: %w", err)
	}

	var perms []models.Permission

	err := q.Order("module, code").Limit(f.PageSize).Offset((f.Page - 1) * f.PageSize).Find(&perms).Error
	if err != nil {
		return Page{}, fmt.Errorf("failed to list permissions: %w", err)
	}

	return Page{Items: FromModels(perms), Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// GetPermission returns one permission.
func (s *Store) GetPermission(ctx context.Context, id uint) (Record, error) {
	var p models.Permission

	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, notFound("permission", id)
	}

	if err != nil {
		return Record{}, fmt.Errorf("failed to load permission: %w", err)
	}

	return FromModel(&p), nil
}

// ActivePermissions returns every active permission.
func (s *Store) ActivePermissions(ctx context.Context) ([]Record, error) {
	var perms []models.Permission

	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("module, code").Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("failed to load active permissions: %w", err)
	}

	return FromModels(perms), nil
}

// RecentActiveUsers returns up to limit active users, most recently updated first.
func (s *Store) RecentActiveUsers(ctx context.Context, limit int) ([]uint64, error) {
	var ids []uint64

	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("active = ?", true).
		Order("updated_at DESC, id").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active users: %w", err)
	}

	return ids, nil
}

// PersistedUserPermissions returns the persisted fallback copy if it is valid at now.
func (s *Store) PersistedUserPermissions(ctx context.Context, userID uint64, now time.Time) ([]Record, bool, error) {
	row, err := permcache.Get(s.db.WithContext(ctx), userID, now)
	if errors.Is(err, permcache.ErrRowNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to read persisted permissions: %w", err)
	}

	recs, err := DecodeRecords(row.PermissionsJSON)
	if err != nil {
		return nil, false, err
	}

	return recs, true, nil
}

// SaveUserPermissions writes the persisted fallback copy.
func (s *Store) SaveUserPermissions(ctx context.Context, userID uint64, recs []Record, ttl time.Duration, now time.Time) error {
	payload, err := EncodeRecords(recs)
	if err != nil {
		return err
	}

	if _, err := permcache.Set(s.db.WithContext(ctx), userID, payload, ttl, now); err != nil {
		return fmt.Errorf("failed to persist permissions: %w", err)
	}

	return nil
}

// InvalidatePersisted marks the persisted copies of the users invalid.
func (s *Store) InvalidatePersisted(ctx context.Context, userIDs ...uint64) error {
	_, err := permcache.Invalidate(s.db.WithContext(ctx), userIDs...)

	return err //nolint:wrapcheck
}

// InvalidateAllPersisted marks every persisted copy invalid.
func (s *Store) InvalidateAllPersisted(ctx context.Context) error {
	_, err := permcache.InvalidateAll(s.db.WithContext(ctx))

	return err //nolint:wrapcheck
}

// PurgeExpiredPersisted deletes persisted copies that expired or were invalidated.
func (s *Store) PurgeExpiredPersisted(ctx context.Context, now time.Time) (int64, error) {
	return permcache.DeleteExpired(s.db.WithContext(ctx), now) //nolint:wrapcheck
}

func roleExists(db *gorm.DB, roleID uint) error {
	var count int64
	if err := db.Model(&models.Role{}).Where("id = ?", roleID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to load role: %w", err)
	}

	if count == 0 {
		return notFound("role", roleID)
	}

	return nil
}

func containsUint(s []uint, v uint) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}

	return false
}

func uniqueSorted(ids []uint64) []uint64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := ids[:0]

	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}

	return out
}
