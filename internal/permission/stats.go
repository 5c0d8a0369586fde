package permission

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pmhub/pmhub/internal/db/models"
)

// Stats are the aggregate counts shown on admin dashboards.
type Stats struct {
	Total              int64            `json:"total"`
	Active             int64            `json:"active"`
	Inactive           int64            `json:"inactive"`
	ByResourceType     map[string]int64 `json:"by_resource_type"`
	ByActionType       map[string]int64 `json:"by_action_type"`
	RolesWithGrants    int64            `json:"roles_with_permissions"`
	TotalGrants        int64            `json:"total_grants"`
	PersistedCacheRows int64            `json:"persisted_cache_rows"`
}

// Stats counts permissions, grants and persisted cache rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	st := Stats{}

	if err := db.Model(&models.Permission{}).Count(&st.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count permissions: %w", err)
	}

	if err := db.Model(&models.Permission{}).Where("is_active = ?", true).Count(&st.Active).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count active permissions: %w", err)
	}

	st.Inactive = st.Total - st.Active

	var err error
	if st.ByResourceType, err = groupCount(db, "resource_type"); err != nil {
		return Stats{}, err
	}

	if st.ByActionType, err = groupCount(db, "action_type"); err != nil {
		return Stats{}, err
	}

	granted := db.Model(&models.RolePermission{}).Where("is_granted = ?", true)

	if err := granted.Session(&gorm.Session{}).Count(&st.TotalGrants).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count grants: %w", err)
	}

	if err := granted.Session(&gorm.Session{}).Distinct("role_id").Count(&st.RolesWithGrants).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count roles with grants: %w", err)
	}

	if err := db.Model(&models.UserPermissionCache{}).Count(&st.PersistedCacheRows).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count persisted cache rows: %w", err)
	}

	return st, nil
}

func groupCount(db *gorm.DB, column string) (map[string]int64, error) {
	var rows []struct {
		Grp string
		Cnt int64
	}

	err := db.Model(&models.Permission{}).
		Select(column + " AS grp, COUNT(*) AS cnt").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group permissions by %s: %w", column, err)
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Grp] = r.Cnt
	}

	return out, nil
}
