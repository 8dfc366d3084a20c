package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
)

// TenantRepositoryImpl implements TenantRepository
type TenantRepositoryImpl struct {
	*BaseRepository[models.Tenant]
}

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &TenantRepositoryImpl{BaseRepository: NewBaseRepository[models.Tenant](db)}
}

// ByIDs loads tenants keyed by id; missing ids are absent from the map
func (r *TenantRepositoryImpl) ByIDs(ctx context.Context, ids []uint) (map[uint]*models.Tenant, error) {
	out := make(map[uint]*models.Tenant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []*models.Tenant
	if err := r.getDB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}
	for _, t := range rows {
		out[t.ID] = t
	}
	return out, nil
}
