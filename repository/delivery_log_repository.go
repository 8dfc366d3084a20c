package repository

import (
	"context"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
)

// DeliveryLogRepositoryImpl implements DeliveryLogRepository
type DeliveryLogRepositoryImpl struct {
	*BaseRepository[models.DeliveryLog]
}

func NewDeliveryLogRepository(db *gorm.DB) DeliveryLogRepository {
	return &DeliveryLogRepositoryImpl{BaseRepository: NewBaseRepository[models.DeliveryLog](db)}
}

func (r *DeliveryLogRepositoryImpl) applyFilter(db *gorm.DB, filter models.DeliveryLogFilter) *gorm.DB {
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Kind != nil {
		db = db.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}
	return db
}

func (r *DeliveryLogRepositoryImpl) ByFilter(ctx context.Context, filter models.DeliveryLogFilter, limit int) ([]*models.DeliveryLog, error) {
	db := r.applyFilter(r.getDB(ctx), filter).Order("created_at ASC, id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var rows []*models.DeliveryLog
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
