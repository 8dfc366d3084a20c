package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
)

// ClientRepositoryImpl implements ClientRepository
type ClientRepositoryImpl struct {
	*BaseRepository[models.Client]
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &ClientRepositoryImpl{BaseRepository: NewBaseRepository[models.Client](db)}
}

func (r *ClientRepositoryImpl) ByTenantAndID(ctx context.Context, tenantID, clientID uint) (*models.Client, error) {
	var row models.Client
	err := r.getDB(ctx).Where("tenant_id = ? AND id = ?", tenantID, clientID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ClientRepositoryImpl) ListActiveDueOn(ctx context.Context, tenantID uint, day time.Time) ([]*models.Client, error) {
	var rows []*models.Client
	err := r.getDB(ctx).
		Where("tenant_id = ? AND is_active AND due_date = ?", tenantID, day.Format(time.DateOnly)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clients due on %s: %w", day.Format(time.DateOnly), err)
	}
	return rows, nil
}
