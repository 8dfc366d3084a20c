package repository

import (
	"context"
	"errors"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
)

// ProviderAccountRepositoryImpl implements ProviderAccountRepository
type ProviderAccountRepositoryImpl struct {
	*BaseRepository[models.ProviderAccount]
}

func NewProviderAccountRepository(db *gorm.DB) ProviderAccountRepository {
	return &ProviderAccountRepositoryImpl{BaseRepository: NewBaseRepository[models.ProviderAccount](db)}
}

func (r *ProviderAccountRepositoryImpl) ByTenantAndKind(ctx context.Context, tenantID uint, kind models.ProviderKind) (*models.ProviderAccount, error) {
	var row models.ProviderAccount
	err := r.getDB(ctx).Where("tenant_id = ? AND provider_kind = ?", tenantID, kind).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
