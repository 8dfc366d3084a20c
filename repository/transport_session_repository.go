package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransportSessionRepositoryImpl implements TransportSessionRepository
type TransportSessionRepositoryImpl struct {
	*BaseRepository[models.TransportSession]
}

func NewTransportSessionRepository(db *gorm.DB) TransportSessionRepository {
	return &TransportSessionRepositoryImpl{BaseRepository: NewBaseRepository[models.TransportSession](db)}
}

// ConnectedByTenant returns the most recently seen connected session of the tenant, or nil
func (r *TransportSessionRepositoryImpl) ConnectedByTenant(ctx context.Context, tenantID uint) (*models.TransportSession, error) {
	var row models.TransportSession
	err := r.getDB(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, models.TransportSessionStatusConnected).
		Order("last_seen_at DESC NULLS LAST, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpsertStatus records the status reported by the session manager
func (r *TransportSessionRepositoryImpl) UpsertStatus(ctx context.Context, tenantID uint, sessionName, status string, seenAt time.Time) error {
	row := models.TransportSession{
		TenantID:    tenantID,
		SessionName: sessionName,
		Status:      status,
		LastSeenAt:  &seenAt,
		UpdatedAt:   seenAt,
	}
	return r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "last_seen_at", "updated_at"}),
	}).Create(&row).Error
}
