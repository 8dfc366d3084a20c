package repository

import (
	"context"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SentLogRepositoryImpl implements SentLogRepository
type SentLogRepositoryImpl struct {
	*BaseRepository[models.SentLog]
}

func NewSentLogRepository(db *gorm.DB) SentLogRepository {
	return &SentLogRepositoryImpl{BaseRepository: NewBaseRepository[models.SentLog](db)}
}

func (r *SentLogRepositoryImpl) Exists(ctx context.Context, reminderID, clientID uint) (bool, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.SentLog{}).
		Where("reminder_id = ? AND client_id = ?", reminderID, clientID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Upsert records the pair; an existing row is left untouched
func (r *SentLogRepositoryImpl) Upsert(ctx context.Context, reminderID, clientID uint, sentAt time.Time) error {
	row := models.SentLog{ReminderID: reminderID, ClientID: clientID, SentAt: sentAt}
	return r.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reminder_id"}, {Name: "client_id"}},
		DoNothing: true,
	}).Create(&row).Error
}
