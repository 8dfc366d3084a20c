package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
)

// QueueEntryRepositoryImpl implements QueueEntryRepository
type QueueEntryRepositoryImpl struct {
	*BaseRepository[models.QueueEntry]
}

func NewQueueEntryRepository(db *gorm.DB) QueueEntryRepository {
	return &QueueEntryRepositoryImpl{BaseRepository: NewBaseRepository[models.QueueEntry](db)}
}

var openStatuses = []string{models.QueueStatusPending, models.QueueStatusProcessing}

func (r *QueueEntryRepositoryImpl) ExistsOpen(ctx context.Context, tenantID, clientID, reminderID uint) (bool, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.QueueEntry{}).
		Where("tenant_id = ? AND client_id = ? AND reminder_id = ? AND status IN ?", tenantID, clientID, reminderID, openStatuses).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a pending entry. The partial unique index on open entries rejects a concurrent duplicate;
// callers detect that with IsDuplicateKey.
func (r *QueueEntryRepositoryImpl) Create(ctx context.Context, entry *models.QueueEntry) error {
	if err := r.getDB(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create queue entry: %w", err)
	}
	return nil
}

func (r *QueueEntryRepositoryImpl) TenantsWithDue(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := r.getDB(ctx).Model(&models.QueueEntry{}).
		Distinct("tenant_id").
		Where("status = ? AND scheduled_for <= ?", models.QueueStatusPending, now).
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants with due entries: %w", err)
	}
	return ids, nil
}

func (r *QueueEntryRepositoryImpl) ListDueForTenant(ctx context.Context, tenantID uint, now time.Time, maxAttempts, limit int) ([]*models.QueueEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []*models.QueueEntry
	err := r.getDB(ctx).
		Where("tenant_id = ? AND status = ? AND scheduled_for <= ? AND attempts < ?", tenantID, models.QueueStatusPending, now, maxAttempts).
		Order("scheduled_for ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due entries for tenant %d: %w", tenantID, err)
	}
	return rows, nil
}

// MarkProcessing claims a pending entry and counts the attempt. It reports false when another worker got there first.
func (r *QueueEntryRepositoryImpl) MarkProcessing(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.getDB(ctx).Model(&models.QueueEntry{}).
		Where("id = ? AND status = ?", id, models.QueueStatusPending).
		Updates(map[string]any{
			"status":          models.QueueStatusProcessing,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_attempt_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *QueueEntryRepositoryImpl) MarkSent(ctx context.Context, id uint, now time.Time) error {
	return r.getDB(ctx).Model(&models.QueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.QueueStatusSent,
			"sent_at":    now,
			"error":      nil,
			"updated_at": now,
		}).Error
}

func (r *QueueEntryRepositoryImpl) MarkFailed(ctx context.Context, id uint, now time.Time, errText string) error {
	return r.getDB(ctx).Model(&models.QueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     models.QueueStatusFailed,
			"error":      errText,
			"updated_at": now,
		}).Error
}

func (r *QueueEntryRepositoryImpl) Reschedule(ctx context.Context, id uint, now, at time.Time, errText string) error {
	return r.getDB(ctx).Model(&models.QueueEntry{}).
		Where("id = ? AND status = ?", id, models.QueueStatusProcessing).
		Updates(map[string]any{
			"status":        models.QueueStatusPending,
			"scheduled_for": at,
			"error":         errText,
			"updated_at":    now,
		}).Error
}

func (r *QueueEntryRepositoryImpl) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.getDB(ctx).
		Where("status IN ? AND updated_at < ?", []string{models.QueueStatusSent, models.QueueStatusFailed}, cutoff).
		Delete(&models.QueueEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete terminal entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *QueueEntryRepositoryImpl) CountByStatus(ctx context.Context, tenantID uint) ([]models.QueueStatusCount, error) {
	var rows []models.QueueStatusCount
	err := r.getDB(ctx).Model(&models.QueueEntry{}).
		Select("status, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
