package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
)

// ReminderRepositoryImpl implements ReminderRepository
type ReminderRepositoryImpl struct {
	*BaseRepository[models.Reminder]
}

func NewReminderRepository(db *gorm.DB) ReminderRepository {
	return &ReminderRepositoryImpl{BaseRepository: NewBaseRepository[models.Reminder](db)}
}

type dueReminderRow struct {
	models.Reminder
	TemplateContent string
	TenantTimezone  string
}

// Save rejects a reminder whose send_time is not HH:MM before it reaches the check constraint
func (r *ReminderRepositoryImpl) Save(ctx context.Context, reminder *models.Reminder) error {
	if err := reminder.ValidateSendTime(); err != nil {
		return err
	}
	return r.BaseRepository.Save(ctx, reminder)
}

func (r *ReminderRepositoryImpl) ListActive(ctx context.Context) ([]*models.DueReminder, error) {
	var rows []dueReminderRow
	err := r.getDB(ctx).
		Table("reminders").
		Select("reminders.*, message_templates.content AS template_content, tenants.timezone AS tenant_timezone").
		Joins("JOIN tenants ON tenants.id = reminders.tenant_id").
		Joins("JOIN message_templates ON message_templates.id = reminders.template_id").
		Where("reminders.is_active AND tenants.is_active AND message_templates.is_active").
		Order("reminders.tenant_id ASC, reminders.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active reminders: %w", err)
	}

	out := make([]*models.DueReminder, 0, len(rows))
	for i := range rows {
		out = append(out, &models.DueReminder{
			Reminder:        rows[i].Reminder,
			TemplateContent: rows[i].TemplateContent,
			TenantTimezone:  rows[i].TenantTimezone,
		})
	}
	return out, nil
}
