package models

import (
	"fmt"
	"time"
)

// ReminderTimeLayout is the layout of Reminder.SendTime
const ReminderTimeLayout = "15:04"

// Reminder is a rule that enqueues messages for clients whose due date is DayOffset days away.
// Negative offsets fire before the due date, positive ones after it.
type Reminder struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	TenantID   uint             `gorm:"not null;index:idx_reminders_tenant_id" json:"tenant_id"`
	Tenant     *Tenant          `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
	Name       string           `gorm:"size:255;not null" json:"name"`
	TemplateID uint             `gorm:"not null" json:"template_id"`
	Template   *MessageTemplate `gorm:"foreignKey:TemplateID;references:ID" json:"template,omitempty"`
	DayOffset  int              `gorm:"not null;default:0" json:"day_offset"`
	SendTime   string           `gorm:"size:5;not null;index:idx_reminders_send_time" json:"send_time"`
	IsActive   bool             `gorm:"not null;default:true" json:"is_active"`
	SendOnce   bool             `gorm:"not null;default:false" json:"send_once"`
	CreatedAt  time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (Reminder) TableName() string { return "reminders" }

// ValidateSendTime checks that SendTime is a valid HH:MM value
func (r *Reminder) ValidateSendTime() error {
	if _, err := time.Parse(ReminderTimeLayout, r.SendTime); err != nil {
		return fmt.Errorf("invalid send_time %q: %w", r.SendTime, err)
	}
	return nil
}

// DueReminder is an active reminder joined with its template, ready for population
type DueReminder struct {
	Reminder
	TemplateContent string
	TenantTimezone  string
}

// ReminderFilter provides filter fields for reminder queries
type ReminderFilter struct {
	ID       *uint
	TenantID *uint
	SendTime *string
	IsActive *bool
}
