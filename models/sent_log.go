package models

import "time"

// SentLog records that a send-once reminder reached a client. Rows are append-only.
type SentLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReminderID uint      `gorm:"not null;uniqueIndex:ux_sent_logs_reminder_client" json:"reminder_id"`
	ClientID   uint      `gorm:"not null;uniqueIndex:ux_sent_logs_reminder_client" json:"client_id"`
	SentAt     time.Time `gorm:"not null" json:"sent_at"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
}

func (SentLog) TableName() string { return "sent_logs" }
