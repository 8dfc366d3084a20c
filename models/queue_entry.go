package models

import "time"

// Queue entry statuses
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusSent       = "sent"
	QueueStatusFailed     = "failed"
)

// QueueEntry is one scheduled, trackable unit of outbound message work.
// At most one pending or processing entry may exist per (tenant, client, reminder).
type QueueEntry struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TenantID      uint       `gorm:"not null;index:idx_queue_entries_tenant_status_sched" json:"tenant_id"`
	SessionID     uint       `gorm:"not null" json:"session_id"`
	SessionName   string     `gorm:"size:128;not null" json:"session_name"`
	ClientID      uint       `gorm:"not null" json:"client_id"`
	ReminderID    uint       `gorm:"not null" json:"reminder_id"`
	TemplateID    uint       `gorm:"not null" json:"template_id"`
	Destination   string     `gorm:"size:64;not null" json:"destination"`
	Message       string     `gorm:"type:text;not null" json:"message"`
	Status        string     `gorm:"size:16;not null;default:'pending';index:idx_queue_entries_tenant_status_sched" json:"status"`
	ScheduledFor  time.Time  `gorm:"not null;index:idx_queue_entries_tenant_status_sched" json:"scheduled_for"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	Error         *string    `gorm:"type:text" json:"error,omitempty"`
	SendOnce      bool       `gorm:"not null;default:false" json:"send_once"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (QueueEntry) TableName() string { return "queue_entries" }

// IsOpen reports whether the entry still blocks a new entry for the same triple
func (e *QueueEntry) IsOpen() bool {
	return e.Status == QueueStatusPending || e.Status == QueueStatusProcessing
}

// IsTerminal reports whether the entry reached sent or failed
func (e *QueueEntry) IsTerminal() bool {
	return e.Status == QueueStatusSent || e.Status == QueueStatusFailed
}

// QueueEntryFilter provides filter fields for queue entry queries
type QueueEntryFilter struct {
	ID         *uint
	TenantID   *uint
	ClientID   *uint
	ReminderID *uint
	Statuses   []string
}

// QueueStatusCount is a per-status entry count
type QueueStatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
