package models

import (
	"time"

	"gorm.io/datatypes"
)

// Delivery log kinds
const (
	DeliveryKindReminder  = "reminder"
	DeliveryKindInventory = "inventory"
)

// Delivery log statuses
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryLog is an immutable audit record of a terminal send attempt
type DeliveryLog struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	TenantID    uint              `gorm:"not null;index:idx_delivery_logs_tenant_created" json:"tenant_id"`
	Kind        string            `gorm:"size:16;not null;default:'reminder'" json:"kind"`
	EntryID     *uint             `json:"entry_id,omitempty"`
	ClientID    uint              `gorm:"not null" json:"client_id"`
	ReminderID  *uint             `json:"reminder_id,omitempty"`
	Destination string            `gorm:"size:64;not null" json:"destination"`
	Status      string            `gorm:"size:16;not null" json:"status"`
	Error       *string           `gorm:"type:text" json:"error,omitempty"`
	Attempts    int               `gorm:"not null;default:0" json:"attempts"`
	Meta        datatypes.JSONMap `gorm:"type:jsonb" json:"meta,omitempty"`
	CreatedAt   time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null;index:idx_delivery_logs_tenant_created" json:"created_at"`
}

func (DeliveryLog) TableName() string { return "delivery_logs" }

// DeliveryLogFilter provides filter fields for delivery log queries
type DeliveryLogFilter struct {
	TenantID      *uint
	Kind          *string
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
