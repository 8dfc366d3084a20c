// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// Transactor runs fn with a transaction carried in ctx; repositories called with that ctx join it
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TenantRepository defines operations for tenants
type TenantRepository interface {
	ByID(ctx context.Context, id uint) (*models.Tenant, error)
	ByIDs(ctx context.Context, ids []uint) (map[uint]*models.Tenant, error)
	Save(ctx context.Context, tenant *models.Tenant) error
}

// TransportSessionRepository defines operations for chat-transport sessions
type TransportSessionRepository interface {
	ConnectedByTenant(ctx context.Context, tenantID uint) (*models.TransportSession, error)
	UpsertStatus(ctx context.Context, tenantID uint, sessionName, status string, seenAt time.Time) error
}

// ReminderRepository defines operations for reminders
type ReminderRepository interface {
	ByID(ctx context.Context, id uint) (*models.Reminder, error)
	// ListActive returns active reminders of active tenants whose template is active
	ListActive(ctx context.Context) ([]*models.DueReminder, error)
	Save(ctx context.Context, reminder *models.Reminder) error
}

// ClientRepository defines operations for clients
type ClientRepository interface {
	ByID(ctx context.Context, id uint) (*models.Client, error)
	ByTenantAndID(ctx context.Context, tenantID, clientID uint) (*models.Client, error)
	// ListActiveDueOn returns the tenant's active clients whose due date equals the given calendar day
	ListActiveDueOn(ctx context.Context, tenantID uint, day time.Time) ([]*models.Client, error)
	Save(ctx context.Context, client *models.Client) error
}

// QueueEntryRepository defines operations on the delivery queue
type QueueEntryRepository interface {
	ByID(ctx context.Context, id uint) (*models.QueueEntry, error)
	ExistsOpen(ctx context.Context, tenantID, clientID, reminderID uint) (bool, error)
	Create(ctx context.Context, entry *models.QueueEntry) error
	TenantsWithDue(ctx context.Context, now time.Time) ([]uint, error)
	ListDueForTenant(ctx context.Context, tenantID uint, now time.Time, maxAttempts, limit int) ([]*models.QueueEntry, error)
	MarkProcessing(ctx context.Context, id uint, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id uint, now time.Time) error
	MarkFailed(ctx context.Context, id uint, now time.Time, errText string) error
	Reschedule(ctx context.Context, id uint, now, at time.Time, errText string) error
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context, tenantID uint) ([]models.QueueStatusCount, error)
}

// SentLogRepository defines operations for the send-once ledger
type SentLogRepository interface {
	Exists(ctx context.Context, reminderID, clientID uint) (bool, error)
	Upsert(ctx context.Context, reminderID, clientID uint, sentAt time.Time) error
}

// DeliveryLogRepository defines operations for the delivery audit trail
type DeliveryLogRepository interface {
	Save(ctx context.Context, log *models.DeliveryLog) error
	ByFilter(ctx context.Context, filter models.DeliveryLogFilter, limit int) ([]*models.DeliveryLog, error)
}

// InventoryUnitRepository defines operations for single-use codes
type InventoryUnitRepository interface {
	// Reserve leases one available unit to token until leaseUntil; returns nil when none is available
	Reserve(ctx context.Context, tenantID uint, productCode, token string, now, leaseUntil time.Time) (*models.InventoryUnit, error)
	// ConfirmDelivered moves an available or unconfirmed unit to delivered; repeating it for the same client is a no-op
	ConfirmDelivered(ctx context.Context, unitID, clientID uint, now time.Time) error
	// Hold parks a leased unit whose code already went out as unconfirmed, out of reach of Reserve and ReleaseExpired
	Hold(ctx context.Context, unitID uint, token string, clientID uint, now time.Time) error
	Release(ctx context.Context, unitID uint, token string) error
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
	InsertSkipDuplicates(ctx context.Context, units []*models.InventoryUnit) (int64, error)
	CountAvailable(ctx context.Context, tenantID uint, productCode string) (int64, error)
}

// ProviderAccountRepository defines operations for panel credentials
type ProviderAccountRepository interface {
	ByTenantAndKind(ctx context.Context, tenantID uint, kind models.ProviderKind) (*models.ProviderAccount, error)
	Save(ctx context.Context, account *models.ProviderAccount) error
}
