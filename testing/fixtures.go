package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/shopspring/decimal"
)

// Fixture is a tenant with one connected session, a template, a reminder and a client
type Fixture struct {
	Tenant   *models.Tenant
	Session  *models.TransportSession
	Template *models.MessageTemplate
	Reminder *models.Reminder
	Client   *models.Client
}

// SeedFixture inserts a minimal tenant graph. The client is due on dueDate.
func (tdb *TestDB) SeedFixture(name string, dueDate time.Time) (*Fixture, error) {
	f := &Fixture{}
	f.Tenant = &models.Tenant{Name: name, IsActive: true, Timezone: "UTC"}
	if err := tdb.DB.Create(f.Tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	f.Session = &models.TransportSession{
		TenantID:    f.Tenant.ID,
		SessionName: name + "-main",
		Status:      models.TransportSessionStatusConnected,
	}
	if err := tdb.DB.Create(f.Session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	f.Template = &models.MessageTemplate{
		TenantID: f.Tenant.ID,
		Name:     "due",
		Content:  "Hi {{name}}, your plan is due on {{due_date}}",
		IsActive: true,
	}
	if err := tdb.DB.Create(f.Template).Error; err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	f.Reminder = &models.Reminder{
		TenantID:   f.Tenant.ID,
		Name:       "one day before",
		TemplateID: f.Template.ID,
		DayOffset:  -1,
		SendTime:   "09:00",
		IsActive:   true,
	}
	if err := tdb.DB.Create(f.Reminder).Error; err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	f.Client = &models.Client{
		TenantID:      f.Tenant.ID,
		Name:          "Alice",
		ChatAddress:   "5511999990000",
		DueDate:       dueDate,
		Price:         decimal.RequireFromString("29.90"),
		IsActive:      true,
		ProviderKind:  models.ProviderKindNone,
		DurationUnits: 1,
	}
	if err := tdb.DB.Create(f.Client).Error; err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return f, nil
}

// PendingEntry builds an unsaved pending queue entry for the fixture's triple
func (f *Fixture) PendingEntry(scheduledFor time.Time) *models.QueueEntry {
	return &models.QueueEntry{
		TenantID:     f.Tenant.ID,
		SessionID:    f.Session.ID,
		SessionName:  f.Session.SessionName,
		ClientID:     f.Client.ID,
		ReminderID:   f.Reminder.ID,
		TemplateID:   f.Template.ID,
		Destination:  f.Client.ChatAddress,
		Message:      "Hi Alice",
		Status:       models.QueueStatusPending,
		ScheduledFor: scheduledFor,
	}
}
