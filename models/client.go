package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a tenant-scoped IPTV subscriber
type Client struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	TenantID         uint            `gorm:"not null;index:idx_clients_tenant_due" json:"tenant_id"`
	Name             string          `gorm:"size:255;not null" json:"name"`
	ChatAddress      string          `gorm:"size:64;not null" json:"chat_address"`
	DueDate          time.Time       `gorm:"type:date;not null;index:idx_clients_tenant_due" json:"due_date"`
	Price            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	PlanName         string          `gorm:"size:255" json:"plan_name"`
	ServerName       string          `gorm:"size:255" json:"server_name"`
	InvoiceToken     *string         `gorm:"size:128" json:"invoice_token,omitempty"`
	IsActive         bool            `gorm:"not null;default:true" json:"is_active"`
	ProviderKind     ProviderKind    `gorm:"size:32;not null;default:'none'" json:"provider_kind"`
	Domain           string          `gorm:"size:255" json:"domain,omitempty"`
	ExternalUsername string          `gorm:"size:255" json:"external_username,omitempty"`
	PlanCode         string          `gorm:"size:128" json:"plan_code,omitempty"`
	DurationUnits    int             `gorm:"not null;default:1" json:"duration_units"`
	CreatedAt        time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }

// ProviderTarget returns the provider-specific identifiers of the client
func (c *Client) ProviderTarget() ProviderTarget {
	return ProviderTarget{
		Domain:           c.Domain,
		ExternalUsername: c.ExternalUsername,
		PlanCode:         c.PlanCode,
	}
}

// ProviderTarget carries the identifiers a panel needs to locate a subscriber
type ProviderTarget struct {
	Domain           string `json:"domain,omitempty"`
	ExternalUsername string `json:"external_username,omitempty"`
	PlanCode         string `json:"plan_code,omitempty"`
}

// MissingFields returns the required fields of kind that are blank on t
func (t ProviderTarget) MissingFields(kind ProviderKind) []string {
	var missing []string
	for _, field := range kind.RequiredFields() {
		var v string
		switch field {
		case ProviderFieldDomain:
			v = t.Domain
		case ProviderFieldExternalUsername:
			v = t.ExternalUsername
		case ProviderFieldPlanCode:
			v = t.PlanCode
		}
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// DaysUntilDue returns the number of calendar days from today to the due date in loc
func DaysUntilDue(due, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(today).Hours() / 24)
}

// ClientFilter provides filter fields for client queries
type ClientFilter struct {
	ID       *uint
	TenantID *uint
	IsActive *bool
	DueDate  *time.Time
}
