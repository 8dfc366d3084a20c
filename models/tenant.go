// Package models contains domain entities for the reseller automation engine
package models

import "time"

// DefaultTenantRateLimit is the per-tenant outbound message rate (messages/minute) used when a tenant has none configured
const DefaultTenantRateLimit = 5

// Tenant is a reseller account owning its own clients, reminders, templates and rate limit
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsActive  bool      `gorm:"not null;default:true;index:idx_tenants_is_active" json:"is_active"`
	RateLimit int       `gorm:"not null;default:0" json:"rate_limit"`
	Timezone  string    `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// EffectiveRateLimit returns the configured rate limit or the default when unset
func (t *Tenant) EffectiveRateLimit() int {
	if t == nil || t.RateLimit <= 0 {
		return DefaultTenantRateLimit
	}
	return t.RateLimit
}

// Location resolves the tenant timezone, falling back to the given location
func (t *Tenant) Location(fallback *time.Location) *time.Location {
	if t == nil || t.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// TenantFilter provides filter fields for tenant queries
type TenantFilter struct {
	ID       *uint
	IsActive *bool
}
