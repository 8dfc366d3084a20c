package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProviderAccount holds a tenant's reseller credentials for one panel.
// SecretSealed is ciphertext produced by the credential vault.
type ProviderAccount struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	TenantID     uint              `gorm:"not null;uniqueIndex:ux_provider_accounts_tenant_kind" json:"tenant_id"`
	ProviderKind ProviderKind      `gorm:"size:32;not null;uniqueIndex:ux_provider_accounts_tenant_kind" json:"provider_kind"`
	Username     string            `gorm:"size:255;not null" json:"username"`
	SecretSealed string            `gorm:"type:text;not null" json:"-"`
	BaseURL      *string           `gorm:"size:512" json:"base_url,omitempty"`
	Settings     datatypes.JSONMap `gorm:"type:jsonb" json:"settings,omitempty"`
	CreatedAt    time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (ProviderAccount) TableName() string { return "provider_accounts" }
