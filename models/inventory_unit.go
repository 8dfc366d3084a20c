package models

import (
	"strings"
	"time"
)

// Inventory unit statuses
const (
	InventoryStatusAvailable = "available"
	InventoryStatusDelivered = "delivered"
	// InventoryStatusUnconfirmed marks a code that was sent but never confirmed.
	// It is never reserved again; an operator confirms or releases it by hand.
	InventoryStatusUnconfirmed = "unconfirmed"
)

// InventoryCodeGroupSize is the number of digits per displayed group
const InventoryCodeGroupSize = 4

// InventoryUnit is a single-use code handed to a client on renewal.
// It transitions from available to delivered exactly once, possibly through unconfirmed.
type InventoryUnit struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	TenantID            uint       `gorm:"not null;index:idx_inventory_units_tenant_product_status" json:"tenant_id"`
	ProductCode         string     `gorm:"size:128;not null;index:idx_inventory_units_tenant_product_status" json:"product_code"`
	Code                string     `gorm:"size:64;not null;uniqueIndex:ux_inventory_units_tenant_code" json:"-"`
	Status              string     `gorm:"size:16;not null;default:'available';index:idx_inventory_units_tenant_product_status" json:"status"`
	ReservedBy          *string    `gorm:"size:64" json:"reserved_by,omitempty"`
	ReservedUntil       *time.Time `json:"reserved_until,omitempty"`
	DeliveredToClientID *uint      `json:"delivered_to_client_id,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	CreatedAt           time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (InventoryUnit) TableName() string { return "inventory_units" }

// FormatInventoryCode renders a digit string as groups of four joined by "-"
func FormatInventoryCode(code string) string {
	if len(code) <= InventoryCodeGroupSize {
		return code
	}
	var b strings.Builder
	for i, r := range code {
		if i > 0 && i%InventoryCodeGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MaskInventoryCode hides all but the last group of a formatted code
func MaskInventoryCode(code string) string {
	if len(code) <= InventoryCodeGroupSize {
		return code
	}
	masked := strings.Repeat("*", len(code)-InventoryCodeGroupSize) + code[len(code)-InventoryCodeGroupSize:]
	return FormatInventoryCode(masked)
}

// NormalizeInventoryCode strips display delimiters from a code
func NormalizeInventoryCode(code string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(code))
}
