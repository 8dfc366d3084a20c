package dto

import (
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/shopspring/decimal"
)

// RenewalRequest is sent by the billing workflow once a payment for a client is confirmed.
// Empty provider fields fall back to what is stored on the client.
type RenewalRequest struct {
	TenantID         uint                 `json:"tenant_id" validate:"required"`
	ClientID         uint                 `json:"client_id" validate:"required"`
	PlanID           *uint                `json:"plan_id,omitempty" validate:"omitempty"`
	ClientName       string               `json:"client_name,omitempty" validate:"omitempty,max=255"`
	Destination      string               `json:"destination,omitempty" validate:"omitempty,max=64"`
	ProviderKind     string               `json:"provider_kind,omitempty" validate:"omitempty,max=32"`
	Flags            models.ProviderFlags `json:"flags"`
	Domain           string               `json:"domain,omitempty" validate:"omitempty,max=255"`
	ExternalUsername string               `json:"external_username,omitempty" validate:"omitempty,max=255"`
	PlanCode         string               `json:"plan_code,omitempty" validate:"omitempty,max=128"`
	DurationUnits    int                  `json:"duration_units,omitempty" validate:"omitempty,min=1,max=36"`
	DueDate          string               `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentReference string               `json:"payment_reference,omitempty" validate:"omitempty,max=128"`
	Amount           decimal.Decimal      `json:"amount"`
}

// RenewalResult is the uniform outcome of a dispatch
type RenewalResult struct {
	DispatchID string         `json:"dispatch_id"`
	Success    bool           `json:"success"`
	Skipped    bool           `json:"skipped"`
	Reason     *string        `json:"reason"`
	Provider   *string        `json:"provider"`
	Detail     map[string]any `json:"detail"`
	Error      string         `json:"error,omitempty"`
}
