package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProviderKind(t *testing.T) {
	tests := []struct {
		name    string
		flags   ProviderFlags
		want    ProviderKind
		wantErr bool
	}{
		{name: "no flags", flags: ProviderFlags{}, want: ProviderKindNone},
		{name: "single panel", flags: ProviderFlags{IsKofficePlan: true}, want: ProviderKindKoffice},
		{name: "inventory alone", flags: ProviderFlags{IsCodeInventoryPlan: true}, want: ProviderKindCodeInventory},
		{
			name:  "inventory wins over panels",
			flags: ProviderFlags{IsCodeInventoryPlan: true, IsSigmaPlan: true, IsRushPlan: true},
			want:  ProviderKindCodeInventory,
		},
		{name: "two panels", flags: ProviderFlags{IsSigmaPlan: true, IsUniplayPlan: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveProviderKind(tt.flags)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrAmbiguousProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProviderKind(t *testing.T) {
	kind, err := ParseProviderKind(" Sigma ")
	require.NoError(t, err)
	assert.Equal(t, ProviderKindSigma, kind)

	kind, err = ParseProviderKind("")
	require.NoError(t, err)
	assert.Equal(t, ProviderKindNone, kind)

	_, err = ParseProviderKind("panel-z")
	assert.Error(t, err)
}

func TestProviderTargetMissingFields(t *testing.T) {
	target := ProviderTarget{ExternalUsername: "john"}

	assert.Equal(t, []string{ProviderFieldDomain}, target.MissingFields(ProviderKindSigma))
	assert.Equal(t, []string{ProviderFieldDomain, ProviderFieldPlanCode}, target.MissingFields(ProviderKindKoffice))
	assert.Empty(t, target.MissingFields(ProviderKindUniplay))
	assert.Equal(t, "koffice_incomplete", ProviderKindKoffice.IncompleteReason())
}

func TestFormatInventoryCode(t *testing.T) {
	assert.Equal(t, "1234-5678-9012-3456", FormatInventoryCode("1234567890123456"))
	assert.Equal(t, "123", FormatInventoryCode("123"))
	assert.Equal(t, "****-****-****-3456", MaskInventoryCode("1234567890123456"))
	assert.Equal(t, "1234567890123456", NormalizeInventoryCode(" 1234-5678 9012-3456 "))
}

func TestDaysUntilDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	due := time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, DaysUntilDue(due, now, time.UTC))
	assert.Equal(t, 0, DaysUntilDue(now, now, time.UTC))
	assert.Equal(t, -1, DaysUntilDue(now.AddDate(0, 0, -1), now, time.UTC))

	// 23:30 UTC is already the next day in UTC+3
	loc := time.FixedZone("UTC+3", 3*3600)
	assert.Equal(t, 2, DaysUntilDue(due, now, loc))

	tenant := &Tenant{}
	assert.Equal(t, DefaultTenantRateLimit, tenant.EffectiveRateLimit())
	assert.Equal(t, time.UTC, tenant.Location(time.UTC))
}
