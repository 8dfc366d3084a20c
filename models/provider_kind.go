package models

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderKind identifies which external integration renews a client
type ProviderKind string

const (
	ProviderKindNone          ProviderKind = "none"
	ProviderKindSigma         ProviderKind = "sigma"
	ProviderKindKoffice       ProviderKind = "koffice"
	ProviderKindUniplay       ProviderKind = "uniplay"
	ProviderKindClub          ProviderKind = "club"
	ProviderKindPainelFoda    ProviderKind = "painelfoda"
	ProviderKindRush          ProviderKind = "rush"
	ProviderKindPlayFast      ProviderKind = "playfast"
	ProviderKindCodeInventory ProviderKind = "code_inventory"
)

// ErrAmbiguousProvider is returned when more than one panel flag is set on a client
var ErrAmbiguousProvider = errors.New("more than one provider flag is set")

// PanelProviderKinds lists the panel integrations in their canonical order
var PanelProviderKinds = []ProviderKind{
	ProviderKindSigma,
	ProviderKindKoffice,
	ProviderKindUniplay,
	ProviderKindClub,
	ProviderKindPainelFoda,
	ProviderKindRush,
	ProviderKindPlayFast,
}

// Provider target fields
const (
	ProviderFieldDomain           = "domain"
	ProviderFieldExternalUsername = "external_username"
	ProviderFieldPlanCode         = "plan_code"
)

var requiredProviderFields = map[ProviderKind][]string{
	ProviderKindSigma:      {ProviderFieldDomain, ProviderFieldExternalUsername},
	ProviderKindKoffice:    {ProviderFieldDomain, ProviderFieldExternalUsername, ProviderFieldPlanCode},
	ProviderKindUniplay:    {ProviderFieldExternalUsername},
	ProviderKindClub:       {ProviderFieldExternalUsername},
	ProviderKindPainelFoda: {ProviderFieldDomain, ProviderFieldExternalUsername, ProviderFieldPlanCode},
	ProviderKindRush:       {ProviderFieldExternalUsername, ProviderFieldPlanCode},
	ProviderKindPlayFast:   {ProviderFieldExternalUsername},
}

// ParseProviderKind converts a stored value into a ProviderKind
func ParseProviderKind(s string) (ProviderKind, error) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	if kind == "" {
		return ProviderKindNone, nil
	}
	if kind.IsValid() {
		return kind, nil
	}
	return "", fmt.Errorf("unknown provider kind %q", s)
}

// IsValid reports whether k is one of the known kinds
func (k ProviderKind) IsValid() bool {
	switch k {
	case ProviderKindNone, ProviderKindCodeInventory:
		return true
	}
	_, ok := requiredProviderFields[k]
	return ok
}

// RequiredFields returns the target fields a client must carry for this kind
func (k ProviderKind) RequiredFields() []string {
	return requiredProviderFields[k]
}

// IncompleteReason is the skip reason used when required target fields are missing
func (k ProviderKind) IncompleteReason() string {
	return string(k) + "_incomplete"
}

func (k ProviderKind) String() string { return string(k) }

// ProviderFlags is the legacy one-boolean-per-integration representation accepted at the API boundary
type ProviderFlags struct {
	IsSigmaPlan         bool `json:"is_sigma_plan"`
	IsKofficePlan       bool `json:"is_koffice_plan"`
	IsUniplayPlan       bool `json:"is_uniplay_plan"`
	IsClubPlan          bool `json:"is_club_plan"`
	IsPainelFodaPlan    bool `json:"is_painelfoda_plan"`
	IsRushPlan          bool `json:"is_rush_plan"`
	IsPlayFastPlan      bool `json:"is_playfast_plan"`
	IsCodeInventoryPlan bool `json:"is_code_inventory_plan"`
}

// ResolveProviderKind maps legacy flags to a single kind.
// The code inventory flag wins over everything else; two or more panel flags are ambiguous.
func ResolveProviderKind(f ProviderFlags) (ProviderKind, error) {
	if f.IsCodeInventoryPlan {
		return ProviderKindCodeInventory, nil
	}

	set := map[ProviderKind]bool{
		ProviderKindSigma:      f.IsSigmaPlan,
		ProviderKindKoffice:    f.IsKofficePlan,
		ProviderKindUniplay:    f.IsUniplayPlan,
		ProviderKindClub:       f.IsClubPlan,
		ProviderKindPainelFoda: f.IsPainelFodaPlan,
		ProviderKindRush:       f.IsRushPlan,
		ProviderKindPlayFast:   f.IsPlayFastPlan,
	}

	var found []ProviderKind
	for _, kind := range PanelProviderKinds {
		if set[kind] {
			found = append(found, kind)
		}
	}

	switch len(found) {
	case 0:
		return ProviderKindNone, nil
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %v", ErrAmbiguousProvider, found)
	}
}
