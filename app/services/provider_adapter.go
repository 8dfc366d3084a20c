package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
)

// Provider adapter error constants
var (
	ErrTargetNotFound      = errors.New("provider target not found")
	ErrProviderAuthFailed  = errors.New("provider authentication failed")
	ErrProviderRenewFailed = errors.New("provider renewal failed")
)

// ProviderCredentials are the reseller credentials of a tenant on one panel
type ProviderCredentials struct {
	Username string
	Password string
	BaseURL  string
	Settings map[string]any
}

// ProviderSession is an authenticated adapter session
type ProviderSession struct {
	Token     string
	BaseURL   string
	ExpiresAt *time.Time
}

// TargetQuery identifies the subscriber on the panel
type TargetQuery struct {
	models.ProviderTarget
}

// ProviderTarget is the panel-side handle of a subscriber
type ProviderTarget struct {
	ID       string
	Username string
	Raw      map[string]any
}

// RenewOutcome is what a panel reports after a renewal
type RenewOutcome struct {
	Success   bool
	NewExpiry *time.Time
	Raw       map[string]any
}

// ProviderAdapter is the contract every panel integration satisfies.
// Retries, session caching and transport are the adapter's own business.
type ProviderAdapter interface {
	Kind() models.ProviderKind
	Authenticate(ctx context.Context, creds ProviderCredentials) (*ProviderSession, error)
	FindTarget(ctx context.Context, session *ProviderSession, query TargetQuery) (*ProviderTarget, error)
	Renew(ctx context.Context, session *ProviderSession, target *ProviderTarget, durationUnits int) (*RenewOutcome, error)
}

// ProviderRegistry maps provider kinds to adapters
type ProviderRegistry struct {
	mu       sync.RWMutex
	adapters map[models.ProviderKind]ProviderAdapter
}

// NewProviderRegistry creates a registry with the given adapters
func NewProviderRegistry(adapters ...ProviderAdapter) *ProviderRegistry {
	r := &ProviderRegistry{adapters: make(map[models.ProviderKind]ProviderAdapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its kind
func (r *ProviderRegistry) Register(adapter ProviderAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Kind()] = adapter
}

func (r *ProviderRegistry) Get(kind models.ProviderKind) (ProviderAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	return a, ok
}

// Kinds lists registered kinds in sorted order
func (r *ProviderRegistry) Kinds() []models.ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ProviderKind, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MockProviderAdapter implements ProviderAdapter for testing
type MockProviderAdapter struct {
	mu sync.Mutex

	ProviderKind models.ProviderKind
	Calls        []string
	AuthErr      error
	FindErr      error
	RenewErr     error
	RenewPanic   any
	Expiry       time.Time
}

// NewMockProviderAdapter creates a mock adapter for kind
func NewMockProviderAdapter(kind models.ProviderKind) *MockProviderAdapter {
	return &MockProviderAdapter{ProviderKind: kind}
}

func (m *MockProviderAdapter) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// GetCalls returns a copy of the recorded call names
func (m *MockProviderAdapter) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	copy(out, m.Calls)
	return out
}

func (m *MockProviderAdapter) Kind() models.ProviderKind { return m.ProviderKind }

func (m *MockProviderAdapter) Authenticate(_ context.Context, creds ProviderCredentials) (*ProviderSession, error) {
	m.record("authenticate")
	if m.AuthErr != nil {
		return nil, m.AuthErr
	}
	return &ProviderSession{Token: "mock-" + creds.Username, BaseURL: creds.BaseURL}, nil
}

func (m *MockProviderAdapter) FindTarget(_ context.Context, _ *ProviderSession, query TargetQuery) (*ProviderTarget, error) {
	m.record("find_target")
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	return &ProviderTarget{ID: "target-" + query.ExternalUsername, Username: query.ExternalUsername}, nil
}

func (m *MockProviderAdapter) Renew(_ context.Context, _ *ProviderSession, target *ProviderTarget, durationUnits int) (*RenewOutcome, error) {
	m.record("renew")
	if m.RenewPanic != nil {
		panic(m.RenewPanic)
	}
	if m.RenewErr != nil {
		return nil, m.RenewErr
	}
	expiry := m.Expiry
	return &RenewOutcome{
		Success:   true,
		NewExpiry: &expiry,
		Raw:       map[string]any{"target_id": target.ID, "duration_units": durationUnits},
	}, nil
}
