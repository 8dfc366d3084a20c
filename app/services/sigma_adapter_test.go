package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSigmaTestServer(t *testing.T, renewSuccess bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("GET /api/customers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"id": 41, "username": "other"},
			{"id": 42, "username": r.URL.Query().Get("username"), "package_id": "p-1"},
		}})
	})
	mux.HandleFunc("POST /api/customers/42/renew", func(w http.ResponseWriter, r *http.Request) {
		var body sigmaRenewRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, 3, body.Months)
		assert.Equal(t, "p-1", body.PackageID)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": renewSuccess,
			"message": "ok",
			"data":    map[string]any{"id": 42, "username": "john", "expires_at": "2026-07-01T00:00:00Z"},
		})
	})
	return httptest.NewServer(mux)
}

func TestSigmaAdapterRenewFlow(t *testing.T) {
	srv := newSigmaTestServer(t, true)
	defer srv.Close()

	adapter := NewSigmaAdapter("", time.Second)
	assert.Equal(t, models.ProviderKindSigma, adapter.Kind())

	ctx := context.Background()
	session, err := adapter.Authenticate(ctx, ProviderCredentials{Username: "reseller", Password: "pw", BaseURL: srv.URL})
	require.NoError(t, err)
	require.NotNil(t, session.ExpiresAt)

	target, err := adapter.FindTarget(ctx, session, TargetQuery{ProviderTarget: models.ProviderTarget{ExternalUsername: "john"}})
	require.NoError(t, err)
	assert.Equal(t, "42", target.ID)

	outcome, err := adapter.Renew(ctx, session, target, 3)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	require.NotNil(t, outcome.NewExpiry)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), *outcome.NewExpiry)
}

func TestSigmaAdapterFailures(t *testing.T) {
	srv := newSigmaTestServer(t, false)
	defer srv.Close()

	adapter := NewSigmaAdapter(srv.URL, time.Second)
	ctx := context.Background()

	_, err := adapter.Authenticate(ctx, ProviderCredentials{Username: "reseller", Password: "wrong"})
	assert.ErrorIs(t, err, ErrProviderAuthFailed)

	session, err := adapter.Authenticate(ctx, ProviderCredentials{Username: "reseller", Password: "pw"})
	require.NoError(t, err)

	target, err := adapter.FindTarget(ctx, session, TargetQuery{ProviderTarget: models.ProviderTarget{ExternalUsername: "john"}})
	require.NoError(t, err)

	_, err = adapter.Renew(ctx, session, target, 3)
	assert.ErrorIs(t, err, ErrProviderRenewFailed)

	_, err = NewSigmaAdapter("", time.Second).Authenticate(ctx, ProviderCredentials{})
	assert.ErrorIs(t, err, ErrProviderAuthFailed)
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://panel.example", normalizeBaseURL(" panel.example/ "))
	assert.Equal(t, "http://panel.example", normalizeBaseURL("http://panel.example"))
	assert.Equal(t, "", normalizeBaseURL(""))
}

func TestProviderRegistry(t *testing.T) {
	registry := NewProviderRegistry(NewMockProviderAdapter(models.ProviderKindRush), NewSigmaAdapter("", time.Second))

	_, ok := registry.Get(models.ProviderKindSigma)
	assert.True(t, ok)
	_, ok = registry.Get(models.ProviderKindClub)
	assert.False(t, ok)
	assert.Equal(t, []models.ProviderKind{models.ProviderKindRush, models.ProviderKindSigma}, registry.Kinds())
}
