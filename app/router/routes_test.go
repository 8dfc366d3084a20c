package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/handlers"
	"github.com/amirphl/iptv-reseller-automation/app/middleware"
	"github.com/amirphl/iptv-reseller-automation/app/services"
	businessflow "github.com/amirphl/iptv-reseller-automation/business_flow"
	"github.com/amirphl/iptv-reseller-automation/config"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository/memory"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testSecret   = "router-test-secret-key-32-characters!"
	testVaultKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type routerFixture struct {
	app    *fiber.App
	store  *memory.Store
	tenant *models.Tenant
	token  string
}

func newRouterFixture(t *testing.T, checks map[string]handlers.Pinger) *routerFixture {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	store := memory.New()

	tenant := &models.Tenant{Name: "acme", IsActive: true}
	require.NoError(t, store.Tenants().Save(ctx, tenant))

	vault, err := services.NewCredentialVault(testVaultKey)
	require.NoError(t, err)
	tokens, err := services.NewTokenService(time.Hour, "iptv", "internal", testSecret)
	require.NoError(t, err)
	token, err := tokens.GenerateServiceToken("billing")
	require.NoError(t, err)

	renewal := businessflow.NewRenewalFlow(
		store.Clients(), store.Sessions(), store.Inventory(), store.ProviderAccounts(), store.DeliveryLogs(),
		services.NewMockChatTransport(), services.NewProviderRegistry(), vault, services.NewMemoryEventSink(), logger,
		businessflow.RenewalFlowConfig{},
	)
	report := businessflow.NewDeliveryReportFlow(store.Tenants(), store.Queue(), store.DeliveryLogs())
	inventory := businessflow.NewInventoryFlow(store.Tenants(), store.Inventory(), 16, logger)

	r := NewFiberRouter(
		config.ServerConfig{RateLimit: 1000},
		config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Handlers{
			Renewal:   handlers.NewRenewalHandler(renewal, logger),
			Report:    handlers.NewReportHandler(report, logger),
			Inventory: handlers.NewInventoryHandler(inventory, logger),
			Health:    handlers.NewHealthHandler("iptv-automation", "test", checks),
		},
		middleware.NewAuthMiddleware(tokens),
		logger,
	)
	r.SetupRoutes()

	return &routerFixture{app: r.GetApp(), store: store, tenant: tenant, token: token}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, authed bool) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode(t *testing.T, data []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newRouterFixture(t, map[string]handlers.Pinger{
			"database": func(context.Context) error { return nil },
			"redis":    nil,
		})
		resp, data := f.do(t, http.MethodGet, "/api/v1/health", nil, false)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.True(t, decode(t, data).Success)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("degraded", func(t *testing.T) {
		f := newRouterFixture(t, map[string]handlers.Pinger{
			"database": func(context.Context) error { return errors.New("connection refused") },
		})
		resp, data := f.do(t, http.MethodGet, "/api/v1/health", nil, false)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "DEPENDENCY_DOWN", decode(t, data).Error.Code)
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newRouterFixture(t, nil)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{name: "missing header", header: "", wantCode: "MISSING_AUTHORIZATION_HEADER"},
		{name: "wrong scheme", header: "Basic abc", wantCode: "INVALID_AUTHORIZATION_FORMAT"},
		{name: "garbage token", header: "Bearer not-a-token", wantCode: "TOKEN_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/1/queue/stats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := f.app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)

			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decode(t, data).Error.Code)
		})
	}
}

func TestDispatchRoute(t *testing.T) {
	f := newRouterFixture(t, nil)
	client := &models.Client{TenantID: f.tenant.ID, Name: "Alice", ChatAddress: "5511", IsActive: true, ProviderKind: models.ProviderKindNone}
	require.NoError(t, f.store.Clients().Save(context.Background(), client))

	t.Run("validation error", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/v1/renewals/dispatch", map[string]any{"tenant_id": f.tenant.ID}, true)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		env := decode(t, data)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Equal(t, "ClientID is required", env.Error.Details["ClientID"])
	})

	t.Run("unknown client", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/v1/renewals/dispatch", map[string]any{"tenant_id": f.tenant.ID, "client_id": 9999}, true)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "CLIENT_NOT_FOUND", decode(t, data).Error.Code)
	})

	t.Run("skipped without integration", func(t *testing.T) {
		resp, data := f.do(t, http.MethodPost, "/api/v1/renewals/dispatch", map[string]any{"tenant_id": f.tenant.ID, "client_id": client.ID}, true)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))

		env := decode(t, data)
		assert.True(t, env.Success)
		assert.Equal(t, "Renewal skipped", env.Message)

		var result struct {
			DispatchID string  `json:"dispatch_id"`
			Success    bool    `json:"success"`
			Skipped    bool    `json:"skipped"`
			Reason     *string `json:"reason"`
			Provider   *string `json:"provider"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.NotEmpty(t, result.DispatchID)
		assert.True(t, result.Skipped)
		require.NotNil(t, result.Reason)
		assert.Equal(t, businessflow.ReasonNoIntegration, *result.Reason)
		assert.Nil(t, result.Provider)
	})
}

func TestQueueStatsRoute(t *testing.T) {
	f := newRouterFixture(t, nil)
	f.store.InsertEntry(&models.QueueEntry{TenantID: f.tenant.ID, ClientID: 1, ReminderID: 1, Status: models.QueueStatusPending})

	resp, data := f.do(t, http.MethodGet, "/api/v1/tenants/1/queue/stats", nil, true)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))

	var stats struct {
		Counts map[string]int64 `json:"counts"`
		Total  int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(decode(t, data).Data, &stats))
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Counts[models.QueueStatusPending])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/tenants/abc/queue/stats", nil, true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/tenants/42/queue/stats", nil, true)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestExportRoute(t *testing.T) {
	f := newRouterFixture(t, nil)

	resp, data := f.do(t, http.MethodGet, "/api/v1/tenants/1/delivery-logs/export?from=2026-03-01&to=2026-03-31", nil, true)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "delivery_logs_1_2026-03-01_2026-04-01.xlsx")
	assert.NotEmpty(t, data)

	resp, data = f.do(t, http.MethodGet, "/api/v1/tenants/1/delivery-logs/export?from=2026-03-31&to=2026-03-01", nil, true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_DATE_RANGE", decode(t, data).Error.Code)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/tenants/1/delivery-logs/export?from=03/01/2026&to=2026-03-01", nil, true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestInventoryRoute(t *testing.T) {
	f := newRouterFixture(t, nil)

	resp, data := f.do(t, http.MethodPost, "/api/v1/inventory/units", map[string]any{
		"tenant_id":    f.tenant.ID,
		"product_code": "P30",
		"codes":        []string{"1234-5678-1234-5678", "8765432187654321"},
	}, true)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))

	var out struct {
		Imported  int64 `json:"imported"`
		Available int64 `json:"available"`
	}
	require.NoError(t, json.Unmarshal(decode(t, data).Data, &out))
	assert.Equal(t, int64(2), out.Imported)
	assert.Equal(t, int64(2), out.Available)

	resp, data = f.do(t, http.MethodPost, "/api/v1/inventory/units", map[string]any{"tenant_id": f.tenant.ID, "codes": []string{}}, true)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, data).Error.Code)
}

func TestMetricsAndNotFound(t *testing.T) {
	f := newRouterFixture(t, nil)

	// one request first so the http counters have a sample
	f.do(t, http.MethodGet, "/api/v1/health", nil, false)

	resp, data := f.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "http_requests_total")

	resp, data = f.do(t, http.MethodGet, "/nowhere", nil, false)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decode(t, data).Error.Code)
}
