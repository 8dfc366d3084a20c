package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository/memory"
	"github.com/amirphl/iptv-reseller-automation/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

func newReportFixture(t *testing.T) (*memory.Store, *models.Tenant, DeliveryReportFlow) {
	t.Helper()
	store := memory.New()
	tenant := &models.Tenant{Name: "acme", IsActive: true}
	require.NoError(t, store.Tenants().Save(context.Background(), tenant))
	return store, tenant, NewDeliveryReportFlow(store.Tenants(), store.Queue(), store.DeliveryLogs())
}

func TestQueueStats(t *testing.T) {
	store, tenant, flow := newReportFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	store.InsertEntry(&models.QueueEntry{TenantID: tenant.ID, ClientID: 1, ReminderID: 1, Status: models.QueueStatusPending, ScheduledFor: now})
	store.InsertEntry(&models.QueueEntry{TenantID: tenant.ID, ClientID: 2, ReminderID: 1, Status: models.QueueStatusPending, ScheduledFor: now})
	store.InsertEntry(&models.QueueEntry{TenantID: tenant.ID, ClientID: 3, ReminderID: 1, Status: models.QueueStatusSent, ScheduledFor: now})
	store.InsertEntry(&models.QueueEntry{TenantID: tenant.ID + 100, ClientID: 4, ReminderID: 1, Status: models.QueueStatusFailed, ScheduledFor: now})

	resp, err := flow.QueueStats(context.Background(), tenant.ID)
	require.NoError(t, err)

	assert.Equal(t, tenant.ID, resp.TenantID)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, map[string]int64{
		models.QueueStatusPending:    2,
		models.QueueStatusProcessing: 0,
		models.QueueStatusSent:       1,
		models.QueueStatusFailed:     0,
	}, resp.Counts)

	_, err = flow.QueueStats(context.Background(), 9999)
	assert.True(t, IsTenantNotFound(err))
}

func TestExportDeliveryLogsValidation(t *testing.T) {
	_, tenant, flow := newReportFixture(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		tenantID uint
		from, to time.Time
		checkFn  func(error) bool
	}{
		{name: "missing bounds", tenantID: tenant.ID, checkFn: IsInvalidDateRange},
		{name: "inverted range", tenantID: tenant.ID, from: from, to: from.AddDate(0, 0, -1), checkFn: IsStartDateAfterEndDate},
		{name: "range too large", tenantID: tenant.ID, from: from, to: from.AddDate(2, 0, 0), checkFn: IsDateRangeTooLarge},
		{name: "unknown tenant", tenantID: 9999, from: from, to: from.AddDate(0, 0, 1), checkFn: IsTenantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := flow.ExportDeliveryLogs(context.Background(), tt.tenantID, tt.from, tt.to)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}
}

func TestExportDeliveryLogs(t *testing.T) {
	store, tenant, flow := newReportFixture(t)
	ctx := context.Background()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	logs := []*models.DeliveryLog{
		{TenantID: tenant.ID, Kind: models.DeliveryKindReminder, EntryID: utils.ToPtr(uint(7)), ReminderID: utils.ToPtr(uint(3)), ClientID: 11, Destination: "551100", Status: models.DeliveryStatusSent, Attempts: 1, CreatedAt: from.Add(time.Hour)},
		{TenantID: tenant.ID, Kind: models.DeliveryKindInventory, ClientID: 12, Destination: "551101", Status: models.DeliveryStatusFailed, Attempts: 3, Error: utils.ToPtr("timeout"), Meta: datatypes.JSONMap{"unit_id": 5, "code_masked": "****-5678"}, CreatedAt: from.Add(2 * time.Hour)},
		// upper bound is exclusive
		{TenantID: tenant.ID, Kind: models.DeliveryKindReminder, ClientID: 13, Destination: "551102", Status: models.DeliveryStatusSent, Attempts: 1, CreatedAt: to},
		{TenantID: tenant.ID + 100, Kind: models.DeliveryKindReminder, ClientID: 14, Destination: "551103", Status: models.DeliveryStatusSent, Attempts: 1, CreatedAt: from.Add(time.Hour)},
	}
	for _, l := range logs {
		require.NoError(t, store.DeliveryLogs().Save(ctx, l))
	}

	filename, data, err := flow.ExportDeliveryLogs(ctx, tenant.ID, from, to)
	require.NoError(t, err)
	assert.Equal(t, "delivery_logs_1_2026-03-01_2026-03-02.xlsx", filename)

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows(deliverySheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, "meta", rows[0][10])

	assert.Equal(t, "2026-03-01T01:00:00Z", rows[1][1])
	assert.Equal(t, models.DeliveryKindReminder, rows[1][2])
	assert.Equal(t, "3", rows[1][5])
	assert.Equal(t, "7", rows[1][6])

	assert.Equal(t, models.DeliveryStatusFailed, rows[2][3])
	assert.Equal(t, "12", rows[2][4])
	assert.Equal(t, "3", rows[2][8])
	assert.Equal(t, "timeout", rows[2][9])
	assert.Equal(t, "code_masked=****-5678 unit_id=5", rows[2][10])
}

func TestExportDeliveryLogsRejectsOversizedRange(t *testing.T) {
	store, tenant, flow := newReportFixture(t)
	flow.(*DeliveryReportFlowImpl).maxRows = 2
	ctx := context.Background()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	save := func(n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, store.DeliveryLogs().Save(ctx, &models.DeliveryLog{
				TenantID: tenant.ID, Kind: models.DeliveryKindReminder, ClientID: uint(i + 1),
				Destination: "551100", Status: models.DeliveryStatusSent, Attempts: 1, CreatedAt: from.Add(time.Hour),
			}))
		}
	}

	save(2)
	_, data, err := flow.ExportDeliveryLogs(ctx, tenant.ID, from, from.AddDate(0, 0, 1))
	require.NoError(t, err, "exactly at the limit is fine")
	assert.NotEmpty(t, data)

	save(1)
	_, data, err = flow.ExportDeliveryLogs(ctx, tenant.ID, from, from.AddDate(0, 0, 1))
	require.Error(t, err)
	assert.True(t, IsExportTooLarge(err))
	assert.Nil(t, data)
}
