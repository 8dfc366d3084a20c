package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/services"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSweeperDeletesOnlyExpiredTerminalEntries(t *testing.T) {
	f := newFixture(t, 5)
	now := tickTime
	old := now.Add(-31 * 24 * time.Hour)
	recent := now.Add(-24 * time.Hour)

	seed := []struct {
		status  string
		updated time.Time
	}{
		{models.QueueStatusSent, old},
		{models.QueueStatusFailed, old},
		{models.QueueStatusSent, recent},
		{models.QueueStatusPending, old},
		{models.QueueStatusProcessing, old},
	}
	for i, s := range seed {
		f.store.InsertEntry(&models.QueueEntry{
			TenantID:     f.tenant.ID,
			ClientID:     uint(100 + i),
			ReminderID:   1,
			Status:       s.status,
			ScheduledFor: s.updated,
			CreatedAt:    s.updated,
			UpdatedAt:    s.updated,
		})
	}
	require.NoError(t, f.store.SentLogs().Upsert(context.Background(), 1, 100, old))
	require.NoError(t, f.store.DeliveryLogs().Save(context.Background(), &models.DeliveryLog{TenantID: f.tenant.ID, ClientID: 100, Status: models.DeliveryStatusSent, CreatedAt: old}))

	sweeper := NewSweeper(f.store.Queue(), f.store.Inventory(), f.events, zaptest.NewLogger(t), 30*24*time.Hour)
	deleted, err := sweeper.RunOnce(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining := f.store.Entries()
	require.Len(t, remaining, 3)
	assert.Equal(t, 1, countStatus(remaining, models.QueueStatusSent))
	assert.Equal(t, 1, countStatus(remaining, models.QueueStatusPending))
	assert.Equal(t, 1, countStatus(remaining, models.QueueStatusProcessing))

	assert.Equal(t, 1, f.store.SentLogs().Count())
	assert.Len(t, f.store.DeliveryLogRows(), 1)
	assert.Len(t, f.events.ByKind(services.EventEntriesSwept), 1)
}

func TestSweeperReleasesExpiredLeases(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	_, err := f.store.Inventory().InsertSkipDuplicates(ctx, []*models.InventoryUnit{
		{TenantID: f.tenant.ID, ProductCode: "P1", Code: "1111222233334444"},
	})
	require.NoError(t, err)

	unit, err := f.store.Inventory().Reserve(ctx, f.tenant.ID, "P1", "token", tickTime.Add(-time.Hour), tickTime.Add(-time.Minute))
	require.NoError(t, err)
	require.NotNil(t, unit)

	sweeper := NewSweeper(f.store.Queue(), f.store.Inventory(), f.events, zaptest.NewLogger(t), 0)
	_, err = sweeper.RunOnce(ctx, tickTime)
	require.NoError(t, err)

	got, ok := f.store.Unit(unit.ID)
	require.True(t, ok)
	assert.Equal(t, models.InventoryStatusAvailable, got.Status)
	assert.Nil(t, got.ReservedBy)
	assert.Nil(t, got.ReservedUntil)
}

func TestSweeperReportsStoreErrors(t *testing.T) {
	f := newFixture(t, 5)
	f.store.FailOn("queue.DeleteTerminalBefore", assert.AnError)

	sweeper := NewSweeper(f.store.Queue(), nil, f.events, zaptest.NewLogger(t), 0)
	_, err := sweeper.RunOnce(context.Background(), tickTime)
	assert.ErrorIs(t, err, assert.AnError)
}
