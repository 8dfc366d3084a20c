package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/services"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEntries(f *fixture, n int, scheduled time.Time) {
	for i := 0; i < n; i++ {
		c := f.addClient(string(rune('a'+i)), tickTime)
		f.store.InsertEntry(&models.QueueEntry{
			TenantID:     f.tenant.ID,
			SessionID:    f.session.ID,
			SessionName:  f.session.SessionName,
			ClientID:     c.ID,
			ReminderID:   99,
			TemplateID:   f.template.ID,
			Destination:  c.ChatAddress,
			Message:      "hello",
			Status:       models.QueueStatusPending,
			ScheduledFor: scheduled.Add(time.Duration(i) * time.Second),
			CreatedAt:    scheduled,
			UpdatedAt:    scheduled,
		})
	}
}

func TestPopulateAndProcessRateTwo(t *testing.T) {
	f := newFixture(t, 2)
	f.addReminder(0, false)
	f.addClient("alice", tickTime)
	f.addClient("bob", tickTime)

	populated := f.populator().RunOnce(context.Background(), tickTime)
	require.Equal(t, 2, populated.Enqueued)

	report := f.processor(3).RunOnce(context.Background(), tickTime)

	assert.Equal(t, 1, report.Tenants)
	assert.Equal(t, 2, report.Sent)
	assert.Len(t, f.transport.GetSentMessages(), 2)

	// one wait between the two sends, 60000/2 ms apart
	assert.Equal(t, []time.Duration{30 * time.Second}, f.throttle.Waits())

	entries := f.store.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, models.QueueStatusSent, e.Status)
		assert.Equal(t, 1, e.Attempts)
		require.NotNil(t, e.SentAt)
	}
	assert.Equal(t, 30*time.Second, entries[1].SentAt.Sub(*entries[0].SentAt))

	logs := f.store.DeliveryLogRows()
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, models.DeliveryStatusSent, l.Status)
	}
}

func TestProcessorRateLimitBound(t *testing.T) {
	tests := []struct {
		name      string
		rateLimit int
		pending   int
		wantSent  int
	}{
		{name: "limit below backlog", rateLimit: 2, pending: 5, wantSent: 2},
		{name: "limit above backlog", rateLimit: 10, pending: 3, wantSent: 3},
		{name: "default limit", rateLimit: 0, pending: 7, wantSent: models.DefaultTenantRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.rateLimit)
			seedEntries(f, tt.pending, tickTime.Add(-time.Minute))

			report := f.processor(3).RunOnce(context.Background(), tickTime)

			assert.Equal(t, tt.wantSent, report.Sent)
			entries := f.store.Entries()
			assert.Equal(t, tt.wantSent, countStatus(entries, models.QueueStatusSent))
			assert.Equal(t, tt.pending-tt.wantSent, countStatus(entries, models.QueueStatusPending))
		})
	}
}

func TestProcessorSendsInScheduledOrder(t *testing.T) {
	f := newFixture(t, 5)
	seedEntries(f, 3, tickTime.Add(-time.Minute))

	f.processor(3).RunOnce(context.Background(), tickTime)

	sent := f.transport.GetSentMessages()
	require.Len(t, sent, 3)
	entries := f.store.Entries()
	for i := range sent {
		assert.Equal(t, entries[i].Destination, sent[i].To)
	}
}

func TestProcessorSkipsFutureEntries(t *testing.T) {
	f := newFixture(t, 5)
	seedEntries(f, 1, tickTime.Add(time.Minute))

	report := f.processor(3).RunOnce(context.Background(), tickTime)
	assert.Zero(t, report.Tenants)
	assert.Zero(t, f.transport.AttemptCount())
}

func TestProcessorRetryCeiling(t *testing.T) {
	f := newFixture(t, 5)
	seedEntries(f, 1, tickTime)
	f.transport.FailAll = true
	p := f.processor(3)

	now := tickTime
	for i := 0; i < 5; i++ {
		f.throttle.advance(now)
		p.RunOnce(context.Background(), now)
		now = now.Add(6 * time.Minute)

		e := f.store.Entries()[0]
		assert.LessOrEqual(t, e.Attempts, 3)
	}

	e := f.store.Entries()[0]
	assert.Equal(t, models.QueueStatusFailed, e.Status)
	assert.Equal(t, 3, e.Attempts)
	require.NotNil(t, e.Error)
	assert.Equal(t, 3, f.transport.AttemptCount())

	assert.Len(t, f.events.ByKind(services.EventEntryRetry), 2)
	assert.Len(t, f.events.ByKind(services.EventEntryFailed), 1)

	logs := f.store.DeliveryLogRows()
	require.Len(t, logs, 1)
	assert.Equal(t, models.DeliveryStatusFailed, logs[0].Status)
	assert.Equal(t, 3, logs[0].Attempts)
}

func TestProcessorRetryBackoff(t *testing.T) {
	f := newFixture(t, 5)
	seedEntries(f, 1, tickTime)
	f.transport.FailFirst = 1
	p := f.processor(3)

	report := p.RunOnce(context.Background(), tickTime)
	assert.Equal(t, 1, report.Retried)

	e := f.store.Entries()[0]
	assert.Equal(t, models.QueueStatusPending, e.Status)
	assert.True(t, e.ScheduledFor.Equal(f.throttle.Now().Add(5*time.Minute)))

	// not due yet
	report = p.RunOnce(context.Background(), tickTime.Add(time.Minute))
	assert.Zero(t, report.Sent)
	assert.Equal(t, 1, f.transport.AttemptCount())
}

func TestProcessorFailsTwiceThenSucceeds(t *testing.T) {
	f := newFixture(t, 5)
	seedEntries(f, 1, tickTime)
	f.transport.FailFirst = 2
	p := f.processor(3)

	now := tickTime
	for i := 0; i < 3; i++ {
		f.throttle.advance(now)
		p.RunOnce(context.Background(), now)
		now = now.Add(6 * time.Minute)
	}

	e := f.store.Entries()[0]
	assert.Equal(t, models.QueueStatusSent, e.Status)
	assert.Equal(t, 3, e.Attempts)
	assert.Nil(t, e.Error)

	retries := f.events.ByKind(services.EventEntryRetry)
	require.Len(t, retries, 2)
	assert.Equal(t, 1, retries[0].Attempts)
	assert.Equal(t, 2, retries[1].Attempts)
	assert.Empty(t, f.events.ByKind(services.EventEntryFailed))

	logs := f.store.DeliveryLogRows()
	require.Len(t, logs, 1)
	assert.Equal(t, models.DeliveryStatusSent, logs[0].Status)
}

func TestProcessorRecordsSentLogForSendOnce(t *testing.T) {
	f := newFixture(t, 5)
	rem := f.addReminder(0, true)
	c := f.addClient("alice", tickTime)

	f.populator().RunOnce(context.Background(), tickTime)
	f.processor(3).RunOnce(context.Background(), tickTime)

	sent, err := f.store.SentLogs().Exists(context.Background(), rem.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, sent)

	// the pair never comes back, even once the entry is terminal
	report := f.populator().RunOnce(context.Background(), tickTime)
	assert.Zero(t, report.Enqueued)
	assert.Equal(t, 1, report.SkippedSentOnce)
}

func TestProcessorStopsOnCancel(t *testing.T) {
	f := newFixture(t, 5)
	seedEntries(f, 3, tickTime)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := f.processor(3).RunOnce(ctx, tickTime)
	assert.Zero(t, report.Sent)
	assert.Equal(t, 3, countStatus(f.store.Entries(), models.QueueStatusPending))
}

func TestSendInterval(t *testing.T) {
	assert.Equal(t, 30*time.Second, SendInterval(2))
	assert.Equal(t, 12*time.Second, SendInterval(5))
	assert.Equal(t, 8571*time.Millisecond, SendInterval(7))
	assert.Zero(t, SendInterval(0))
}
