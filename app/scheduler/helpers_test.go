package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/services"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var tickTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// virtualThrottle paces sends against a virtual clock so tests never sleep
type virtualThrottle struct {
	mu        sync.Mutex
	now       time.Time
	next      map[uint]time.Time
	waits     []time.Duration
	intervals []time.Duration
}

func newVirtualThrottle(start time.Time) *virtualThrottle {
	return &virtualThrottle{now: start, next: make(map[uint]time.Time)}
}

func (v *virtualThrottle) Wait(ctx context.Context, tenantID uint, interval time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.intervals = append(v.intervals, interval)
	if n, ok := v.next[tenantID]; ok && n.After(v.now) {
		v.waits = append(v.waits, n.Sub(v.now))
		v.now = n
	}
	v.next[tenantID] = v.now.Add(interval)
	return nil
}

func (v *virtualThrottle) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// advance moves the virtual clock, e.g. to the next tick
func (v *virtualThrottle) advance(to time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if to.After(v.now) {
		v.now = to
	}
}

func (v *virtualThrottle) Waits() []time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]time.Duration(nil), v.waits...)
}

type fixture struct {
	t         *testing.T
	store     *memory.Store
	events    *services.MemoryEventSink
	transport *services.MockChatTransport
	throttle  *virtualThrottle
	tenant    *models.Tenant
	session   *models.TransportSession
	template  *models.MessageTemplate
}

func newFixture(t *testing.T, rateLimit int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	tenant := &models.Tenant{Name: "acme", IsActive: true, RateLimit: rateLimit, Timezone: "UTC"}
	require.NoError(t, store.Tenants().Save(ctx, tenant))
	require.NoError(t, store.Sessions().UpsertStatus(ctx, tenant.ID, "acme-main", models.TransportSessionStatusConnected, tickTime))
	session, err := store.Sessions().ConnectedByTenant(ctx, tenant.ID)
	require.NoError(t, err)

	tpl := store.AddTemplate(&models.MessageTemplate{
		TenantID: tenant.ID,
		Name:     "due today",
		Content:  "Hi {{name}}, your plan {{plan}} is due {{due_date}}",
		IsActive: true,
	})

	return &fixture{
		t:         t,
		store:     store,
		events:    services.NewMemoryEventSink(),
		transport: services.NewMockChatTransport(),
		throttle:  newVirtualThrottle(tickTime),
		tenant:    tenant,
		session:   session,
		template:  tpl,
	}
}

func (f *fixture) addReminder(dayOffset int, sendOnce bool) *models.Reminder {
	f.t.Helper()
	rem := &models.Reminder{
		TenantID:   f.tenant.ID,
		Name:       "reminder",
		TemplateID: f.template.ID,
		DayOffset:  dayOffset,
		SendTime:   tickTime.Format(models.ReminderTimeLayout),
		IsActive:   true,
		SendOnce:   sendOnce,
	}
	require.NoError(f.t, f.store.Reminders().Save(context.Background(), rem))
	return rem
}

func (f *fixture) addClient(name string, due time.Time) *models.Client {
	f.t.Helper()
	c := &models.Client{
		TenantID:    f.tenant.ID,
		Name:        name,
		ChatAddress: "5511999" + name,
		DueDate:     time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC),
		Price:       decimal.RequireFromString("35.90"),
		PlanName:    "Premium",
		IsActive:    true,
	}
	require.NoError(f.t, f.store.Clients().Save(context.Background(), c))
	return c
}

func (f *fixture) populator() *Populator {
	return NewPopulator(
		f.store.Reminders(), f.store.Sessions(), f.store.Clients(), f.store.Queue(), f.store.SentLogs(),
		f.events, zaptest.NewLogger(f.t), PopulatorConfig{Location: time.UTC, PaymentBaseURL: "https://pay.example.com"},
	)
}

func (f *fixture) processor(maxRetries int) *Processor {
	p := NewProcessor(
		f.store.Queue(), f.store.Tenants(), f.store.SentLogs(), f.store.DeliveryLogs(), f.store,
		f.transport, f.throttle, f.events, zaptest.NewLogger(f.t),
		ProcessorConfig{MaxRetries: maxRetries, RetryDelay: 5 * time.Minute, DefaultRateLimit: 5, TenantConcurrency: 2, SendTimeout: time.Second},
	)
	p.clock = f.throttle.Now
	return p
}

func countStatus(entries []models.QueueEntry, status string) int {
	n := 0
	for _, e := range entries {
		if e.Status == status {
			n++
		}
	}
	return n
}
