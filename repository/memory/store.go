// Package memory provides in-memory implementations of the repository interfaces.
// Safe for concurrent access. Intended for unit tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository"
	"gorm.io/gorm"
)

var (
	_ repository.TenantRepository           = (*TenantRepo)(nil)
	_ repository.TransportSessionRepository = (*SessionRepo)(nil)
	_ repository.ReminderRepository         = (*ReminderRepo)(nil)
	_ repository.ClientRepository           = (*ClientRepo)(nil)
	_ repository.QueueEntryRepository       = (*QueueRepo)(nil)
	_ repository.SentLogRepository          = (*SentLogRepo)(nil)
	_ repository.DeliveryLogRepository      = (*DeliveryLogRepo)(nil)
	_ repository.InventoryUnitRepository    = (*InventoryRepo)(nil)
	_ repository.ProviderAccountRepository  = (*ProviderAccountRepo)(nil)
	_ repository.Transactor                 = (*Store)(nil)
)

// Store holds every table in memory
type Store struct {
	mu sync.Mutex

	nextID uint

	tenants   map[uint]*models.Tenant
	sessions  map[uint]*models.TransportSession
	templates map[uint]*models.MessageTemplate
	reminders map[uint]*models.Reminder
	clients   map[uint]*models.Client
	entries   map[uint]*models.QueueEntry
	sentLogs  map[[2]uint]*models.SentLog
	delivery  []*models.DeliveryLog
	units     map[uint]*models.InventoryUnit
	accounts  map[uint]*models.ProviderAccount

	failures   map[string]error
	failCounts map[string]int

	// BeforeCreateEntry runs at the start of Create, outside the lock; tests use it to simulate a concurrent writer
	BeforeCreateEntry func(s *Store, entry *models.QueueEntry)
}

// New returns a new empty Store
func New() *Store {
	return &Store{
		tenants:   make(map[uint]*models.Tenant),
		sessions:  make(map[uint]*models.TransportSession),
		templates: make(map[uint]*models.MessageTemplate),
		reminders: make(map[uint]*models.Reminder),
		clients:   make(map[uint]*models.Client),
		entries:   make(map[uint]*models.QueueEntry),
		sentLogs:  make(map[[2]uint]*models.SentLog),
		units:     make(map[uint]*models.InventoryUnit),
		accounts:  make(map[uint]*models.ProviderAccount),
		failures:  make(map[string]error),

		failCounts: make(map[string]int),
	}
}

// FailOn makes the named operation (e.g. "clients.ListActiveDueOn") return err until cleared with a nil err
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failCounts, op)
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// FailTimes makes the named operation return err for its next n calls
func (s *Store) FailTimes(op string, err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
	s.failCounts[op] = n
}

func (s *Store) fail(op string) error {
	err := s.failures[op]
	if n, ok := s.failCounts[op]; ok && err != nil {
		if n <= 1 {
			delete(s.failures, op)
			delete(s.failCounts, op)
		} else {
			s.failCounts[op] = n - 1
		}
	}
	return err
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// InTx runs fn directly; each store operation is already atomic under the store mutex
func (s *Store) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// Repository accessors
func (s *Store) Tenants() *TenantRepo                   { return &TenantRepo{s} }
func (s *Store) Sessions() *SessionRepo                 { return &SessionRepo{s} }
func (s *Store) Reminders() *ReminderRepo               { return &ReminderRepo{s} }
func (s *Store) Clients() *ClientRepo                   { return &ClientRepo{s} }
func (s *Store) Queue() *QueueRepo                      { return &QueueRepo{s} }
func (s *Store) SentLogs() *SentLogRepo                 { return &SentLogRepo{s} }
func (s *Store) DeliveryLogs() *DeliveryLogRepo         { return &DeliveryLogRepo{s} }
func (s *Store) Inventory() *InventoryRepo              { return &InventoryRepo{s} }
func (s *Store) ProviderAccounts() *ProviderAccountRepo { return &ProviderAccountRepo{s} }

// AddTemplate stores a message template and assigns its id
func (s *Store) AddTemplate(t *models.MessageTemplate) *models.MessageTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	s.templates[t.ID] = t
	return t
}

// Entries returns copies of all queue entries ordered by id
func (s *Store) Entries() []models.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.QueueEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InsertEntry stores an entry as-is, bypassing uniqueness; used to seed fixtures
func (s *Store) InsertEntry(e *models.QueueEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.id()
	}
	s.entries[e.ID] = e
}

// Unit returns a copy of an inventory unit
func (s *Store) Unit(id uint) (models.InventoryUnit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return models.InventoryUnit{}, false
	}
	return *u, true
}

// DeliveryLogRows returns copies of all delivery logs
func (s *Store) DeliveryLogRows() []models.DeliveryLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DeliveryLog, 0, len(s.delivery))
	for _, d := range s.delivery {
		out = append(out, *d)
	}
	return out
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// TenantRepo implements repository.TenantRepository
type TenantRepo struct{ s *Store }

func (r *TenantRepo) ByID(_ context.Context, id uint) (*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("tenants.ByID"); err != nil {
		return nil, err
	}
	if t, ok := r.s.tenants[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *TenantRepo) ByIDs(_ context.Context, ids []uint) (map[uint]*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[uint]*models.Tenant, len(ids))
	for _, id := range ids {
		if t, ok := r.s.tenants[id]; ok {
			cp := *t
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *TenantRepo) Save(_ context.Context, t *models.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.s.id()
	}
	cp := *t
	r.s.tenants[t.ID] = &cp
	return nil
}

// SessionRepo implements repository.TransportSessionRepository
type SessionRepo struct{ s *Store }

func (r *SessionRepo) ConnectedByTenant(_ context.Context, tenantID uint) (*models.TransportSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("sessions.ConnectedByTenant"); err != nil {
		return nil, err
	}
	var best *models.TransportSession
	for _, sess := range r.s.sessions {
		if sess.TenantID != tenantID || !sess.IsConnected() {
			continue
		}
		if best == nil || sess.ID > best.ID {
			best = sess
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *SessionRepo) UpsertStatus(_ context.Context, tenantID uint, sessionName, status string, seenAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.SessionName == sessionName {
			sess.Status = status
			sess.LastSeenAt = &seenAt
			return nil
		}
	}
	id := r.s.id()
	r.s.sessions[id] = &models.TransportSession{ID: id, TenantID: tenantID, SessionName: sessionName, Status: status, LastSeenAt: &seenAt}
	return nil
}

// ReminderRepo implements repository.ReminderRepository
type ReminderRepo struct{ s *Store }

func (r *ReminderRepo) ByID(_ context.Context, id uint) (*models.Reminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rem, ok := r.s.reminders[id]; ok {
		cp := *rem
		return &cp, nil
	}
	return nil, nil
}

func (r *ReminderRepo) ListActive(_ context.Context) ([]*models.DueReminder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("reminders.ListActive"); err != nil {
		return nil, err
	}
	var out []*models.DueReminder
	for _, rem := range r.s.reminders {
		tenant, ok := r.s.tenants[rem.TenantID]
		if !ok || !tenant.IsActive || !rem.IsActive {
			continue
		}
		tpl, ok := r.s.templates[rem.TemplateID]
		if !ok || !tpl.IsActive {
			continue
		}
		out = append(out, &models.DueReminder{Reminder: *rem, TemplateContent: tpl.Content, TenantTimezone: tenant.Timezone})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ReminderRepo) Save(_ context.Context, rem *models.Reminder) error {
	if err := rem.ValidateSendTime(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rem.ID == 0 {
		rem.ID = r.s.id()
	}
	cp := *rem
	r.s.reminders[rem.ID] = &cp
	return nil
}

// ClientRepo implements repository.ClientRepository
type ClientRepo struct{ s *Store }

func (r *ClientRepo) ByID(_ context.Context, id uint) (*models.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.clients[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *ClientRepo) ByTenantAndID(ctx context.Context, tenantID, clientID uint) (*models.Client, error) {
	c, err := r.ByID(ctx, clientID)
	if err != nil || c == nil || c.TenantID != tenantID {
		return nil, err
	}
	return c, nil
}

func (r *ClientRepo) ListActiveDueOn(_ context.Context, tenantID uint, day time.Time) ([]*models.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("clients.ListActiveDueOn"); err != nil {
		return nil, err
	}
	var out []*models.Client
	for _, c := range r.s.clients {
		if c.TenantID == tenantID && c.IsActive && sameDay(c.DueDate, day) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ClientRepo) Save(_ context.Context, c *models.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.s.id()
	}
	cp := *c
	r.s.clients[c.ID] = &cp
	return nil
}

// QueueRepo implements repository.QueueEntryRepository
type QueueRepo struct{ s *Store }

func (r *QueueRepo) ByID(_ context.Context, id uint) (*models.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *QueueRepo) existsOpen(tenantID, clientID, reminderID uint) bool {
	for _, e := range r.s.entries {
		if e.TenantID == tenantID && e.ClientID == clientID && e.ReminderID == reminderID && e.IsOpen() {
			return true
		}
	}
	return false
}

func (r *QueueRepo) ExistsOpen(_ context.Context, tenantID, clientID, reminderID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("queue.ExistsOpen"); err != nil {
		return false, err
	}
	return r.existsOpen(tenantID, clientID, reminderID), nil
}

// Create enforces the open-entry uniqueness the database index provides
func (r *QueueRepo) Create(_ context.Context, entry *models.QueueEntry) error {
	if hook := r.s.BeforeCreateEntry; hook != nil {
		hook(r.s, entry)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("queue.Create"); err != nil {
		return err
	}
	if entry.IsOpen() && r.existsOpen(entry.TenantID, entry.ClientID, entry.ReminderID) {
		return gorm.ErrDuplicatedKey
	}
	entry.ID = r.s.id()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = entry.ScheduledFor
	}
	entry.UpdatedAt = entry.CreatedAt
	cp := *entry
	r.s.entries[entry.ID] = &cp
	return nil
}

func (r *QueueRepo) TenantsWithDue(_ context.Context, now time.Time) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("queue.TenantsWithDue"); err != nil {
		return nil, err
	}
	seen := map[uint]bool{}
	var out []uint
	for _, e := range r.s.entries {
		if e.Status == models.QueueStatusPending && !e.ScheduledFor.After(now) && !seen[e.TenantID] {
			seen[e.TenantID] = true
			out = append(out, e.TenantID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *QueueRepo) ListDueForTenant(_ context.Context, tenantID uint, now time.Time, maxAttempts, limit int) ([]*models.QueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("queue.ListDueForTenant"); err != nil {
		return nil, err
	}
	var out []*models.QueueEntry
	for _, e := range r.s.entries {
		if e.TenantID == tenantID && e.Status == models.QueueStatusPending && !e.ScheduledFor.After(now) && e.Attempts < maxAttempts {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *QueueRepo) MarkProcessing(_ context.Context, id uint, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("queue.MarkProcessing"); err != nil {
		return false, err
	}
	e, ok := r.s.entries[id]
	if !ok || e.Status != models.QueueStatusPending {
		return false, nil
	}
	e.Status = models.QueueStatusProcessing
	e.Attempts++
	e.LastAttemptAt = &now
	e.UpdatedAt = now
	return true, nil
}

func (r *QueueRepo) MarkSent(_ context.Context, id uint, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.entries[id]; ok {
		e.Status = models.QueueStatusSent
		e.SentAt = &now
		e.Error = nil
		e.UpdatedAt = now
	}
	return nil
}

func (r *QueueRepo) MarkFailed(_ context.Context, id uint, now time.Time, errText string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.entries[id]; ok {
		e.Status = models.QueueStatusFailed
		e.Error = &errText
		e.UpdatedAt = now
	}
	return nil
}

func (r *QueueRepo) Reschedule(_ context.Context, id uint, now, at time.Time, errText string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.entries[id]; ok && e.Status == models.QueueStatusProcessing {
		e.Status = models.QueueStatusPending
		e.ScheduledFor = at
		e.Error = &errText
		e.UpdatedAt = now
	}
	return nil
}

func (r *QueueRepo) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("queue.DeleteTerminalBefore"); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range r.s.entries {
		if e.IsTerminal() && e.UpdatedAt.Before(cutoff) {
			delete(r.s.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *QueueRepo) CountByStatus(_ context.Context, tenantID uint) ([]models.QueueStatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[string]int64{}
	for _, e := range r.s.entries {
		if e.TenantID == tenantID {
			counts[e.Status]++
		}
	}
	out := make([]models.QueueStatusCount, 0, len(counts))
	for status, n := range counts {
		out = append(out, models.QueueStatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

// SentLogRepo implements repository.SentLogRepository
type SentLogRepo struct{ s *Store }

func (r *SentLogRepo) Exists(_ context.Context, reminderID, clientID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("sentlogs.Exists"); err != nil {
		return false, err
	}
	_, ok := r.s.sentLogs[[2]uint{reminderID, clientID}]
	return ok, nil
}

func (r *SentLogRepo) Upsert(_ context.Context, reminderID, clientID uint, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]uint{reminderID, clientID}
	if _, ok := r.s.sentLogs[key]; ok {
		return nil
	}
	r.s.sentLogs[key] = &models.SentLog{ID: r.s.id(), ReminderID: reminderID, ClientID: clientID, SentAt: sentAt}
	return nil
}

// Count returns the number of sent-log rows
func (r *SentLogRepo) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.sentLogs)
}

// DeliveryLogRepo implements repository.DeliveryLogRepository
type DeliveryLogRepo struct{ s *Store }

func (r *DeliveryLogRepo) Save(_ context.Context, log *models.DeliveryLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("deliverylogs.Save"); err != nil {
		return err
	}
	log.ID = r.s.id()
	cp := *log
	r.s.delivery = append(r.s.delivery, &cp)
	return nil
}

func (r *DeliveryLogRepo) ByFilter(_ context.Context, f models.DeliveryLogFilter, limit int) ([]*models.DeliveryLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.DeliveryLog
	for _, d := range r.s.delivery {
		if f.TenantID != nil && d.TenantID != *f.TenantID {
			continue
		}
		if f.Kind != nil && d.Kind != *f.Kind {
			continue
		}
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		if f.CreatedAfter != nil && d.CreatedAt.Before(*f.CreatedAfter) {
			continue
		}
		if f.CreatedBefore != nil && !d.CreatedAt.Before(*f.CreatedBefore) {
			continue
		}
		cp := *d
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// InventoryRepo implements repository.InventoryUnitRepository
type InventoryRepo struct{ s *Store }

func (r *InventoryRepo) Reserve(_ context.Context, tenantID uint, productCode, token string, now, leaseUntil time.Time) (*models.InventoryUnit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("inventory.Reserve"); err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(r.s.units))
	for id := range r.s.units {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		u := r.s.units[id]
		if u.TenantID != tenantID || u.ProductCode != productCode || u.Status != models.InventoryStatusAvailable {
			continue
		}
		if u.ReservedUntil != nil && !u.ReservedUntil.Before(now) {
			continue
		}
		tok, until := token, leaseUntil
		u.ReservedBy = &tok
		u.ReservedUntil = &until
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *InventoryRepo) ConfirmDelivered(_ context.Context, unitID, clientID uint, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("inventory.ConfirmDelivered"); err != nil {
		return err
	}
	u, ok := r.s.units[unitID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	sameClient := u.DeliveredToClientID != nil && *u.DeliveredToClientID == clientID
	switch u.Status {
	case models.InventoryStatusDelivered:
		if sameClient {
			return nil
		}
		return repository.ErrUnitAlreadyDelivered
	case models.InventoryStatusUnconfirmed:
		if !sameClient {
			return repository.ErrUnitAlreadyDelivered
		}
	}
	cid := clientID
	u.Status = models.InventoryStatusDelivered
	u.DeliveredToClientID = &cid
	u.DeliveredAt = &now
	u.ReservedBy = nil
	u.ReservedUntil = nil
	return nil
}

func (r *InventoryRepo) Hold(_ context.Context, unitID uint, token string, clientID uint, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("inventory.Hold"); err != nil {
		return err
	}
	u, ok := r.s.units[unitID]
	if !ok || u.Status != models.InventoryStatusAvailable || u.ReservedBy == nil || *u.ReservedBy != token {
		return repository.ErrReservationLost
	}
	cid := clientID
	u.Status = models.InventoryStatusUnconfirmed
	u.DeliveredToClientID = &cid
	u.ReservedUntil = nil
	u.UpdatedAt = now
	return nil
}

func (r *InventoryRepo) Release(_ context.Context, unitID uint, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.units[unitID]
	if !ok || u.Status != models.InventoryStatusAvailable || u.ReservedBy == nil || *u.ReservedBy != token {
		return repository.ErrReservationLost
	}
	u.ReservedBy = nil
	u.ReservedUntil = nil
	return nil
}

func (r *InventoryRepo) ReleaseExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range r.s.units {
		if u.Status == models.InventoryStatusAvailable && u.ReservedUntil != nil && u.ReservedUntil.Before(now) {
			u.ReservedBy = nil
			u.ReservedUntil = nil
			n++
		}
	}
	return n, nil
}

func (r *InventoryRepo) InsertSkipDuplicates(_ context.Context, units []*models.InventoryUnit) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range units {
		dup := false
		for _, existing := range r.s.units {
			if existing.TenantID == u.TenantID && existing.Code == u.Code {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		u.ID = r.s.id()
		if u.Status == "" {
			u.Status = models.InventoryStatusAvailable
		}
		cp := *u
		r.s.units[u.ID] = &cp
		n++
	}
	return n, nil
}

func (r *InventoryRepo) CountAvailable(_ context.Context, tenantID uint, productCode string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range r.s.units {
		if u.TenantID == tenantID && u.ProductCode == productCode && u.Status == models.InventoryStatusAvailable {
			n++
		}
	}
	return n, nil
}

// ProviderAccountRepo implements repository.ProviderAccountRepository
type ProviderAccountRepo struct{ s *Store }

func (r *ProviderAccountRepo) ByTenantAndKind(_ context.Context, tenantID uint, kind models.ProviderKind) (*models.ProviderAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.TenantID == tenantID && a.ProviderKind == kind {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *ProviderAccountRepo) Save(_ context.Context, a *models.ProviderAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == 0 {
		a.ID = r.s.id()
	}
	cp := *a
	r.s.accounts[a.ID] = &cp
	return nil
}
