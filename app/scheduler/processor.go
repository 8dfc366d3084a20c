package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/services"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository"
	"github.com/amirphl/iptv-reseller-automation/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// ProcessorConfig holds processor settings
type ProcessorConfig struct {
	MaxRetries        int
	RetryDelay        time.Duration
	DefaultRateLimit  int
	TenantConcurrency int
	SendTimeout       time.Duration
}

// ProcessReport summarizes one process tick
type ProcessReport struct {
	TickID  string `json:"tick_id"`
	Tenants int    `json:"tenants"`
	Sent    int    `json:"sent"`
	Retried int    `json:"retried"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
}

func (r *ProcessReport) add(o ProcessReport) {
	r.Sent += o.Sent
	r.Retried += o.Retried
	r.Failed += o.Failed
	r.Skipped += o.Skipped
	r.Errors += o.Errors
}

// Processor delivers due pending entries, pacing each tenant by its rate limit
type Processor struct {
	queue        repository.QueueEntryRepository
	tenants      repository.TenantRepository
	sentLogs     repository.SentLogRepository
	deliveryLogs repository.DeliveryLogRepository
	tx           repository.Transactor
	transport    services.ChatTransport
	throttle     Throttle
	events       services.EventSink
	logger       *zap.Logger
	cfg          ProcessorConfig

	clock func() time.Time
}

func NewProcessor(
	queue repository.QueueEntryRepository,
	tenants repository.TenantRepository,
	sentLogs repository.SentLogRepository,
	deliveryLogs repository.DeliveryLogRepository,
	tx repository.Transactor,
	transport services.ChatTransport,
	throttle Throttle,
	events services.EventSink,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *Processor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Minute
	}
	if cfg.DefaultRateLimit <= 0 {
		cfg.DefaultRateLimit = models.DefaultTenantRateLimit
	}
	if cfg.TenantConcurrency <= 0 {
		cfg.TenantConcurrency = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Processor{
		queue:        queue,
		tenants:      tenants,
		sentLogs:     sentLogs,
		deliveryLogs: deliveryLogs,
		tx:           tx,
		transport:    transport,
		throttle:     throttle,
		events:       events,
		logger:       logger.Named("processor"),
		cfg:          cfg,
		clock:        utils.UTCNow,
	}
}

// RunOnce processes every tenant with due entries. Cancelling ctx stops picking new entries;
// an entry already claimed is always settled.
func (p *Processor) RunOnce(ctx context.Context, now time.Time) ProcessReport {
	report := ProcessReport{TickID: TickID(ctx)}
	log := p.logger.With(zap.String("tick_id", report.TickID))

	tenantIDs, err := p.queue.TenantsWithDue(ctx, now)
	if err != nil {
		log.Error("failed to list tenants with due entries", zap.Error(err))
		report.Errors++
		return report
	}
	if len(tenantIDs) == 0 {
		return report
	}
	report.Tenants = len(tenantIDs)

	tenants, err := p.tenants.ByIDs(ctx, tenantIDs)
	if err != nil {
		log.Warn("failed to load tenants, using default rate limit", zap.Error(err))
		tenants = map[uint]*models.Tenant{}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.cfg.TenantConcurrency)
	for _, tenantID := range tenantIDs {
		limit := p.rateLimit(tenants[tenantID])
		g.Go(func() error {
			r := p.processTenant(ctx, report.TickID, tenantID, limit, now)
			mu.Lock()
			report.add(r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Info("process tick completed",
		zap.Int("tenants", report.Tenants),
		zap.Int("sent", report.Sent),
		zap.Int("retried", report.Retried),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
	)
	return report
}

func (p *Processor) rateLimit(t *models.Tenant) int {
	if t != nil && t.RateLimit > 0 {
		return t.RateLimit
	}
	return p.cfg.DefaultRateLimit
}

func (p *Processor) processTenant(ctx context.Context, tickID string, tenantID uint, limit int, now time.Time) ProcessReport {
	var report ProcessReport
	log := p.logger.With(zap.String("tick_id", tickID), zap.Uint("tenant_id", tenantID))

	entries, err := p.queue.ListDueForTenant(ctx, tenantID, now, p.cfg.MaxRetries, limit)
	if err != nil {
		log.Error("failed to list due entries", zap.Error(err))
		report.Errors++
		return report
	}

	interval := SendInterval(limit)
	for _, entry := range entries {
		if err := p.throttle.Wait(ctx, tenantID, interval); err != nil {
			log.Warn("throttle wait aborted, leaving remaining entries pending", zap.Error(err))
			break
		}
		outcome, err := p.processEntry(ctx, tickID, entry)
		if err != nil {
			report.Errors++
			log.Error("failed to settle entry", zap.Uint("entry_id", entry.ID), zap.Error(err))
		}
		switch outcome {
		case OutcomeSent:
			report.Sent++
		case OutcomeRetry:
			report.Retried++
		case OutcomeFailed:
			report.Failed++
		case "":
			report.Skipped++
		}
	}
	return report
}

// processEntry claims, sends and settles one entry. An empty outcome means another worker claimed it.
func (p *Processor) processEntry(parent context.Context, tickID string, entry *models.QueueEntry) (string, error) {
	ctx := context.WithoutCancel(parent)

	claimed, err := p.queue.MarkProcessing(ctx, entry.ID, p.clock())
	if err != nil {
		return "", fmt.Errorf("failed to claim entry: %w", err)
	}
	if !claimed {
		return "", nil
	}
	entry.Attempts++

	sendErr := p.send(ctx, entry)
	at := p.clock()

	var outcome string
	switch {
	case sendErr == nil:
		outcome = OutcomeSent
		err = p.settleSent(ctx, entry, at)
	case entry.Attempts >= p.cfg.MaxRetries:
		outcome = OutcomeFailed
		err = p.settleFailed(ctx, entry, at, sendErr.Error())
	default:
		outcome = OutcomeRetry
		err = p.queue.Reschedule(ctx, entry.ID, at, at.Add(p.cfg.RetryDelay), sendErr.Error())
	}
	queueSendsTotal.WithLabelValues(outcome).Inc()

	fields := []zap.Field{
		zap.String("tick_id", tickID),
		zap.Uint("tenant_id", entry.TenantID),
		zap.Uint("entry_id", entry.ID),
		zap.Uint("reminder_id", entry.ReminderID),
		zap.Uint("client_id", entry.ClientID),
		zap.Int("attempts", entry.Attempts),
		zap.String("outcome", outcome),
	}
	event := services.Event{
		At:         at,
		TickID:     tickID,
		TenantID:   entry.TenantID,
		EntryID:    entry.ID,
		ReminderID: entry.ReminderID,
		ClientID:   entry.ClientID,
		Outcome:    outcome,
		Attempts:   entry.Attempts,
	}
	switch outcome {
	case OutcomeSent:
		event.Kind = services.EventEntrySent
		p.logger.Info("entry sent", fields...)
	case OutcomeRetry:
		event.Kind = services.EventEntryRetry
		event.Error = sendErr.Error()
		p.logger.Warn("entry send failed, rescheduled", append(fields, zap.Error(sendErr))...)
	case OutcomeFailed:
		event.Kind = services.EventEntryFailed
		event.Error = sendErr.Error()
		p.logger.Error("entry send failed permanently", append(fields, zap.Error(sendErr))...)
	}
	p.events.Emit(ctx, event)

	return outcome, err
}

func (p *Processor) send(ctx context.Context, entry *models.QueueEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during send: %v", r)
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	defer cancel()
	return p.transport.SendText(sendCtx, entry.SessionName, entry.Destination, entry.Message)
}

// settleSent marks the entry sent, records the send-once ledger row and the audit row in one transaction
func (p *Processor) settleSent(ctx context.Context, entry *models.QueueEntry, at time.Time) error {
	return p.tx.InTx(ctx, func(ctx context.Context) error {
		if err := p.queue.MarkSent(ctx, entry.ID, at); err != nil {
			return fmt.Errorf("failed to mark entry sent: %w", err)
		}
		if entry.SendOnce {
			if err := p.sentLogs.Upsert(ctx, entry.ReminderID, entry.ClientID, at); err != nil {
				return fmt.Errorf("failed to record sent log: %w", err)
			}
		}
		return p.audit(ctx, entry, models.DeliveryStatusSent, nil, at)
	})
}

func (p *Processor) settleFailed(ctx context.Context, entry *models.QueueEntry, at time.Time, errText string) error {
	return p.tx.InTx(ctx, func(ctx context.Context) error {
		if err := p.queue.MarkFailed(ctx, entry.ID, at, errText); err != nil {
			return fmt.Errorf("failed to mark entry failed: %w", err)
		}
		return p.audit(ctx, entry, models.DeliveryStatusFailed, &errText, at)
	})
}

func (p *Processor) audit(ctx context.Context, entry *models.QueueEntry, status string, errText *string, at time.Time) error {
	entryID, reminderID := entry.ID, entry.ReminderID
	log := &models.DeliveryLog{
		TenantID:    entry.TenantID,
		Kind:        models.DeliveryKindReminder,
		EntryID:     &entryID,
		ClientID:    entry.ClientID,
		ReminderID:  &reminderID,
		Destination: entry.Destination,
		Status:      status,
		Error:       errText,
		Attempts:    entry.Attempts,
		Meta:        datatypes.JSONMap{"session_name": entry.SessionName},
		CreatedAt:   at,
	}
	if err := p.deliveryLogs.Save(ctx, log); err != nil {
		return fmt.Errorf("failed to write delivery log: %w", err)
	}
	return nil
}
