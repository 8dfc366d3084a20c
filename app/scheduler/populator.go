// Package scheduler runs the populate, process and sweep jobs of the reminder queue.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/services"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository"
	"go.uber.org/zap"
)

// Entry outcomes carried in logs and events
const (
	OutcomeEnqueued         = "enqueued"
	OutcomeSkippedDuplicate = "skipped_duplicate"
	OutcomeSkippedSentOnce  = "skipped_sent_once"
	OutcomeSent             = "sent"
	OutcomeRetry            = "retry"
	OutcomeFailed           = "failed"
)

// Reminder skip reasons
const (
	ReasonNoSession = "no_session"
	ReasonDuplicate = "duplicate"
	ReasonSentOnce  = "sent_once"
)

// PopulatorConfig holds populator settings
type PopulatorConfig struct {
	Location       *time.Location
	PaymentBaseURL string
}

// PopulateReport summarizes one populate tick
type PopulateReport struct {
	TickID           string `json:"tick_id"`
	Reminders        int    `json:"reminders"`
	Enqueued         int    `json:"enqueued"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	SkippedSentOnce  int    `json:"skipped_sent_once"`
	SkippedNoSession int    `json:"skipped_no_session"`
	Errors           int    `json:"errors"`
}

// Populator turns due reminders into pending queue entries
type Populator struct {
	reminders repository.ReminderRepository
	sessions  repository.TransportSessionRepository
	clients   repository.ClientRepository
	queue     repository.QueueEntryRepository
	sentLogs  repository.SentLogRepository
	events    services.EventSink
	logger    *zap.Logger
	cfg       PopulatorConfig
}

func NewPopulator(
	reminders repository.ReminderRepository,
	sessions repository.TransportSessionRepository,
	clients repository.ClientRepository,
	queue repository.QueueEntryRepository,
	sentLogs repository.SentLogRepository,
	events services.EventSink,
	logger *zap.Logger,
	cfg PopulatorConfig,
) *Populator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Populator{
		reminders: reminders,
		sessions:  sessions,
		clients:   clients,
		queue:     queue,
		sentLogs:  sentLogs,
		events:    events,
		logger:    logger.Named("populator"),
		cfg:       cfg,
	}
}

// RunOnce enqueues entries for every reminder whose send time matches now in its tenant's timezone
func (p *Populator) RunOnce(ctx context.Context, now time.Time) PopulateReport {
	report := PopulateReport{TickID: TickID(ctx)}
	log := p.logger.With(zap.String("tick_id", report.TickID))

	reminders, err := p.reminders.ListActive(ctx)
	if err != nil {
		log.Error("failed to list active reminders", zap.Error(err))
		report.Errors++
		return report
	}

	for _, rem := range reminders {
		loc := p.location(rem.TenantTimezone)
		if now.In(loc).Format(models.ReminderTimeLayout) != rem.SendTime {
			continue
		}
		report.Reminders++
		if err := p.populateReminder(ctx, rem, now, loc, &report); err != nil {
			report.Errors++
			log.Error("reminder skipped after error",
				zap.Uint("tenant_id", rem.TenantID),
				zap.Uint("reminder_id", rem.ID),
				zap.Error(err),
			)
		}
	}

	log.Info("populate tick completed",
		zap.Int("reminders", report.Reminders),
		zap.Int("enqueued", report.Enqueued),
		zap.Int("skipped_duplicate", report.SkippedDuplicate),
		zap.Int("skipped_sent_once", report.SkippedSentOnce),
		zap.Int("skipped_no_session", report.SkippedNoSession),
		zap.Int("errors", report.Errors),
	)
	return report
}

func (p *Populator) location(tz string) *time.Location {
	if tz == "" {
		return p.cfg.Location
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return p.cfg.Location
	}
	return loc
}

func (p *Populator) populateReminder(ctx context.Context, rem *models.DueReminder, now time.Time, loc *time.Location, report *PopulateReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	tickID := report.TickID
	session, err := p.sessions.ConnectedByTenant(ctx, rem.TenantID)
	if err != nil {
		return fmt.Errorf("failed to resolve transport session: %w", err)
	}
	if session == nil {
		report.SkippedNoSession++
		queueSkippedTotal.WithLabelValues(ReasonNoSession).Inc()
		p.events.Emit(ctx, services.Event{
			Kind:       services.EventReminderSkipped,
			At:         now,
			TickID:     tickID,
			TenantID:   rem.TenantID,
			ReminderID: rem.ID,
			Reason:     ReasonNoSession,
		})
		return nil
	}

	local := now.In(loc)
	dueDay := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, rem.DayOffset)
	clients, err := p.clients.ListActiveDueOn(ctx, rem.TenantID, dueDay)
	if err != nil {
		return err
	}

	opts := services.RenderOptions{Location: loc, PaymentBaseURL: p.cfg.PaymentBaseURL}
	for _, client := range clients {
		outcome, entryID, err := p.enqueue(ctx, rem, session, client, now, opts)
		if err != nil {
			report.Errors++
			p.logger.Error("failed to enqueue client",
				zap.String("tick_id", tickID),
				zap.Uint("tenant_id", rem.TenantID),
				zap.Uint("reminder_id", rem.ID),
				zap.Uint("client_id", client.ID),
				zap.Error(err),
			)
			continue
		}

		kind := services.EventEntrySkipped
		switch outcome {
		case OutcomeEnqueued:
			report.Enqueued++
			queueEnqueuedTotal.Inc()
			kind = services.EventEntryEnqueued
		case OutcomeSkippedDuplicate:
			report.SkippedDuplicate++
			queueSkippedTotal.WithLabelValues(ReasonDuplicate).Inc()
		case OutcomeSkippedSentOnce:
			report.SkippedSentOnce++
			queueSkippedTotal.WithLabelValues(ReasonSentOnce).Inc()
		}

		p.logger.Debug("reminder client handled",
			zap.String("tick_id", tickID),
			zap.Uint("tenant_id", rem.TenantID),
			zap.Uint("entry_id", entryID),
			zap.Uint("reminder_id", rem.ID),
			zap.Uint("client_id", client.ID),
			zap.String("outcome", outcome),
		)
		p.events.Emit(ctx, services.Event{
			Kind:       kind,
			At:         now,
			TickID:     tickID,
			TenantID:   rem.TenantID,
			EntryID:    entryID,
			ReminderID: rem.ID,
			ClientID:   client.ID,
			Outcome:    outcome,
		})
	}
	return nil
}

func (p *Populator) enqueue(ctx context.Context, rem *models.DueReminder, session *models.TransportSession, client *models.Client, now time.Time, opts services.RenderOptions) (string, uint, error) {
	if rem.SendOnce {
		sent, err := p.sentLogs.Exists(ctx, rem.ID, client.ID)
		if err != nil {
			return "", 0, err
		}
		if sent {
			return OutcomeSkippedSentOnce, 0, nil
		}
	}

	open, err := p.queue.ExistsOpen(ctx, rem.TenantID, client.ID, rem.ID)
	if err != nil {
		return "", 0, err
	}
	if open {
		return OutcomeSkippedDuplicate, 0, nil
	}

	entry := &models.QueueEntry{
		TenantID:     rem.TenantID,
		SessionID:    session.ID,
		SessionName:  session.SessionName,
		ClientID:     client.ID,
		ReminderID:   rem.ID,
		TemplateID:   rem.TemplateID,
		Destination:  client.ChatAddress,
		Message:      services.RenderTemplate(rem.TemplateContent, services.NewTemplateData(client, now, opts)),
		Status:       models.QueueStatusPending,
		ScheduledFor: now,
		SendOnce:     rem.SendOnce,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.queue.Create(ctx, entry); err != nil {
		// lost a race with another populator; the index kept the triple unique
		if repository.IsDuplicateKey(err) {
			return OutcomeSkippedDuplicate, 0, nil
		}
		return "", 0, err
	}
	return OutcomeEnqueued, entry.ID, nil
}
