package scheduler

import (
	"context"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/services"
	"github.com/amirphl/iptv-reseller-automation/repository"
	"go.uber.org/zap"
)

// DefaultRetention is how long terminal entries are kept
const DefaultRetention = 30 * 24 * time.Hour

// Sweeper deletes terminal queue entries past retention and frees stale inventory leases
type Sweeper struct {
	queue     repository.QueueEntryRepository
	inventory repository.InventoryUnitRepository
	events    services.EventSink
	logger    *zap.Logger
	retention time.Duration
}

func NewSweeper(queue repository.QueueEntryRepository, inventory repository.InventoryUnitRepository, events services.EventSink, logger *zap.Logger, retention time.Duration) *Sweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Sweeper{
		queue:     queue,
		inventory: inventory,
		events:    events,
		logger:    logger.Named("sweeper"),
		retention: retention,
	}
}

// RunOnce returns the number of deleted entries. Sent logs and delivery logs are never touched.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) (int64, error) {
	tickID := TickID(ctx)
	cutoff := now.Add(-s.retention)

	deleted, err := s.queue.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to sweep terminal entries", zap.String("tick_id", tickID), zap.Error(err))
		return 0, err
	}
	queueSweptTotal.Add(float64(deleted))

	var released int64
	if s.inventory != nil {
		released, err = s.inventory.ReleaseExpired(ctx, now)
		if err != nil {
			// leases expire on their own; a failed cleanup only delays reuse
			s.logger.Warn("failed to release expired inventory leases", zap.String("tick_id", tickID), zap.Error(err))
		}
	}

	s.logger.Info("sweep completed",
		zap.String("tick_id", tickID),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted),
		zap.Int64("leases_released", released),
	)
	s.events.Emit(ctx, services.Event{
		Kind:   services.EventEntriesSwept,
		At:     now,
		TickID: tickID,
		Fields: map[string]any{"deleted": deleted, "leases_released": released},
	})
	return deleted, nil
}
