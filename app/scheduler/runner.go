package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/services"
	"github.com/amirphl/iptv-reseller-automation/config"
	"github.com/amirphl/iptv-reseller-automation/utils"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job names, also used as leader lock names
const (
	JobPopulate = "populate"
	JobProcess  = "process"
	JobSweep    = "sweep"
)

// minuteLockTTL outlives the minute a populate lock is keyed by
const minuteLockTTL = 2 * time.Minute

// JobFunc is one tick of a scheduled job
type JobFunc func(ctx context.Context, now time.Time) error

type lockMode int

const (
	// leaseLock keeps the job lock across ticks and extends it on every tick
	leaseLock lockMode = iota
	// minuteLock takes one lock per wall-clock minute and never releases it
	minuteLock
)

type job struct {
	name string
	mode lockMode
	fn   JobFunc
}

// Runner drives the queue jobs on cron schedules
type Runner struct {
	cron    *cron.Cron
	lock    LeaderLock
	lockTTL time.Duration
	events  services.EventSink
	logger  *zap.Logger
	clock   func() time.Time

	mu     sync.Mutex
	leases map[string]Lease

	ctx context.Context
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

func NewRunner(loc *time.Location, lock LeaderLock, lockTTL time.Duration, events services.EventSink, logger *zap.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	if lock == nil {
		lock = NewLocalLeaderLock()
	}
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{s: logger.Sugar()}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		lock:    lock,
		lockTTL: lockTTL,
		events:  events,
		logger:  logger,
		clock:   utils.UTCNow,
		leases:  make(map[string]Lease),
		ctx:     context.Background(),
	}
}

// add schedules j with a standard cron spec or descriptor
func (r *Runner) add(j job, spec string) error {
	if _, err := r.cron.AddFunc(spec, func() { r.runJob(r.ctx, j) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, j.name, err)
	}
	return nil
}

// AddQueueJobs registers populate, process and sweep
func (r *Runner) AddQueueJobs(cfg config.SchedulerConfig, populator *Populator, processor *Processor, sweeper *Sweeper) error {
	jobs := []struct {
		job
		spec string
	}{
		{job{JobPopulate, minuteLock, func(ctx context.Context, now time.Time) error {
			populator.RunOnce(ctx, now)
			return nil
		}}, cfg.PopulateSpec},
		{job{JobProcess, leaseLock, func(ctx context.Context, now time.Time) error {
			processor.RunOnce(ctx, now)
			return nil
		}}, cfg.ProcessSpec},
		{job{JobSweep, leaseLock, func(ctx context.Context, now time.Time) error {
			_, err := sweeper.RunOnce(ctx, now)
			return err
		}}, cfg.SweepSpec},
	}
	for _, j := range jobs {
		if err := r.add(j.job, j.spec); err != nil {
			return err
		}
	}
	return nil
}

// runJob runs one tick while holding the job's leader lock
func (r *Runner) runJob(ctx context.Context, j job) {
	if ctx.Err() != nil {
		return
	}
	now := r.clock()
	done, ok := r.acquire(ctx, j, now)
	if !ok {
		return
	}
	defer done()

	tickID := uuid.NewString()
	start := time.Now()
	err := j.fn(WithTickID(ctx, tickID), now)
	elapsed := time.Since(start)
	tickDuration.WithLabelValues(j.name).Observe(elapsed.Seconds())

	event := services.Event{
		Kind:   services.EventTickCompleted,
		At:     r.clock(),
		TickID: tickID,
		Job:    j.name,
		Fields: map[string]any{"duration_ms": elapsed.Milliseconds()},
	}
	if err != nil {
		event.Error = err.Error()
		r.logger.Error("job tick failed", zap.String("job", j.name), zap.String("tick_id", tickID), zap.Error(err))
	}
	r.events.Emit(ctx, event)
}

// acquire takes the lock for one tick and returns what to run once the tick ends
func (r *Runner) acquire(ctx context.Context, j job, now time.Time) (func(), bool) {
	if j.mode == minuteLock {
		name := j.name + ":" + now.UTC().Truncate(time.Minute).Format("2006-01-02T15:04")
		_, ok, err := r.lock.TryAcquire(ctx, name, minuteLockTTL)
		if err != nil {
			r.logger.Warn("leader lock unavailable, skipping tick", zap.String("job", j.name), zap.Error(err))
			return nil, false
		}
		if !ok {
			r.logger.Debug("minute already claimed by another instance", zap.String("job", j.name), zap.String("lock", name))
			return nil, false
		}
		return func() {}, true
	}

	lease, err := r.lease(ctx, j.name)
	if err != nil {
		r.logger.Warn("leader lock unavailable, skipping tick", zap.String("job", j.name), zap.Error(err))
		return nil, false
	}
	if lease == nil {
		r.logger.Debug("another instance holds the job lock", zap.String("job", j.name))
		return nil, false
	}
	return func() {
		// a long tick must not let the lease lapse before the next one
		if err := lease.Extend(context.WithoutCancel(ctx), r.lockTTL); err != nil {
			r.dropLease(j.name, lease, err)
		}
	}, true
}

// lease returns the held lease for name, extending it, or tries to take a new one
func (r *Runner) lease(ctx context.Context, name string) (Lease, error) {
	r.mu.Lock()
	held := r.leases[name]
	r.mu.Unlock()

	if held != nil {
		err := held.Extend(ctx, r.lockTTL)
		if err == nil {
			return held, nil
		}
		r.dropLease(name, held, err)
		if !errors.Is(err, ErrLeaseLost) {
			return nil, err
		}
	}

	lease, ok, err := r.lock.TryAcquire(ctx, name, r.lockTTL)
	if err != nil || !ok {
		return nil, err
	}
	r.mu.Lock()
	r.leases[name] = lease
	r.mu.Unlock()
	r.logger.Info("acquired job lease", zap.String("job", name), zap.Duration("ttl", r.lockTTL))
	return lease, nil
}

func (r *Runner) dropLease(name string, lease Lease, err error) {
	r.mu.Lock()
	if r.leases[name] == lease {
		delete(r.leases, name)
	}
	r.mu.Unlock()
	r.logger.Warn("job lease lost", zap.String("job", name), zap.Error(err))
}

// releaseLeases hands every held lease back so another instance can take over
func (r *Runner) releaseLeases() {
	r.mu.Lock()
	leases := r.leases
	r.leases = make(map[string]Lease)
	r.mu.Unlock()
	for _, l := range leases {
		l.Release()
	}
}

// Start launches the cron loop and returns a stop function that waits for running ticks
func (r *Runner) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	r.ctx = ctx
	r.cron.Start()
	r.logger.Info("scheduler started", zap.Int("jobs", len(r.cron.Entries())))

	return func() {
		cancel()
		<-r.cron.Stop().Done()
		r.releaseLeases()
		r.logger.Info("scheduler stopped")
	}
}
