package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/idempotency"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/observability"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs registered jobs on cron schedules. A job never overlaps with itself.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler builds a UTC scheduler logging through logger.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cronLogger := cron.PrintfLogger(observability.NewPrintfAdapter(logger.Named("cron")))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithParser(cronParser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register schedules job with spec (cron expression or descriptor such as "@every 1h").
func (s *Scheduler) Register(spec string, job Job) error {
	if job == nil {
		return errors.New("jobs: job is required")
	}
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			s.logger.Warn("jobs: run failed", zap.String("job", job.Name()), zap.Error(err))
			return
		}
		s.logger.Debug("jobs: run finished", zap.String("job", job.Name()), zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("jobs: schedule %s (%q): %w", job.Name(), spec, err)
	}
	return nil
}

// Start begins dispatching.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const idempotencyCleanupLockKey = "jobs:idempotency-cleanup"

// IdempotencyCleanup purges expired idempotency records in batches.
type IdempotencyCleanup struct {
	store     idempotency.Store
	locker    database.Locker
	batchSize int
	lockTTL   time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

// NewIdempotencyCleanup builds the purge job. A nil locker runs without cross-instance locking.
func NewIdempotencyCleanup(store idempotency.Store, locker database.Locker, batchSize int, logger *zap.Logger) *IdempotencyCleanup {
	if locker == nil {
		locker = database.NoopLocker{}
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyCleanup{
		store:     store,
		locker:    locker,
		batchSize: batchSize,
		lockTTL:   5 * time.Minute,
		clock:     time.Now,
		logger:    logger,
	}
}

// Name implements Job.
func (j *IdempotencyCleanup) Name() string { return "idempotency-cleanup" }

// Run implements Job. Another instance holding the lock makes this run a no-op.
func (j *IdempotencyCleanup) Run(ctx context.Context) error {
	unlock, err := j.locker.Obtain(ctx, idempotencyCleanupLockKey, j.lockTTL, 0)
	if errors.Is(err, database.ErrLockNotObtained) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			j.logger.Warn("jobs: release cleanup lock failed", zap.Error(err))
		}
	}()

	now := j.clock().UTC()
	total := 0
	for {
		removed, err := j.store.CleanupExpired(ctx, now, j.batchSize)
		total += removed
		if err != nil {
			return fmt.Errorf("idempotency cleanup: %w", err)
		}
		if removed < j.batchSize || ctx.Err() != nil {
			break
		}
	}
	if total > 0 {
		j.logger.Info("jobs: idempotency records purged", zap.Int("removed", total))
	}
	return nil
}
