package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants that hold consignment data
type TenantProvider interface {
	ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Trigger submits one job per tenant every interval
type Trigger struct {
	interval       time.Duration
	scheduler      *Scheduler
	tenantProvider TenantProvider
	logger         *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewTrigger creates a new trigger
func NewTrigger(interval time.Duration, scheduler *Scheduler, tenants TenantProvider, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		interval:       interval,
		scheduler:      scheduler,
		tenantProvider: tenants,
		logger:         logger,
	}
}

// Start starts the ticker loop. The first round runs after one interval.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	if t.interval <= 0 {
		return ErrInvalidConfig
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Reconciliation trigger started", zap.Duration("interval", t.interval))
	return nil
}

// Stop stops the ticker loop
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.cancel()
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.RunOnce(ctx); err != nil {
				t.logger.Error("Failed to schedule reconciliation", zap.Error(err))
			}
		}
	}
}

// RunOnce submits a job for every tenant now and returns how many were
// queued. A full queue skips the remaining tenants until the next round.
func (t *Trigger) RunOnce(ctx context.Context) (int, error) {
	tenantIDs, err := t.tenantProvider.ActiveTenantIDs(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, tenantID := range tenantIDs {
		if err := t.scheduler.SubmitJob(NewJob(tenantID, t.scheduler.config.RetryAttempts)); err != nil {
			t.logger.Warn("Reconciliation round cut short",
				zap.Int("queued", queued),
				zap.Int("tenants", len(tenantIDs)),
				zap.Error(err),
			)
			return queued, err
		}
		queued++
	}

	t.logger.Info("Reconciliation round scheduled", zap.Int("tenants", queued))
	return queued, nil
}
