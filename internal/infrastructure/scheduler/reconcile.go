package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	consignmentapp "github.com/erp/consignment/internal/application/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BalanceRebuilder recomputes a tenant's running supplier aggregates
type BalanceRebuilder interface {
	RebuildSupplierBalances(ctx context.Context, tenantID uuid.UUID) (*consignmentapp.RebuildResponse, error)
}

// ReconcileExecutor rebuilds supplier balances for the job's tenant. With a
// locker, only one instance reconciles a tenant at a time; the others skip.
type ReconcileExecutor struct {
	rebuilder BalanceRebuilder
	locker    consignmentapp.SupplierLocker
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewReconcileExecutor creates the executor. locker may be nil.
func NewReconcileExecutor(rebuilder BalanceRebuilder, locker consignmentapp.SupplierLocker, lockTTL time.Duration, log *zap.Logger) *ReconcileExecutor {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileExecutor{
		rebuilder: rebuilder,
		locker:    locker,
		lockTTL:   lockTTL,
		logger:    log,
	}
}

func reconcileLockKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("consignment:reconcile:%s", tenantID)
}

// Execute implements JobExecutor
func (e *ReconcileExecutor) Execute(ctx context.Context, job *Job) error {
	ctx = logger.WithTenantID(ctx, job.TenantID.String())

	if e.locker != nil {
		release, err := e.locker.Acquire(ctx, reconcileLockKey(job.TenantID), e.lockTTL)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			logger.Enrich(ctx, e.logger).Debug("Reconciliation already running elsewhere")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			// The job context may already be done; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				logger.Enrich(ctx, e.logger).Warn("Failed to release reconcile lock", zap.Error(err))
			}
		}()
	}

	result, err := e.rebuilder.RebuildSupplierBalances(ctx, job.TenantID)
	if err != nil {
		return err
	}
	if result.Corrected > 0 {
		logger.Enrich(ctx, e.logger).Warn("Supplier balances drifted and were rebuilt",
			zap.Int("suppliers", result.Suppliers),
			zap.Int("corrected", result.Corrected),
		)
	}
	return nil
}

var _ JobExecutor = (*ReconcileExecutor)(nil)
