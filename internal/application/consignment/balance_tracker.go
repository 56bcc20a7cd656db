package consignment

import (
	"context"
	"errors"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type trackedBalance struct {
	balance *consignment.SupplierBalance
	isNew   bool
	dirty   bool
}

// balanceTracker accumulates supplier aggregate changes made inside one
// transaction and writes each touched balance once.
type balanceTracker struct {
	repo     consignment.SupplierBalanceRepository
	tenantID uuid.UUID
	entries  map[uuid.UUID]*trackedBalance
}

func newBalanceTracker(repo consignment.SupplierBalanceRepository, tenantID uuid.UUID) *balanceTracker {
	return &balanceTracker{
		repo:     repo,
		tenantID: tenantID,
		entries:  make(map[uuid.UUID]*trackedBalance),
	}
}

func (t *balanceTracker) load(ctx context.Context, supplierID uuid.UUID) (*trackedBalance, error) {
	if e, ok := t.entries[supplierID]; ok {
		return e, nil
	}
	balance, err := t.repo.FindBySupplier(ctx, t.tenantID, supplierID)
	e := &trackedBalance{balance: balance}
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		e.balance = consignment.NewSupplierBalance(t.tenantID, supplierID)
		e.isNew = true
	}
	t.entries[supplierID] = e
	return e, nil
}

// track records the change of one batch's contribution
func (t *balanceTracker) track(ctx context.Context, batch *consignment.ConsignmentBatch, before consignment.Contribution) error {
	after := consignment.ContributionOf(batch)
	if after.Sub(before).IsZero() {
		return nil
	}
	e, err := t.load(ctx, batch.SupplierID)
	if err != nil {
		return err
	}
	if e.balance.ApplyDelta(before, after) {
		e.dirty = true
	}
	return nil
}

func (t *balanceTracker) credit(ctx context.Context, supplierID uuid.UUID) (decimal.Decimal, error) {
	e, err := t.load(ctx, supplierID)
	if err != nil {
		return decimal.Zero, err
	}
	return e.balance.CreditBalance, nil
}

func (t *balanceTracker) setCredit(ctx context.Context, supplierID uuid.UUID, credit decimal.Decimal) error {
	e, err := t.load(ctx, supplierID)
	if err != nil {
		return err
	}
	if e.balance.SetCredit(credit) {
		e.dirty = true
	}
	return nil
}

// flush persists every changed balance
func (t *balanceTracker) flush(ctx context.Context) error {
	for _, e := range t.entries {
		if !e.dirty {
			continue
		}
		var err error
		if e.isNew {
			err = t.repo.Create(ctx, e.balance)
		} else {
			err = t.repo.SaveWithLock(ctx, e.balance)
		}
		if err != nil {
			return err
		}
		e.dirty = false
		e.isNew = false
	}
	return nil
}
