package resilience

import (
	"context"
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Breaker names and the upstream codes they report
const (
	ProductCatalogBreaker    = "product_catalog"
	SupplierDirectoryBreaker = "supplier_directory"
	LiabilityLedgerBreaker   = "liability_ledger"

	CodeProductStockUnavailable      = "PRODUCT_STOCK_UNAVAILABLE"
	CodeSupplierDirectoryUnavailable = "SUPPLIER_DIRECTORY_UNAVAILABLE"
	CodeLedgerUnavailable            = "LEDGER_UNAVAILABLE"
)

// Settings shared by the collaborator breakers
type Settings struct {
	MaxFailures uint32
	Timeout     time.Duration
}

// Guards bundles one breaker per collaborator
type Guards struct {
	Products  *Breaker
	Suppliers *Breaker
	Ledger    *Breaker
}

// NewGuards creates the three collaborator breakers
func NewGuards(s Settings, logger *zap.Logger, listener StateListener) *Guards {
	mk := func(name, code string) *Breaker {
		return NewBreaker(BreakerConfig{
			Name:        name,
			Code:        code,
			MaxFailures: s.MaxFailures,
			Timeout:     s.Timeout,
		}, logger, listener)
	}
	return &Guards{
		Products:  mk(ProductCatalogBreaker, CodeProductStockUnavailable),
		Suppliers: mk(SupplierDirectoryBreaker, CodeSupplierDirectoryUnavailable),
		Ledger:    mk(LiabilityLedgerBreaker, CodeLedgerUnavailable),
	}
}

// All returns the breakers, e.g. for state export
func (g *Guards) All() []*Breaker {
	return []*Breaker{g.Products, g.Suppliers, g.Ledger}
}

// ProductStockPool wraps a consignment.ProductStockPool with a breaker
type ProductStockPool struct {
	next    consignment.ProductStockPool
	breaker *Breaker
}

// GuardProductStockPool wraps next with b
func GuardProductStockPool(next consignment.ProductStockPool, b *Breaker) *ProductStockPool {
	return &ProductStockPool{next: next, breaker: b}
}

func (p *ProductStockPool) Exists(ctx context.Context, tenantID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := p.breaker.Do(func() error {
		var err error
		exists, err = p.next.Exists(ctx, tenantID, productID)
		return err
	})
	return exists, err
}

func (p *ProductStockPool) IncrementConsignmentStock(ctx context.Context, tenantID, productID uuid.UUID, delta decimal.Decimal) error {
	return p.breaker.Do(func() error {
		return p.next.IncrementConsignmentStock(ctx, tenantID, productID, delta)
	})
}

// SupplierDirectory wraps a consignment.SupplierDirectory with a breaker
type SupplierDirectory struct {
	next    consignment.SupplierDirectory
	breaker *Breaker
}

// GuardSupplierDirectory wraps next with b
func GuardSupplierDirectory(next consignment.SupplierDirectory, b *Breaker) *SupplierDirectory {
	return &SupplierDirectory{next: next, breaker: b}
}

func (d *SupplierDirectory) IsConsignmentEligible(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error) {
	var eligible bool
	err := d.breaker.Do(func() error {
		var err error
		eligible, err = d.next.IsConsignmentEligible(ctx, tenantID, supplierID)
		return err
	})
	return eligible, err
}

// LiabilityLedger wraps a consignment.LiabilityLedger with a breaker
type LiabilityLedger struct {
	next    consignment.LiabilityLedger
	breaker *Breaker
}

// GuardLiabilityLedger wraps next with b
func GuardLiabilityLedger(next consignment.LiabilityLedger, b *Breaker) *LiabilityLedger {
	return &LiabilityLedger{next: next, breaker: b}
}

func (l *LiabilityLedger) RecordLiabilityReduction(ctx context.Context, entry consignment.LiabilityReduction) (uuid.UUID, error) {
	var entryID uuid.UUID
	err := l.breaker.Do(func() error {
		var err error
		entryID, err = l.next.RecordLiabilityReduction(ctx, entry)
		return err
	})
	return entryID, err
}

var (
	_ consignment.ProductStockPool  = (*ProductStockPool)(nil)
	_ consignment.SupplierDirectory = (*SupplierDirectory)(nil)
	_ consignment.LiabilityLedger   = (*LiabilityLedger)(nil)
)
