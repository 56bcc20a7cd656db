package consignment

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchService handles the consignment batch lifecycle
type BatchService struct {
	scope       TransactionScope
	batchRepo   consignment.BatchRepository
	suppliers   consignment.SupplierDirectory
	products    consignment.ProductStockPool
	idempotency shared.IdempotencyStore
	publisher   shared.EventPublisher
	logger      *zap.Logger
	opts        Options
}

// NewBatchService creates a new BatchService. batchRepo and products serve
// reads made before a transaction is opened.
func NewBatchService(
	scope TransactionScope,
	batchRepo consignment.BatchRepository,
	suppliers consignment.SupplierDirectory,
	products consignment.ProductStockPool,
	logger *zap.Logger,
	opts Options,
) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		scope:     scope,
		batchRepo: batchRepo,
		suppliers: suppliers,
		products:  products,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *BatchService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetIdempotencyStore enables deduplication of sale notifications
func (s *BatchService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// CreateBatch registers a delivery in the received status
func (s *BatchService) CreateBatch(ctx context.Context, tenantID uuid.UUID, req CreateBatchRequest) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_batch", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSupplierID, req.SupplierID.String(),
		telemetry.SpanAttrProductID, req.ProductID.String(),
	)

	batch, err := consignment.NewConsignmentBatch(consignment.NewBatchParams{
		TenantID:        tenantID,
		SupplierID:      req.SupplierID,
		ProductID:       req.ProductID,
		BatchNumber:     req.BatchNumber,
		InitialQuantity: req.InitialQuantity,
		Unit:            req.Unit,
		UnitCost:        req.UnitCost,
		TotalValue:      req.TotalValue,
		ReceivedAt:      req.ReceivedAt,
		Notes:           req.Notes,
		CreatedBy:       req.OperatorID,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	eligible, err := s.suppliers.IsConsignmentEligible(ctx, tenantID, req.SupplierID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !eligible {
		return nil, shared.NewStateError("SUPPLIER_NOT_ELIGIBLE",
			fmt.Sprintf("Supplier %s is not set up for consignment", req.SupplierID))
	}

	exists, err := s.products.Exists(ctx, tenantID, req.ProductID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !exists {
		return nil, shared.NewNotFoundError("PRODUCT_NOT_FOUND",
			fmt.Sprintf("Product %s not found", req.ProductID))
	}

	if strings.TrimSpace(req.BatchNumber) != "" {
		taken, err := s.batchRepo.ExistsByBatchNumber(ctx, tenantID, batch.BatchNumber)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, shared.NewDomainError("ALREADY_EXISTS",
				fmt.Sprintf("Batch number %s is already in use", batch.BatchNumber))
		}
	}

	if err := s.batchRepo.Save(ctx, batch); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save consignment batch: %w", err)
	}

	s.logger.Info("consignment batch created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber),
		zap.String("supplier_id", batch.SupplierID.String()),
		zap.String("initial_quantity", batch.InitialQuantity.String()),
	)
	publishEvents(ctx, s.publisher, collectEvents(batch))

	resp := ToBatchResponse(batch)
	return &resp, nil
}

// VerifyBatch confirms a received batch and credits the product's consignment stock
func (s *BatchService) VerifyBatch(ctx context.Context, tenantID, batchID, operatorID uuid.UUID) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_batch", "verify")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, batchID.String())

	if operatorID == uuid.Nil {
		return nil, shared.ErrNotAuthenticated
	}

	batch, err := s.mutate(ctx, tenantID, batchID, "verify", func(repos TransactionalRepositories, b *consignment.ConsignmentBatch) error {
		if err := b.Verify(operatorID); err != nil {
			return err
		}
		return repos.StockPool().IncrementConsignmentStock(ctx, tenantID, b.ProductID, b.InitialQuantity)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("consignment batch verified",
		zap.String("tenant_id", tenantID.String()),
		zap.String("batch_id", batch.ID.String()),
		zap.String("operator_id", operatorID.String()),
	)
	resp := ToBatchResponse(batch)
	return &resp, nil
}

// RecordReturn hands unsold units back to the supplier. Stock is only
// withdrawn for verified batches, since unverified ones were never credited.
func (s *BatchService) RecordReturn(ctx context.Context, tenantID, batchID uuid.UUID, req RecordReturnRequest) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_batch", "record_return")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBatchID, batchID.String(),
		telemetry.SpanAttrQuantity, req.ReturnQuantity.String(),
	)

	if req.OperatorID == uuid.Nil {
		return nil, shared.ErrNotAuthenticated
	}

	batch, err := s.mutate(ctx, tenantID, batchID, "record_return", func(repos TransactionalRepositories, b *consignment.ConsignmentBatch) error {
		wasVerified := b.IsVerified()
		if err := b.RecordReturn(req.ReturnQuantity, req.Notes); err != nil {
			return err
		}
		if !wasVerified {
			return nil
		}
		return repos.StockPool().IncrementConsignmentStock(ctx, tenantID, b.ProductID, req.ReturnQuantity.Neg())
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("consignment return recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("batch_id", batch.ID.String()),
		zap.String("quantity", req.ReturnQuantity.String()),
		zap.String("status", batch.Status.String()),
	)
	resp := ToBatchResponse(batch)
	return &resp, nil
}

// RecordSale applies a sale reported by the sales pipeline. A notification
// whose reference was already handled is acknowledged without changes.
func (s *BatchService) RecordSale(ctx context.Context, tenantID, batchID uuid.UUID, req RecordSaleRequest) (*SaleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_batch", "record_sale")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBatchID, batchID.String(),
		telemetry.SpanAttrQuantity, req.Quantity.String(),
	)

	key := ""
	if s.idempotency != nil && req.SaleReference != "" {
		key = saleIdempotencyKey(tenantID, req.SaleReference)
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.opts.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to check sale reference: %w", err)
		}
		if !fresh {
			batch, err := s.batchRepo.FindByIDForTenant(ctx, tenantID, batchID)
			if err != nil {
				return nil, notFoundAs(err, "BATCH_NOT_FOUND", "Batch", batchID)
			}
			s.logger.Info("duplicate sale notification ignored",
				zap.String("batch_id", batchID.String()),
				zap.String("sale_reference", req.SaleReference),
			)
			return &SaleResponse{Batch: ToBatchResponse(batch), Duplicate: true}, nil
		}
	}

	batch, err := s.mutate(ctx, tenantID, batchID, "record_sale", func(_ TransactionalRepositories, b *consignment.ConsignmentBatch) error {
		return b.RecordSale(req.Quantity)
	})
	if err != nil {
		if key != "" {
			if ferr := s.idempotency.Forget(ctx, key); ferr != nil {
				s.logger.Warn("failed to release sale reference", zap.String("key", key), zap.Error(ferr))
			}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &SaleResponse{Batch: ToBatchResponse(batch)}, nil
}

// mutate loads a batch inside a transaction, applies change, saves it and
// keeps the supplier aggregate in step. Version conflicts are retried with a
// fresh copy; events of the successful attempt are published after commit.
func (s *BatchService) mutate(
	ctx context.Context,
	tenantID, batchID uuid.UUID,
	operation string,
	change func(repos TransactionalRepositories, b *consignment.ConsignmentBatch) error,
) (*consignment.ConsignmentBatch, error) {
	var result *consignment.ConsignmentBatch
	err := retryOnConflict(ctx, s.opts, s.logger, operation, func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			b, err := repos.BatchRepo().FindByIDForTenant(ctx, tenantID, batchID)
			if err != nil {
				return notFoundAs(err, "BATCH_NOT_FOUND", "Batch", batchID)
			}
			before := consignment.ContributionOf(b)
			if err := change(repos, b); err != nil {
				return err
			}
			if err := repos.BatchRepo().SaveWithLock(ctx, b); err != nil {
				return err
			}
			tracker := newBalanceTracker(repos.BalanceRepo(), tenantID)
			if err := tracker.track(ctx, b, before); err != nil {
				return err
			}
			if err := tracker.flush(ctx); err != nil {
				return err
			}
			result = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.publisher, collectEvents(result))
	return result, nil
}

// GetBatch returns one enriched batch
func (s *BatchService) GetBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*BatchResponse, error) {
	b, err := s.batchRepo.FindByIDForTenant(ctx, tenantID, batchID)
	if err != nil {
		return nil, notFoundAs(err, "BATCH_NOT_FOUND", "Batch", batchID)
	}
	resp := ToBatchResponse(b)
	return &resp, nil
}

// ListBatches returns enriched batches matching filter
func (s *BatchService) ListBatches(ctx context.Context, tenantID uuid.UUID, filter BatchListFilter) ([]BatchResponse, int64, error) {
	domainFilter, err := toDomainBatchFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	batches, total, err := s.batchRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToBatchResponses(batches), total, nil
}

func toDomainBatchFilter(f BatchListFilter) (consignment.BatchFilter, error) {
	out := consignment.BatchFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		},
		SupplierID: f.SupplierID,
		ProductID:  f.ProductID,
		DateFrom:   f.DateFrom,
		DateTo:     f.DateTo,
	}
	if out.OrderBy == "" {
		out.OrderBy = "received_at"
	}
	out.Filter = out.Filter.Normalize()

	if f.Status != "" {
		st := consignment.BatchStatus(f.Status)
		if !st.IsValid() {
			return out, shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("Unknown batch status %q", f.Status))
		}
		out.Status = &st
	}
	for _, raw := range f.Statuses {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			st := consignment.BatchStatus(part)
			if !st.IsValid() {
				return out, shared.NewValidationError("INVALID_STATUS", fmt.Sprintf("Unknown batch status %q", part))
			}
			out.Statuses = append(out.Statuses, st)
		}
	}
	return out, nil
}
