package consignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records supplier payments and allocates them to batches
type PaymentService struct {
	scope       TransactionScope
	paymentRepo consignment.PaymentRepository
	suppliers   consignment.SupplierDirectory
	locker      SupplierLocker
	allocator   *consignment.PaymentAllocator
	publisher   shared.EventPublisher
	logger      *zap.Logger
	opts        Options
}

// NewPaymentService creates a new PaymentService. locker may be nil, in which
// case only optimistic locking protects concurrent payments.
func NewPaymentService(
	scope TransactionScope,
	paymentRepo consignment.PaymentRepository,
	suppliers consignment.SupplierDirectory,
	locker SupplierLocker,
	logger *zap.Logger,
	opts Options,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &PaymentService{
		scope:       scope,
		paymentRepo: paymentRepo,
		suppliers:   suppliers,
		locker:      locker,
		allocator:   consignment.NewPaymentAllocator(opts.OverpaymentPolicy),
		logger:      logger,
		opts:        opts,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// Policy returns the over-payment policy in force
func (s *PaymentService) Policy() consignment.OverpaymentPolicy {
	return s.allocator.Policy()
}

// RecordPayment validates the request, then in one transaction allocates the
// amount greedily over the batches in the order given, stores the payment
// and books one liability reduction for the full amount.
func (s *PaymentService) RecordPayment(ctx context.Context, tenantID uuid.UUID, req RecordPaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSupplierID, req.SupplierID.String(),
		telemetry.SpanAttrAmount, req.PaymentAmount.String(),
		telemetry.SpanAttrBatchCount, len(req.RelatedBatchIDs),
	)

	params := consignment.NewPaymentParams{
		TenantID:        tenantID,
		SupplierID:      req.SupplierID,
		PaymentAmount:   req.PaymentAmount,
		PaymentMethod:   req.PaymentMethod,
		RelatedBatchIDs: req.RelatedBatchIDs,
		Notes:           req.Notes,
		RecordedBy:      req.OperatorID,
		IdempotencyKey:  req.IdempotencyKey,
	}
	if _, err := consignment.NewConsignmentPayment(params); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if _, err := s.suppliers.IsConsignmentEligible(ctx, tenantID, req.SupplierID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if existing, err := s.findReplay(ctx, tenantID, params); err != nil || existing != nil {
			if err != nil {
				telemetry.RecordError(span, err)
			}
			return existing, err
		}
	}

	var (
		payment *consignment.ConsignmentPayment
		batches []*consignment.ConsignmentBatch
	)
	err := retryOnConflict(ctx, s.opts, s.logger, "record_payment", func() error {
		release, err := s.acquire(ctx, tenantID, req.SupplierID)
		if err != nil {
			return err
		}
		defer release()

		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			p, b, err := s.allocate(ctx, repos, params)
			if err != nil {
				return err
			}
			payment, batches = p, b
			return nil
		})
	})
	if err != nil {
		if req.IdempotencyKey != "" && errors.Is(err, shared.ErrAlreadyExists) {
			existing, ferr := s.findReplay(ctx, tenantID, params)
			if ferr != nil {
				telemetry.RecordError(span, ferr)
				return nil, ferr
			}
			if existing != nil {
				return existing, nil
			}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("consignment payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("supplier_id", payment.SupplierID.String()),
		zap.String("amount", payment.PaymentAmount.String()),
		zap.String("applied", payment.AppliedAmount.String()),
		zap.String("unapplied", payment.UnappliedAmount.String()),
		zap.String("policy", payment.OverpaymentPolicy.String()),
		zap.Int("batches", len(payment.Allocations)),
	)

	events := collectEvents(payment)
	for _, b := range batches {
		events = append(events, collectEvents(b)...)
	}
	publishEvents(ctx, s.publisher, events)

	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// allocate is one attempt of the payment transaction
func (s *PaymentService) allocate(
	ctx context.Context,
	repos TransactionalRepositories,
	params consignment.NewPaymentParams,
) (*consignment.ConsignmentPayment, []*consignment.ConsignmentBatch, error) {
	payment, err := consignment.NewConsignmentPayment(params)
	if err != nil {
		return nil, nil, err
	}
	tenantID := params.TenantID

	ordered, err := s.loadInOrder(ctx, repos.BatchRepo(), tenantID, params.SupplierID, params.RelatedBatchIDs)
	if err != nil {
		return nil, nil, err
	}

	tracker := newBalanceTracker(repos.BalanceRepo(), tenantID)
	credit := decimal.Zero
	if s.allocator.Policy() == consignment.OverpaymentCreditForward {
		if credit, err = tracker.credit(ctx, params.SupplierID); err != nil {
			return nil, nil, err
		}
	}

	before := make(map[uuid.UUID]consignment.Contribution, len(ordered))
	for _, b := range ordered {
		before[b.ID] = consignment.ContributionOf(b)
	}

	result, err := s.allocator.Allocate(params.PaymentAmount, credit, ordered)
	if err != nil {
		return nil, nil, err
	}
	payment.AttachAllocation(result)

	entryID, err := repos.Ledger().RecordLiabilityReduction(ctx, consignment.LiabilityReduction{
		TenantID:      tenantID,
		SupplierID:    payment.SupplierID,
		PaymentID:     payment.ID,
		Amount:        payment.PaymentAmount,
		PaymentMethod: payment.PaymentMethod,
		Notes:         payment.Notes,
		RecordedBy:    payment.RecordedBy,
		OccurredAt:    payment.PaymentDate,
	})
	if err != nil {
		return nil, nil, err
	}
	payment.SetLedgerEntry(entryID)

	if err := repos.PaymentRepo().Save(ctx, payment); err != nil {
		return nil, nil, err
	}

	mutated := make([]*consignment.ConsignmentBatch, 0, len(result.Lines))
	byID := make(map[uuid.UUID]*consignment.ConsignmentBatch, len(ordered))
	for _, b := range ordered {
		byID[b.ID] = b
	}
	for _, line := range result.Lines {
		b := byID[line.BatchID]
		if err := repos.BatchRepo().SaveWithLock(ctx, b); err != nil {
			return nil, nil, err
		}
		if err := tracker.track(ctx, b, before[b.ID]); err != nil {
			return nil, nil, err
		}
		mutated = append(mutated, b)
	}

	if s.allocator.Policy() == consignment.OverpaymentCreditForward {
		if err := tracker.setCredit(ctx, payment.SupplierID, result.CreditAfter); err != nil {
			return nil, nil, err
		}
	}
	if err := tracker.flush(ctx); err != nil {
		return nil, nil, err
	}
	return payment, mutated, nil
}

// loadInOrder returns the supplier's batches in the order of ids. Unknown ids,
// batches of other suppliers and repeated ids are dropped.
func (s *PaymentService) loadInOrder(
	ctx context.Context,
	repo consignment.BatchRepository,
	tenantID, supplierID uuid.UUID,
	ids []uuid.UUID,
) ([]*consignment.ConsignmentBatch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := repo.FindByIDsForTenant(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load batches: %w", err)
	}
	byID := make(map[uuid.UUID]*consignment.ConsignmentBatch, len(found))
	for _, b := range found {
		byID[b.ID] = b
	}

	ordered := make([]*consignment.ConsignmentBatch, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		b, ok := byID[id]
		if !ok {
			s.logger.Warn("payment references unknown batch", zap.String("batch_id", id.String()))
			continue
		}
		if b.SupplierID != supplierID {
			s.logger.Warn("payment references batch of another supplier",
				zap.String("batch_id", id.String()),
				zap.String("batch_supplier_id", b.SupplierID.String()),
			)
			continue
		}
		ordered = append(ordered, b)
	}
	return ordered, nil
}

func (s *PaymentService) acquire(ctx context.Context, tenantID, supplierID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, paymentLockKey(tenantID, supplierID), s.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		// Release with a fresh context so a cancelled request still frees the lock.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := release(rctx); err != nil {
			s.logger.Warn("failed to release supplier payment lock",
				zap.String("supplier_id", supplierID.String()),
				zap.Error(err),
			)
		}
	}, nil
}

// findReplay returns the payment already recorded under the idempotency key
// of params, nil when there is none. A key reused for a different request is
// rejected.
func (s *PaymentService) findReplay(ctx context.Context, tenantID uuid.UUID, params consignment.NewPaymentParams) (*PaymentResponse, error) {
	existing, err := s.paymentRepo.FindByIdempotencyKey(ctx, tenantID, params.IdempotencyKey)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !existing.SameRequest(params) {
		return nil, shared.NewValidationError("IDEMPOTENCY_KEY_REUSED",
			fmt.Sprintf("Idempotency key %q was already used for a different payment", params.IdempotencyKey))
	}
	resp := ToPaymentResponse(existing)
	resp.Replayed = true
	return &resp, nil
}

// GetPayment returns one payment with its allocation lines
func (s *PaymentService) GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*PaymentResponse, error) {
	p, err := s.paymentRepo.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		return nil, notFoundAs(err, "PAYMENT_NOT_FOUND", "Payment", paymentID)
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

// ListPayments returns payments, newest first
func (s *PaymentService) ListPayments(ctx context.Context, tenantID uuid.UUID, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	domainFilter := consignment.PaymentFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  "payment_date",
			OrderDir: "desc",
		}.Normalize(),
		SupplierID: filter.SupplierID,
		DateFrom:   filter.DateFrom,
		DateTo:     filter.DateTo,
	}
	payments, total, err := s.paymentRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToPaymentResponses(payments), total, nil
}
