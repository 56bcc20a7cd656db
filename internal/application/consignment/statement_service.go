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

const statementPageSize = 200

// StatementRenderer turns a statement into a downloadable document
type StatementRenderer interface {
	Render(st *consignment.SupplierStatement) ([]byte, error)
	ContentType() string
	FileExtension() string
}

// ObjectStorage keeps exported documents and hands out download links
type ObjectStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// StatementService builds supplier statements
type StatementService struct {
	batchRepo   consignment.BatchRepository
	paymentRepo consignment.PaymentRepository
	balanceRepo consignment.SupplierBalanceRepository
	suppliers   consignment.SupplierDirectory
	renderer    StatementRenderer
	storage     ObjectStorage
	logger      *zap.Logger
	now         func() time.Time
}

// NewStatementService creates a new StatementService. Exports stay disabled
// until SetObjectStorage is called.
func NewStatementService(
	batchRepo consignment.BatchRepository,
	paymentRepo consignment.PaymentRepository,
	balanceRepo consignment.SupplierBalanceRepository,
	suppliers consignment.SupplierDirectory,
	renderer StatementRenderer,
	logger *zap.Logger,
) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{
		batchRepo:   batchRepo,
		paymentRepo: paymentRepo,
		balanceRepo: balanceRepo,
		suppliers:   suppliers,
		renderer:    renderer,
		logger:      logger,
		now:         time.Now,
	}
}

// SetObjectStorage enables ExportSupplierStatement
func (s *StatementService) SetObjectStorage(storage ObjectStorage) {
	s.storage = storage
}

// RenderSupplierStatement builds and renders the statement in memory
func (s *StatementService) RenderSupplierStatement(ctx context.Context, tenantID uuid.UUID, req StatementRequest) (*RenderedStatement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_statement", "render")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSupplierID, req.SupplierID.String())

	st, err := s.build(ctx, tenantID, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	data, err := s.renderer.Render(st)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("render supplier statement: %w", err)
	}
	return &RenderedStatement{
		Filename:     statementFilename(st, s.renderer.FileExtension()),
		ContentType:  s.renderer.ContentType(),
		Data:         data,
		BatchCount:   len(st.Batches),
		PaymentCount: len(st.Payments),
		Summary:      st.Summary,
		GeneratedAt:  st.GeneratedAt,
	}, nil
}

// ExportSupplierStatement renders the statement, uploads it and returns a
// time-limited download link.
func (s *StatementService) ExportSupplierStatement(ctx context.Context, tenantID uuid.UUID, req StatementRequest) (*StatementExportResponse, error) {
	if s.storage == nil {
		return nil, shared.NewUpstreamError("STATEMENT_STORAGE_DISABLED",
			"Statement storage is not configured", nil)
	}

	rendered, err := s.RenderSupplierStatement(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_statement", "export")
	defer span.End()

	key := statementKey(tenantID, req.SupplierID, rendered.GeneratedAt, s.renderer.FileExtension())
	if err := s.storage.Upload(ctx, key, rendered.Data, rendered.ContentType); err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.NewUpstreamError("STATEMENT_UPLOAD_FAILED", "Failed to store supplier statement", err)
	}
	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, key, 0)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.NewUpstreamError("STATEMENT_UPLOAD_FAILED", "Failed to sign statement download link", err)
	}

	s.logger.Info("Supplier statement exported",
		zap.String("tenant_id", tenantID.String()),
		zap.String("supplier_id", req.SupplierID.String()),
		zap.String("storage_key", key),
		zap.Int("size", len(rendered.Data)),
	)
	return &StatementExportResponse{
		SupplierID:   req.SupplierID,
		StorageKey:   key,
		Filename:     rendered.Filename,
		ContentType:  rendered.ContentType,
		DownloadURL:  url,
		ExpiresAt:    expiresAt,
		BatchCount:   rendered.BatchCount,
		PaymentCount: rendered.PaymentCount,
		Summary:      rendered.Summary,
		GeneratedAt:  rendered.GeneratedAt,
	}, nil
}

func (s *StatementService) build(ctx context.Context, tenantID uuid.UUID, req StatementRequest) (*consignment.SupplierStatement, error) {
	if req.SupplierID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_SUPPLIER", "Supplier ID cannot be empty")
	}
	if req.DateFrom != nil && req.DateTo != nil && req.DateTo.Before(*req.DateFrom) {
		return nil, shared.NewValidationError("INVALID_DATE_RANGE", "date_to must not be before date_from")
	}
	// Only existence matters: suppliers that stopped consigning still get statements.
	if _, err := s.suppliers.IsConsignmentEligible(ctx, tenantID, req.SupplierID); err != nil {
		return nil, err
	}

	supplierID := req.SupplierID
	batches, err := s.batchRepo.FindForSummary(ctx, tenantID, consignment.SummaryFilter{
		SupplierID: &supplierID,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
	})
	if err != nil {
		return nil, err
	}
	payments, err := s.collectPayments(ctx, tenantID, consignment.PaymentFilter{
		SupplierID: &supplierID,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
	})
	if err != nil {
		return nil, err
	}

	credit := decimal.Zero
	balance, err := s.balanceRepo.FindBySupplier(ctx, tenantID, supplierID)
	switch {
	case err == nil:
		credit = balance.CreditBalance
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	return consignment.NewSupplierStatement(tenantID, supplierID, req.DateFrom, req.DateTo,
		batches, payments, credit, s.now().UTC()), nil
}

func (s *StatementService) collectPayments(ctx context.Context, tenantID uuid.UUID, filter consignment.PaymentFilter) ([]*consignment.ConsignmentPayment, error) {
	var out []*consignment.ConsignmentPayment
	for page := 1; ; page++ {
		filter.Filter = shared.Filter{Page: page, PageSize: statementPageSize, OrderBy: "payment_date", OrderDir: "asc"}
		items, total, err := s.paymentRepo.FindAllForTenant(ctx, tenantID, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) == 0 || int64(len(out)) >= total {
			return out, nil
		}
	}
}

func statementFilename(st *consignment.SupplierStatement, ext string) string {
	return fmt.Sprintf("statement-%s-%s%s", st.SupplierID.String()[:8], st.GeneratedAt.Format("20060102"), ext)
}

func statementKey(tenantID, supplierID uuid.UUID, generatedAt time.Time, ext string) string {
	return fmt.Sprintf("statements/%s/%s/%s%s", tenantID, supplierID, generatedAt.Format("20060102T150405Z"), ext)
}
