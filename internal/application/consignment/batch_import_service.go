package consignment

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	csvimport "github.com/erp/consignment/internal/infrastructure/import"
	"github.com/erp/consignment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultImportMaxRows   = 1000
	DefaultImportMaxErrors = 100
)

// Intake file columns
const (
	ColSupplierID      = "supplier_id"
	ColProductID       = "product_id"
	ColBatchNumber     = "batch_number"
	ColInitialQuantity = "initial_quantity"
	ColUnit            = "unit"
	ColUnitCost        = "unit_cost"
	ColTotalValue      = "total_value"
	ColReceivedAt      = "received_at"
	ColNotes           = "notes"
)

// BatchCreator is the single-batch intake the importer delegates to
type BatchCreator interface {
	CreateBatch(ctx context.Context, tenantID uuid.UUID, req CreateBatchRequest) (*BatchResponse, error)
}

// BatchImportService creates consignment batches from a CSV intake file.
// The whole file is validated first; nothing is created while any line has
// a field error.
type BatchImportService struct {
	creator   BatchCreator
	logger    *zap.Logger
	maxRows   int
	maxErrors int
}

// NewBatchImportService creates a new BatchImportService
func NewBatchImportService(creator BatchCreator, logger *zap.Logger) *BatchImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchImportService{
		creator:   creator,
		logger:    logger,
		maxRows:   DefaultImportMaxRows,
		maxErrors: DefaultImportMaxErrors,
	}
}

// SetLimits overrides the row cap and the number of errors reported
func (s *BatchImportService) SetLimits(maxRows, maxErrors int) {
	if maxRows > 0 {
		s.maxRows = maxRows
	}
	if maxErrors > 0 {
		s.maxErrors = maxErrors
	}
}

// ImportRules are the field rules of an intake file
func ImportRules() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field(ColSupplierID).Required().UUID().Build(),
		csvimport.Field(ColProductID).Required().UUID().Build(),
		csvimport.Field(ColBatchNumber).MaxLength(50).Unique().Build(),
		csvimport.Field(ColInitialQuantity).Required().Positive().Build(),
		csvimport.Field(ColUnit).Required().MaxLength(20).Build(),
		csvimport.Field(ColUnitCost).Required().NonNegative().Build(),
		csvimport.Field(ColTotalValue).NonNegative().Build(),
		csvimport.Field(ColReceivedAt).Date().Build(),
		csvimport.Field(ColNotes).MaxLength(500).Build(),
	}
}

// ImportBatches reads r and creates one batch per data line on behalf of
// operatorID. A rejected line does not stop the others; an infrastructure
// failure does, and the lines created before it stay created.
func (s *BatchImportService) ImportBatches(ctx context.Context, tenantID, operatorID uuid.UUID, r io.Reader, req BatchImportRequest) (*BatchImportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_batch_import", "import")
	defer span.End()

	if operatorID == uuid.Nil {
		return nil, shared.ErrNotAuthenticated
	}

	opts := []csvimport.ParserOption{csvimport.WithMaxRows(s.maxRows)}
	if req.Delimiter != 0 {
		opts = append(opts, csvimport.WithDelimiter(req.Delimiter))
	}
	parser, err := csvimport.NewParser(r, opts...)
	if err != nil {
		return nil, importFileError(err)
	}
	if err := parser.ReadHeader(); err != nil {
		return nil, importFileError(err)
	}

	validator := csvimport.NewValidator(ImportRules(), s.maxErrors)
	if missing := parser.Missing(validator.RequiredColumns()); len(missing) > 0 {
		return nil, shared.NewValidationError("IMPORT_MISSING_COLUMNS",
			"Missing required columns: "+strings.Join(missing, ", "))
	}
	rows, err := parser.ReadAll()
	if err != nil {
		return nil, importFileError(err)
	}

	result := &BatchImportResult{TotalRows: len(rows), DryRun: req.DryRun}
	for _, row := range rows {
		validator.Validate(row)
	}
	errs := validator.Errors()
	if errs.HasErrors() || req.DryRun {
		result.setErrors(errs)
		s.logger.Info("Batch import validated",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("rows", result.TotalRows),
			zap.Int("error_rows", result.ErrorRows),
			zap.Bool("dry_run", req.DryRun))
		return result, nil
	}

	rejected := csvimport.NewErrorCollection(s.maxErrors)
	for _, row := range rows {
		batch, err := s.creator.CreateBatch(ctx, tenantID, toCreateBatchRequest(row, operatorID))
		if err != nil {
			var domainErr *shared.DomainError
			if !errors.As(err, &domainErr) || domainErr.Kind == shared.KindUpstream {
				telemetry.RecordError(span, err)
				s.logger.Error("Batch import aborted",
					zap.String("tenant_id", tenantID.String()),
					zap.Int("line", row.Line),
					zap.Int("imported", result.ImportedRows),
					zap.Error(err))
				return nil, err
			}
			rejected.Reject(row.Line, domainErr.Code, domainErr.Message)
			continue
		}
		result.ImportedRows++
		result.Batches = append(result.Batches, ImportedBatch{
			Line:        row.Line,
			ID:          batch.ID,
			BatchNumber: batch.BatchNumber,
		})
	}
	result.setErrors(rejected)

	telemetry.SetAttributes(span, "import.rows", result.TotalRows, "import.imported", result.ImportedRows)
	s.logger.Info("Batch import completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("operator_id", operatorID.String()),
		zap.Int("rows", result.TotalRows),
		zap.Int("imported", result.ImportedRows),
		zap.Int("rejected", result.ErrorRows))
	return result, nil
}

func (r *BatchImportResult) setErrors(errs *csvimport.ErrorCollection) {
	r.ErrorRows = errs.Lines()
	r.Errors = errs.Errors()
	r.TotalErrors = errs.Total()
	r.IsTruncated = errs.Truncated()
}

// toCreateBatchRequest maps a validated row; parse errors cannot occur here
func toCreateBatchRequest(row *csvimport.Row, operatorID uuid.UUID) CreateBatchRequest {
	req := CreateBatchRequest{
		SupplierID:      uuid.MustParse(row.Get(ColSupplierID)),
		ProductID:       uuid.MustParse(row.Get(ColProductID)),
		BatchNumber:     row.Get(ColBatchNumber),
		InitialQuantity: decimal.RequireFromString(row.Get(ColInitialQuantity)),
		Unit:            row.Get(ColUnit),
		UnitCost:        decimal.RequireFromString(row.Get(ColUnitCost)),
		Notes:           row.Get(ColNotes),
		OperatorID:      operatorID,
	}
	if raw := row.Get(ColTotalValue); raw != "" {
		total := decimal.RequireFromString(raw)
		req.TotalValue = &total
	}
	if raw := row.Get(ColReceivedAt); raw != "" {
		if t, err := time.Parse(csvimport.DateLayout, raw); err == nil {
			req.ReceivedAt = &t
		}
	}
	return req
}

func importFileError(err error) error {
	return shared.NewValidationError("IMPORT_INVALID_FILE", err.Error())
}
