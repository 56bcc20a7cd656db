package handler

import (
	"context"
	"io"
	"strings"

	consignmentapp "github.com/erp/consignment/internal/application/consignment"
	"github.com/erp/consignment/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImportFileField is the multipart field carrying the intake file
const ImportFileField = "file"

// BatchImportService turns an intake file into batches
type BatchImportService interface {
	ImportBatches(ctx context.Context, tenantID, operatorID uuid.UUID, r io.Reader, req consignmentapp.BatchImportRequest) (*consignmentapp.BatchImportResult, error)
}

// BatchImportHandler accepts CSV intake files
type BatchImportHandler struct {
	BaseHandler
	importer BatchImportService
}

// NewBatchImportHandler creates a new BatchImportHandler
func NewBatchImportHandler(importer BatchImportService) *BatchImportHandler {
	return &BatchImportHandler{importer: importer}
}

// BatchImportQuery is the query string of POST /consignment/batches/import
type BatchImportQuery struct {
	DryRun    bool   `form:"dry_run"`
	Delimiter string `form:"delimiter" binding:"omitempty,oneof=comma semicolon tab"`
}

func (q BatchImportQuery) toRequest() consignmentapp.BatchImportRequest {
	req := consignmentapp.BatchImportRequest{DryRun: q.DryRun}
	switch q.Delimiter {
	case "semicolon":
		req.Delimiter = ';'
	case "tab":
		req.Delimiter = '\t'
	}
	return req
}

// ImportBatches godoc
// POST /consignment/batches/import
// The file is sent either as multipart field "file" or as the raw body.
func (h *BatchImportHandler) ImportBatches(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	operatorID, err := getOperatorID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var query BatchImportQuery
	if !h.BindQuery(c, &query) {
		return
	}

	body := io.Reader(c.Request.Body)
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		header, err := c.FormFile(ImportFileField)
		if err != nil {
			h.BadRequest(c, "Multipart field \""+ImportFileField+"\" is required")
			return
		}
		file, err := header.Open()
		if err != nil {
			h.BadRequest(c, "Cannot read uploaded file")
			return
		}
		defer file.Close()
		body = file
	}

	result, err := h.importer.ImportBatches(c.Request.Context(), tenantID, operatorID, body, query.toRequest())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Batch intake processed",
		zap.Int("rows", result.TotalRows),
		zap.Int("imported", result.ImportedRows),
		zap.Int("error_rows", result.ErrorRows),
		zap.Bool("dry_run", result.DryRun))

	if result.ImportedRows > 0 {
		h.Created(c, result)
		return
	}
	h.Success(c, result)
}
