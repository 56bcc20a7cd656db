package handler

import (
	"context"
	"fmt"
	"net/http"

	consignmentapp "github.com/erp/consignment/internal/application/consignment"
	"github.com/erp/consignment/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatementService renders supplier statements
type StatementService interface {
	RenderSupplierStatement(ctx context.Context, tenantID uuid.UUID, req consignmentapp.StatementRequest) (*consignmentapp.RenderedStatement, error)
	ExportSupplierStatement(ctx context.Context, tenantID uuid.UUID, req consignmentapp.StatementRequest) (*consignmentapp.StatementExportResponse, error)
}

// StatementHandler serves supplier statement downloads and exports
type StatementHandler struct {
	BaseHandler
	statements StatementService
}

// NewStatementHandler creates a new StatementHandler
func NewStatementHandler(statements StatementService) *StatementHandler {
	return &StatementHandler{statements: statements}
}

// StatementQuery is the period of a statement request
type StatementQuery struct {
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
}

func (q StatementQuery) toRequest(supplierID uuid.UUID) (consignmentapp.StatementRequest, error) {
	from, to, err := parseDateRange(q.DateFrom, q.DateTo)
	if err != nil {
		return consignmentapp.StatementRequest{}, err
	}
	return consignmentapp.StatementRequest{SupplierID: supplierID, DateFrom: from, DateTo: to}, nil
}

func (h *StatementHandler) statementRequest(c *gin.Context) (uuid.UUID, consignmentapp.StatementRequest, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return uuid.Nil, consignmentapp.StatementRequest{}, false
	}
	supplierID, ok := h.PathUUID(c, "supplier_id")
	if !ok {
		return uuid.Nil, consignmentapp.StatementRequest{}, false
	}
	var query StatementQuery
	if !h.BindQuery(c, &query) {
		return uuid.Nil, consignmentapp.StatementRequest{}, false
	}
	req, err := query.toRequest(supplierID)
	if err != nil {
		h.BadRequest(c, err.Error())
		return uuid.Nil, consignmentapp.StatementRequest{}, false
	}
	return tenantID, req, true
}

// DownloadStatement godoc
// GET /consignment/suppliers/:supplier_id/statement
func (h *StatementHandler) DownloadStatement(c *gin.Context) {
	tenantID, req, ok := h.statementRequest(c)
	if !ok {
		return
	}

	doc, err := h.statements.RenderSupplierStatement(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

// ExportStatement godoc
// POST /consignment/suppliers/:supplier_id/statement/exports
func (h *StatementHandler) ExportStatement(c *gin.Context) {
	tenantID, req, ok := h.statementRequest(c)
	if !ok {
		return
	}

	out, err := h.statements.ExportSupplierStatement(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Supplier statement exported",
		zap.String("supplier_id", out.SupplierID.String()),
		zap.String("storage_key", out.StorageKey))
	h.Created(c, out)
}
