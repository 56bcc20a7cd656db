package handler

import (
	"context"
	"net/http"

	consignmentapp "github.com/erp/consignment/internal/application/consignment"
	"github.com/erp/consignment/internal/infrastructure/logger"
	"github.com/erp/consignment/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client's retry key for payments
const IdempotencyKeyHeader = "Idempotency-Key"

// BatchService is the batch lifecycle surface the handler needs
type BatchService interface {
	CreateBatch(ctx context.Context, tenantID uuid.UUID, req consignmentapp.CreateBatchRequest) (*consignmentapp.BatchResponse, error)
	VerifyBatch(ctx context.Context, tenantID, batchID, operatorID uuid.UUID) (*consignmentapp.BatchResponse, error)
	RecordReturn(ctx context.Context, tenantID, batchID uuid.UUID, req consignmentapp.RecordReturnRequest) (*consignmentapp.BatchResponse, error)
	RecordSale(ctx context.Context, tenantID, batchID uuid.UUID, req consignmentapp.RecordSaleRequest) (*consignmentapp.SaleResponse, error)
	GetBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*consignmentapp.BatchResponse, error)
	ListBatches(ctx context.Context, tenantID uuid.UUID, filter consignmentapp.BatchListFilter) ([]consignmentapp.BatchResponse, int64, error)
}

// PaymentService records and reads supplier payments
type PaymentService interface {
	RecordPayment(ctx context.Context, tenantID uuid.UUID, req consignmentapp.RecordPaymentRequest) (*consignmentapp.PaymentResponse, error)
	GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*consignmentapp.PaymentResponse, error)
	ListPayments(ctx context.Context, tenantID uuid.UUID, filter consignmentapp.PaymentListFilter) ([]consignmentapp.PaymentResponse, int64, error)
}

// SummaryService produces the supplier roll-ups
type SummaryService interface {
	ListSupplierSummaries(ctx context.Context, tenantID uuid.UUID, filter consignmentapp.SummaryFilter) (*consignmentapp.SupplierSummaryListResponse, error)
	RebuildSupplierBalances(ctx context.Context, tenantID uuid.UUID) (*consignmentapp.RebuildResponse, error)
}

// ConsignmentHandler handles consignment batch, payment and summary endpoints
type ConsignmentHandler struct {
	BaseHandler
	batches   BatchService
	payments  PaymentService
	summaries SummaryService
}

// NewConsignmentHandler creates a new ConsignmentHandler
func NewConsignmentHandler(batches BatchService, payments PaymentService, summaries SummaryService) *ConsignmentHandler {
	return &ConsignmentHandler{
		batches:   batches,
		payments:  payments,
		summaries: summaries,
	}
}

// identity resolves tenant and operator, answering 401 when either is missing
func (h *ConsignmentHandler) identity(c *gin.Context) (tenantID, operatorID uuid.UUID, ok bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	operatorID, err = getOperatorID(c)
	if err != nil {
		h.HandleError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, operatorID, true
}

// CreateBatch godoc
// POST /consignment/batches
func (h *ConsignmentHandler) CreateBatch(c *gin.Context) {
	tenantID, operatorID, ok := h.identity(c)
	if !ok {
		return
	}
	var body CreateBatchBody
	if !h.BindJSON(c, &body) {
		return
	}

	batch, err := h.batches.CreateBatch(c.Request.Context(), tenantID, body.toRequest(operatorID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Consignment batch created",
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber))
	h.Created(c, batch)
}

// ListBatches godoc
// GET /consignment/batches
func (h *ConsignmentHandler) ListBatches(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var query BatchListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.toFilter()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	batches, total, err := h.batches.ListBatches(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, batches, total, filter.Page, filter.PageSize)
}

// GetBatch godoc
// GET /consignment/batches/:id
func (h *ConsignmentHandler) GetBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	batchID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}

	batch, err := h.batches.GetBatch(c.Request.Context(), tenantID, batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// VerifyBatch godoc
// POST /consignment/batches/:id/verify
func (h *ConsignmentHandler) VerifyBatch(c *gin.Context) {
	tenantID, operatorID, ok := h.identity(c)
	if !ok {
		return
	}
	batchID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}

	batch, err := h.batches.VerifyBatch(c.Request.Context(), tenantID, batchID, operatorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// RecordReturn godoc
// POST /consignment/batches/:id/returns
func (h *ConsignmentHandler) RecordReturn(c *gin.Context) {
	tenantID, operatorID, ok := h.identity(c)
	if !ok {
		return
	}
	batchID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	var body RecordReturnBody
	if !h.BindJSON(c, &body) {
		return
	}

	batch, err := h.batches.RecordReturn(c.Request.Context(), tenantID, batchID, consignmentapp.RecordReturnRequest{
		ReturnQuantity: body.ReturnQuantity,
		Notes:          body.Notes,
		OperatorID:     operatorID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// RecordSale godoc
// POST /consignment/batches/:id/sales
func (h *ConsignmentHandler) RecordSale(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	batchID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}
	var body RecordSaleBody
	if !h.BindJSON(c, &body) {
		return
	}

	sale, err := h.batches.RecordSale(c.Request.Context(), tenantID, batchID, consignmentapp.RecordSaleRequest{
		Quantity:      body.Quantity,
		SaleReference: body.SaleReference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sale)
}

// RecordPayment godoc
// POST /consignment/payments
//
// A replayed idempotency key answers 200 with the stored payment; a new
// payment answers 201.
func (h *ConsignmentHandler) RecordPayment(c *gin.Context) {
	tenantID, operatorID, ok := h.identity(c)
	if !ok {
		return
	}
	var body RecordPaymentBody
	if !h.BindJSON(c, &body) {
		return
	}

	req := body.toRequest(operatorID, c.GetHeader(IdempotencyKeyHeader))
	payment, err := h.payments.RecordPayment(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if payment.Replayed {
		h.Success(c, payment)
		return
	}
	logger.L(c.Request.Context()).Info("Consignment payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("supplier_id", payment.SupplierID.String()),
		zap.String("amount", payment.PaymentAmount.String()),
		zap.String("unapplied", payment.UnappliedAmount.String()))
	h.Created(c, payment)
}

// ListPayments godoc
// GET /consignment/payments
func (h *ConsignmentHandler) ListPayments(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var query PaymentListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.toFilter()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payments, total, err := h.payments.ListPayments(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, payments, total, filter.Page, filter.PageSize)
}

// GetPayment godoc
// GET /consignment/payments/:id
func (h *ConsignmentHandler) GetPayment(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	paymentID, ok := h.PathUUID(c, "id")
	if !ok {
		return
	}

	payment, err := h.payments.GetPayment(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// ListSupplierSummaries godoc
// GET /consignment/summaries
func (h *ConsignmentHandler) ListSupplierSummaries(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var query SummaryQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.toFilter()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	summaries, err := h.summaries.ListSupplierSummaries(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summaries)
}

// RebuildSupplierBalances godoc
// POST /consignment/summaries/rebuild
func (h *ConsignmentHandler) RebuildSupplierBalances(c *gin.Context) {
	tenantID, operatorID, ok := h.identity(c)
	if !ok {
		return
	}

	result, err := h.summaries.RebuildSupplierBalances(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Corrected > 0 {
		logger.L(c.Request.Context()).Warn("Supplier balances drifted and were rebuilt",
			zap.String("operator_id", operatorID.String()),
			zap.Int("suppliers", result.Suppliers),
			zap.Int("corrected", result.Corrected))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(result))
}
