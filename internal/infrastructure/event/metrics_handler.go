package event

import (
	"context"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"github.com/erp/consignment/internal/infrastructure/telemetry"
)

// MetricsHandler turns consignment domain events into business metrics
type MetricsHandler struct {
	metrics *telemetry.ConsignmentMetrics
}

// NewMetricsHandler creates a handler feeding m
func NewMetricsHandler(m *telemetry.ConsignmentMetrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

func (h *MetricsHandler) EventTypes() []string {
	return []string{
		consignment.EventTypeBatchCreated,
		consignment.EventTypeBatchVerified,
		consignment.EventTypeBatchReturnRecorded,
		consignment.EventTypeBatchSaleRecorded,
		consignment.EventTypeBatchPaid,
		consignment.EventTypePaymentRecorded,
	}
}

func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	tenantID := event.TenantID()
	switch e := event.(type) {
	case *consignment.BatchCreatedEvent:
		h.metrics.RecordBatchCreated(ctx, tenantID)
	case *consignment.BatchVerifiedEvent:
		h.metrics.RecordBatchVerified(ctx, tenantID)
	case *consignment.BatchReturnRecordedEvent:
		h.metrics.RecordReturn(ctx, tenantID, e.Quantity, string(e.Status))
	case *consignment.BatchSaleRecordedEvent:
		h.metrics.RecordSale(ctx, tenantID, e.Quantity)
	case *consignment.BatchPaidEvent:
		h.metrics.RecordBatchPaid(ctx, tenantID)
	case *consignment.PaymentRecordedEvent:
		h.metrics.RecordPayment(ctx, tenantID, string(e.Policy),
			e.PaymentAmount, e.AppliedAmount, e.UnappliedAmount, e.BatchCount)
	}
	return nil
}

var _ shared.EventHandler = (*MetricsHandler)(nil)
