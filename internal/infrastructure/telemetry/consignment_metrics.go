package telemetry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("NewConsignmentMetrics: meter cannot be nil")

// ConsignmentMetrics counts consignment business activity: batches entering
// and leaving stock, and how payments were spread over them.
type ConsignmentMetrics struct {
	logger *zap.Logger

	batchesCreated    *Counter
	batchesVerified   *Counter
	batchesSettled    *Counter
	unitsReturned     *FloatCounter
	unitsSold         *FloatCounter
	paymentsRecorded  *Counter
	amountPaid        *FloatCounter
	amountApplied     *FloatCounter
	amountUnapplied   *FloatCounter
	batchesPerPayment *Histogram
	conflictRetries   *Counter
}

// NewConsignmentMetrics registers the consignment instruments on meter.
func NewConsignmentMetrics(meter metric.Meter, logger *zap.Logger) (*ConsignmentMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &ConsignmentMetrics{logger: logger}

	var err error
	counters := []struct {
		dst        **Counter
		name, desc string
		unit       string
	}{
		{&m.batchesCreated, "consignment_batches_created_total", "Consignment batches registered", "{batches}"},
		{&m.batchesVerified, "consignment_batches_verified_total", "Consignment batches verified into stock", "{batches}"},
		{&m.batchesSettled, "consignment_batches_paid_total", "Consignment batches fully sold and settled", "{batches}"},
		{&m.paymentsRecorded, "consignment_payments_total", "Supplier payments recorded", "{payments}"},
		{&m.conflictRetries, "consignment_conflict_retries_total", "Writes retried after a version conflict", "{retries}"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	floats := []struct {
		dst        **FloatCounter
		name, desc string
		unit       string
	}{
		{&m.unitsReturned, "consignment_units_returned_total", "Units handed back to suppliers", "{units}"},
		{&m.unitsSold, "consignment_units_sold_total", "Consigned units sold", "{units}"},
		{&m.amountPaid, "consignment_payment_amount_total", "Money paid to suppliers", "{currency}"},
		{&m.amountApplied, "consignment_payment_applied_total", "Payment money allocated to batches", "{currency}"},
		{&m.amountUnapplied, "consignment_payment_unapplied_total", "Payment money no batch absorbed", "{currency}"},
	}
	for _, f := range floats {
		if *f.dst, err = NewFloatCounter(meter, f.name, f.desc, f.unit); err != nil {
			return nil, err
		}
	}

	m.batchesPerPayment, err = NewHistogram(meter, HistogramOpts{
		Name:        "consignment_payment_batches",
		Description: "Batches receiving money per payment",
		Unit:        "{batches}",
		Boundaries:  AllocationBatchBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ConsignmentMetrics) RecordBatchCreated(ctx context.Context, tenantID uuid.UUID) {
	m.batchesCreated.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

func (m *ConsignmentMetrics) RecordBatchVerified(ctx context.Context, tenantID uuid.UUID) {
	m.batchesVerified.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

func (m *ConsignmentMetrics) RecordBatchPaid(ctx context.Context, tenantID uuid.UUID) {
	m.batchesSettled.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// RecordReturn counts returned units; status is the batch status afterwards
func (m *ConsignmentMetrics) RecordReturn(ctx context.Context, tenantID uuid.UUID, qty decimal.Decimal, status string) {
	m.unitsReturned.Add(ctx, qty.InexactFloat64(),
		AttrTenantID.String(tenantID.String()),
		AttrBatchStatus.String(status),
	)
}

func (m *ConsignmentMetrics) RecordSale(ctx context.Context, tenantID uuid.UUID, qty decimal.Decimal) {
	m.unitsSold.Add(ctx, qty.InexactFloat64(), AttrTenantID.String(tenantID.String()))
}

// RecordPayment records one allocated payment
func (m *ConsignmentMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, policy string, amount, applied, unapplied decimal.Decimal, batches int) {
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String()), AttrPolicy.String(policy)}
	m.paymentsRecorded.Inc(ctx, attrs...)
	m.amountPaid.Add(ctx, amount.InexactFloat64(), attrs...)
	m.amountApplied.Add(ctx, applied.InexactFloat64(), attrs...)
	m.amountUnapplied.Add(ctx, unapplied.InexactFloat64(), attrs...)
	m.batchesPerPayment.Record(ctx, float64(batches), attrs...)
}

// RecordConflictRetry counts one retried write
func (m *ConsignmentMetrics) RecordConflictRetry(ctx context.Context, operation string) {
	m.conflictRetries.Inc(ctx, AttrOperation.String(operation))
}
