package models

import (
	"testing"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDList(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	t.Run("nil encodes as an empty array", func(t *testing.T) {
		v, err := UUIDList(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})

	t.Run("scans text and bytes", func(t *testing.T) {
		raw := `["` + a.String() + `","` + b.String() + `"]`

		var fromString UUIDList
		require.NoError(t, fromString.Scan(raw))
		assert.Equal(t, UUIDList{a, b}, fromString)

		var fromBytes UUIDList
		require.NoError(t, fromBytes.Scan([]byte(raw)))
		assert.Equal(t, UUIDList{a, b}, fromBytes)
	})

	t.Run("NULL scans as empty", func(t *testing.T) {
		var l UUIDList
		require.NoError(t, l.Scan(nil))
		assert.NotNil(t, l)
		assert.Empty(t, l)
	})

	t.Run("rejects other types and bad json", func(t *testing.T) {
		var l UUIDList
		assert.Error(t, l.Scan(42))
		assert.Error(t, l.Scan(`["not-a-uuid"]`))
	})
}

func TestConsignmentPaymentModel_IdempotencyKey(t *testing.T) {
	newPayment := func(key string) *consignment.ConsignmentPayment {
		p, err := consignment.NewConsignmentPayment(consignment.NewPaymentParams{
			TenantID:       uuid.New(),
			SupplierID:     uuid.New(),
			PaymentAmount:  decimal.NewFromInt(10),
			PaymentMethod:  "cash",
			RecordedBy:     uuid.New(),
			IdempotencyKey: key,
		})
		require.NoError(t, err)
		return p
	}

	t.Run("empty key is stored as NULL", func(t *testing.T) {
		m := ConsignmentPaymentModelFromDomain(newPayment(""))
		assert.Nil(t, m.IdempotencyKey)
		assert.Equal(t, "", m.ToDomain().IdempotencyKey)
	})

	t.Run("key survives the mapping", func(t *testing.T) {
		m := ConsignmentPaymentModelFromDomain(newPayment("req-7"))
		require.NotNil(t, m.IdempotencyKey)
		assert.Equal(t, "req-7", *m.IdempotencyKey)
		assert.Equal(t, "req-7", m.ToDomain().IdempotencyKey)
	})

	t.Run("allocation lines get ids and the payment id", func(t *testing.T) {
		p := newPayment("")
		p.Allocations = []consignment.PaymentAllocation{{BatchID: uuid.New(), Sequence: 1, Amount: decimal.NewFromInt(10)}}

		m := ConsignmentPaymentModelFromDomain(p)
		require.Len(t, m.Allocations, 1)
		assert.NotEqual(t, uuid.Nil, m.Allocations[0].ID)
		assert.Equal(t, p.ID, m.Allocations[0].PaymentID)
	})
}

func TestConsignmentBatchModel_MutableColumns(t *testing.T) {
	b, err := consignment.NewConsignmentBatch(consignment.NewBatchParams{
		TenantID:        uuid.New(),
		SupplierID:      uuid.New(),
		ProductID:       uuid.New(),
		InitialQuantity: decimal.NewFromInt(5),
		Unit:            "kg",
		UnitCost:        decimal.NewFromInt(3),
		CreatedBy:       uuid.New(),
	})
	require.NoError(t, err)

	cols := ConsignmentBatchModelFromDomain(b).MutableColumns()
	for _, immutable := range []string{"id", "tenant_id", "supplier_id", "product_id", "initial_quantity", "unit_cost", "total_value", "batch_number", "created_at"} {
		assert.NotContains(t, cols, immutable)
	}
	assert.Contains(t, cols, "version")
	assert.Contains(t, cols, "status")

	back := ConsignmentBatchModelFromDomain(b).ToDomain()
	assert.Equal(t, b.BatchNumber, back.BatchNumber)
	assert.Equal(t, b.Status, back.Status)
	assert.True(t, b.TotalValue.Equal(back.TotalValue))
}
