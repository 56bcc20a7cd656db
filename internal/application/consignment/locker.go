package consignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SupplierLocker serialises payments per supplier across processes.
// Acquire returns shared.ErrConcurrencyConflict when the lock is held elsewhere.
type SupplierLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

func paymentLockKey(tenantID, supplierID uuid.UUID) string {
	return fmt.Sprintf("consignment:payment:%s:%s", tenantID, supplierID)
}

func saleIdempotencyKey(tenantID uuid.UUID, reference string) string {
	return fmt.Sprintf("consignment:sale:%s:%s", tenantID, reference)
}
