package consignment

import (
	"context"
	"errors"
	"time"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/domain/shared"
	"go.uber.org/zap"
)

// Options tunes the consignment services
type Options struct {
	OverpaymentPolicy consignment.OverpaymentPolicy
	// MaxRetries is how many times a write is retried after a version conflict
	MaxRetries     int
	RetryBackoff   time.Duration
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
	// OnConflictRetry, when set, is called before every retry
	OnConflictRetry func(ctx context.Context, operation string)
}

// DefaultOptions returns the defaults used when nothing is configured
func DefaultOptions() Options {
	return Options{
		OverpaymentPolicy: consignment.OverpaymentDiscard,
		MaxRetries:        3,
		RetryBackoff:      50 * time.Millisecond,
		LockTTL:           10 * time.Second,
		IdempotencyTTL:    24 * time.Hour,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if !o.OverpaymentPolicy.IsValid() {
		o.OverpaymentPolicy = d.OverpaymentPolicy
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	if o.LockTTL <= 0 {
		o.LockTTL = d.LockTTL
	}
	if o.IdempotencyTTL <= 0 {
		o.IdempotencyTTL = d.IdempotencyTTL
	}
	return o
}

// retryOnConflict runs fn until it succeeds, fails with something other than
// a concurrency conflict, or runs out of attempts. Each attempt must reload
// whatever it mutates.
func retryOnConflict(ctx context.Context, opts Options, log *zap.Logger, operation string, fn func() error) error {
	attempts := opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		if attempt == attempts {
			break
		}
		log.Warn("concurrency conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
		)
		if opts.OnConflictRetry != nil {
			opts.OnConflictRetry(ctx, operation)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.RetryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

// publishEvents hands events to the publisher after commit. Failures are
// logged by the bus and never fail the operation.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	_ = publisher.Publish(ctx, events...)
}

// collectEvents drains pending events from the given aggregates
func collectEvents(roots ...shared.AggregateRoot) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, r := range roots {
		events = append(events, r.GetDomainEvents()...)
		r.ClearDomainEvents()
	}
	return events
}
