package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/erp/consignment/internal/domain/shared"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for a circuit breaker
type BreakerConfig struct {
	Name string
	// Code is the upstream error code returned when the call fails or the breaker is open
	Code        string
	MaxFailures uint32        // consecutive failures that open the breaker
	Timeout     time.Duration // open -> half-open delay
	MaxRequests uint32        // probes allowed while half-open
	Interval    time.Duration // closed-state count reset period, 0 keeps counts
}

// StateListener is told about every breaker state transition
type StateListener func(name string, from, to gobreaker.State)

// Breaker wraps gobreaker with logging and upstream error mapping
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	code   string
	logger *zap.Logger
}

// NewBreaker creates a breaker. listener may be nil.
func NewBreaker(cfg BreakerConfig, logger *zap.Logger, listener StateListener) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	b := &Breaker{name: cfg.Name, code: cfg.Code, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if listener != nil {
				listener(name, from, to)
			}
		},
	})
	return b
}

// isSuccessful decides what counts against the breaker. Business answers such
// as "not found" or a validation failure mean the collaborator is healthy, and
// a caller giving up is not the collaborator's fault either.
func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Kind != shared.KindUpstream
	}
	return false
}

// Do runs fn through the breaker. Infrastructure failures and rejections by an
// open breaker come back as upstream DomainErrors carrying the breaker's code.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return b.mapError(err)
}

func (b *Breaker) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn("Circuit breaker rejected call", zap.String("name", b.name), zap.Error(err))
		return shared.NewUpstreamError(b.code, b.name+" unavailable (circuit open)", err)
	}
	var de *shared.DomainError
	if errors.As(err, &de) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	b.logger.Error("Upstream call failed", zap.String("name", b.name), zap.Error(err))
	return shared.NewUpstreamError(b.code, b.name+" unavailable", err)
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name returns the circuit breaker name
func (b *Breaker) Name() string {
	return b.name
}

// Counts returns the current counts
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}
