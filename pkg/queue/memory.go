package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

type delivery struct {
	unit     domain.UnitOfWork
	attempts int
}

// MemoryTransport is the in-process transport used for single-binary
// deployments and tests. It mimics the at-least-once semantics of a real
// queue: a failed handler gets the unit redelivered up to MaxDeliveries
// times before the unit is dropped.
type MemoryTransport struct {
	units chan delivery
	cfg   MemoryConfig
}

type MemoryConfig struct {
	BufferSize    int
	MaxDeliveries int
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		BufferSize:    1024,
		MaxDeliveries: 3,
	}
}

func NewMemoryTransport(cfg MemoryConfig) *MemoryTransport {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultMemoryConfig().BufferSize
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = DefaultMemoryConfig().MaxDeliveries
	}
	return &MemoryTransport{
		units: make(chan delivery, cfg.BufferSize),
		cfg:   cfg,
	}
}

// Publish never blocks: a full buffer is a hard error the dispatcher
// turns into a failed assessment.
func (t *MemoryTransport) Publish(_ context.Context, unit domain.UnitOfWork) error {
	select {
	case t.units <- delivery{unit: unit, attempts: 0}:
		return nil
	default:
		return fmt.Errorf("transport buffer full, unit for subscription %s rejected", unit.SubscriptionID)
	}
}

func (t *MemoryTransport) Consume(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.consumeLoop(ctx, handler)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (t *MemoryTransport) consumeLoop(ctx context.Context, handler Handler) {
	logger := zerolog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-t.units:
			d.attempts++
			if err := handler(ctx, d.unit); err != nil {
				if d.attempts >= t.cfg.MaxDeliveries {
					logger.Error().
						Err(err).
						Str("assessment_id", d.unit.AssessmentID).
						Str("subscription_id", d.unit.SubscriptionID).
						Int("attempts", d.attempts).
						Msg("unit exhausted deliveries, dropping")
					continue
				}
				logger.Warn().
					Err(err).
					Str("assessment_id", d.unit.AssessmentID).
					Str("subscription_id", d.unit.SubscriptionID).
					Int("attempts", d.attempts).
					Msg("unit failed, redelivering")
				select {
				case t.units <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
