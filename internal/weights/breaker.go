package weights

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSource wraps a Source in a circuit breaker so a dead backend
// fails fast instead of stalling every refresh tick on timeouts.
type BreakerSource struct {
	inner   Source
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerSource wraps source with the standard breaker settings: trip
// after 3 consecutive failures, probe again after 30 seconds.
func NewBreakerSource(name string, source Source) *BreakerSource {
	return &BreakerSource{
		inner: source,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Fetch runs the inner fetch through the breaker.
func (b *BreakerSource) Fetch(ctx context.Context) (*Snapshot, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("weight source %s: %w", b.breaker.Name(), err)
	}
	snap, _ := out.(*Snapshot)
	return snap, nil
}
