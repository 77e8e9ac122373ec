// Package resilience guards optional infrastructure with circuit breakers so
// that an unhealthy cache degrades to the ledger instead of failing calls.
package resilience

import (
	"context"
	"errors"
	"time"

	"paygate/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig configures the circuit breaker of a guarded cache.
type BreakerConfig struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts are cleared.
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// ConsecutiveFailures that trip the breaker.
	ConsecutiveFailures uint32
	// CallTimeout bounds every cache call. Zero means no bound.
	CallTimeout time.Duration
}

// DefaultBreakerConfig returns the settings used for the settlement cache.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		OpenTimeout:         10 * time.Second,
		ConsecutiveFailures: 5,
		CallTimeout:         250 * time.Millisecond,
	}
}

// Cache wraps a ports.IdempotencyCache with a circuit breaker and a call
// timeout.
type Cache struct {
	next    ports.IdempotencyCache
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	log     zerolog.Logger
}

// NewCache guards next with a circuit breaker.
func NewCache(next ports.IdempotencyCache, cfg BreakerConfig, log zerolog.Logger) *Cache {
	c := &Cache{
		next:    next,
		timeout: cfg.CallTimeout,
		log:     log.With().Str("component", "resilience").Str("breaker", cfg.Name).Logger(),
	}

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return c
}

// State returns the breaker state.
func (c *Cache) State() gobreaker.State {
	return c.cb.State()
}

// Get reads through the breaker.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	v, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.Get(ctx, key)
	})
	if err != nil {
		return nil, c.translate(err)
	}
	b, _ := v.([]byte)
	return b, nil
}

// Set writes through the breaker.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.next.Set(ctx, key, value, ttl)
	})
	return c.translate(err)
}

func (c *Cache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Cache) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}
