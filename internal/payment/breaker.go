package payment

import (
	"context"
	"errors"
	"time"

	"github.com/avendale/tutorhive/internal/circuitbreaker"
)

// BreakerGateway wraps a Gateway with a circuit breaker so a struggling
// provider is not hammered with requests. Only availability failures count
// against the circuit; gateway-reported declines are normal responses.
type BreakerGateway struct {
	inner   Gateway
	breaker *circuitbreaker.Breaker
}

// NewBreakerGateway guards gw with a breaker that opens after threshold
// consecutive unavailability errors and probes again after openFor.
func NewBreakerGateway(gw Gateway, threshold int, openFor time.Duration) *BreakerGateway {
	return &BreakerGateway{
		inner:   gw,
		breaker: circuitbreaker.New("payment_gateway", threshold, openFor),
	}
}

func (g *BreakerGateway) CreateCheckout(ctx context.Context, p CheckoutParams) (*Checkout, error) {
	if !g.breaker.Allow() {
		return nil, ErrUnavailable
	}
	checkout, err := g.inner.CreateCheckout(ctx, p)
	g.record(err)
	return checkout, err
}

func (g *BreakerGateway) OrderStatus(ctx context.Context, orderID string) (OrderState, error) {
	if !g.breaker.Allow() {
		return StatePending, ErrUnavailable
	}
	state, err := g.inner.OrderStatus(ctx, orderID)
	g.record(err)
	return state, err
}

// State exposes the circuit state for health reporting.
func (g *BreakerGateway) State() circuitbreaker.State {
	return g.breaker.State()
}

func (g *BreakerGateway) record(err error) {
	if errors.Is(err, ErrUnavailable) {
		g.breaker.RecordFailure()
		return
	}
	g.breaker.RecordSuccess()
}
