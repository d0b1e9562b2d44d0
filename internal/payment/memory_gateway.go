package payment

import (
	"context"
	"sync"

	"github.com/avendale/tutorhive/internal/idgen"
)

// MemoryGateway is an in-memory gateway for demo/development and tests.
// Order outcomes are scripted with SetOrderState; until then every created
// order reports pending.
type MemoryGateway struct {
	mu        sync.Mutex
	states    map[string]OrderState
	checkouts map[string]*Checkout

	checkoutErr error
	statusErr   error
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		states:    make(map[string]OrderState),
		checkouts: make(map[string]*Checkout),
	}
}

func (m *MemoryGateway) CreateCheckout(_ context.Context, p CheckoutParams) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.checkoutErr != nil {
		return nil, m.checkoutErr
	}

	co := &Checkout{
		SessionID: "sess_" + idgen.Hex(8),
		URL:       "https://pay.example/checkout/" + p.OrderID,
	}
	m.checkouts[p.OrderID] = co
	if _, ok := m.states[p.OrderID]; !ok {
		m.states[p.OrderID] = StatePending
	}
	cp := *co
	return &cp, nil
}

func (m *MemoryGateway) OrderStatus(_ context.Context, orderID string) (OrderState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusErr != nil {
		return "", m.statusErr
	}
	if st, ok := m.states[orderID]; ok {
		return st, nil
	}
	return StatePending, nil
}

// SetOrderState scripts the gateway's verdict for an order.
func (m *MemoryGateway) SetOrderState(orderID string, st OrderState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[orderID] = st
}

// FailCheckout makes subsequent CreateCheckout calls return err (nil resets).
func (m *MemoryGateway) FailCheckout(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkoutErr = err
}

// FailStatus makes subsequent OrderStatus calls return err (nil resets).
func (m *MemoryGateway) FailStatus(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusErr = err
}

// Session returns the checkout created for an order, if any.
func (m *MemoryGateway) Session(orderID string) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	co, ok := m.checkouts[orderID]
	if !ok {
		return nil, ErrNoSession
	}
	cp := *co
	return &cp, nil
}

var _ Gateway = (*MemoryGateway)(nil)
