package tenant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avendale/tutorhive/internal/pagination"
)

// MemoryStore is an in-memory tenant store for demo/development.
type MemoryStore struct {
	mu           sync.RWMutex
	institutions map[string]*Institution       // by ID
	admins       map[string]*AdminProfile      // by ID
	adminsByInst map[string]string             // institutionID → admin ID
	subs         map[string]*SubscriptionRecord // by ID
	subsByInst   map[string]string             // institutionID → subscription ID
	orders       map[string]*PaymentOrder      // by order ID
}

// NewMemoryStore creates a new in-memory tenant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		institutions: make(map[string]*Institution),
		admins:       make(map[string]*AdminProfile),
		adminsByInst: make(map[string]string),
		subs:         make(map[string]*SubscriptionRecord),
		subsByInst:   make(map[string]string),
		orders:       make(map[string]*PaymentOrder),
	}
}

func (m *MemoryStore) CreateInstitution(_ context.Context, inst *Institution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *inst
	m.institutions[inst.ID] = &cp
	return nil
}

func (m *MemoryStore) GetInstitution(_ context.Context, id string) (*Institution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.institutions[id]
	if !ok {
		return nil, ErrInstitutionNotFound
	}
	cp := *inst
	return &cp, nil
}

func (m *MemoryStore) DeleteInstitution(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.institutions[id]; !ok {
		return ErrInstitutionNotFound
	}
	delete(m.institutions, id)
	return nil
}

func (m *MemoryStore) ListInstitutions(_ context.Context, limit int, after *pagination.Cursor) ([]*Institution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Institution, 0, len(m.institutions))
	for _, inst := range m.institutions {
		cp := *inst
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	out := make([]*Institution, 0, limit)
	for _, inst := range all {
		if after != nil {
			// Skip everything at or before the cursor position.
			if inst.CreatedAt.After(after.CreatedAt) {
				continue
			}
			if inst.CreatedAt.Equal(after.CreatedAt) && inst.ID >= after.ID {
				continue
			}
		}
		out = append(out, inst)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertAdminProfile(_ context.Context, p *AdminProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Upsert keyed by institution: one admin profile per institution at
	// creation time.
	if existingID, ok := m.adminsByInst[p.InstitutionID]; ok {
		delete(m.admins, existingID)
	}
	cp := *p
	m.admins[p.ID] = &cp
	m.adminsByInst[p.InstitutionID] = p.ID
	return nil
}

func (m *MemoryStore) GetAdminProfile(_ context.Context, institutionID string) (*AdminProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.adminsByInst[institutionID]
	if !ok {
		return nil, ErrAdminNotFound
	}
	cp := *m.admins[id]
	return &cp, nil
}

func (m *MemoryStore) DeleteAdminProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.admins[id]
	if !ok {
		return ErrAdminNotFound
	}
	delete(m.admins, id)
	delete(m.adminsByInst, p.InstitutionID)
	return nil
}

func (m *MemoryStore) CreateSubscription(_ context.Context, sub *SubscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subsByInst[sub.InstitutionID]; ok {
		return ErrSubscriptionExists
	}
	cp := *sub
	m.subs[sub.ID] = &cp
	m.subsByInst[sub.InstitutionID] = sub.ID
	return nil
}

func (m *MemoryStore) GetSubscription(_ context.Context, institutionID string) (*SubscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.subsByInst[institutionID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *m.subs[id]
	return &cp, nil
}

func (m *MemoryStore) DeleteSubscription(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	delete(m.subs, id)
	delete(m.subsByInst, sub.InstitutionID)
	return nil
}

func (m *MemoryStore) LinkPaymentOrder(_ context.Context, institutionID, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.institutions[institutionID]
	if !ok {
		return ErrInstitutionNotFound
	}

	if inst.PaymentOrderID == orderID {
		return nil // idempotent re-link
	}
	if existing, ok := m.orders[orderID]; ok && existing.InstitutionID != institutionID {
		return ErrDuplicateOrder
	}
	if inst.PaymentOrderID != "" && !inst.SubscriptionStatus.Terminal() {
		return ErrOrderInFlight
	}

	inst.PaymentOrderID = orderID
	inst.UpdatedAt = time.Now()

	if subID, ok := m.subsByInst[institutionID]; ok {
		m.subs[subID].OrderID = orderID
		m.subs[subID].UpdatedAt = inst.UpdatedAt
	}

	m.orders[orderID] = &PaymentOrder{
		OrderID:       orderID,
		InstitutionID: institutionID,
		CreatedAt:     time.Now(),
	}
	return nil
}

func (m *MemoryStore) SetOrderGatewayRef(_ context.Context, orderID, gatewayRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.GatewayRef = gatewayRef
	return nil
}

func (m *MemoryStore) GetPaymentOrder(_ context.Context, orderID string) (*PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) ActivateSubscription(_ context.Context, institutionID, orderID string, startDate time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.institutions[institutionID]
	if !ok {
		return false, ErrInstitutionNotFound
	}
	if inst.SubscriptionStatus != SubscriptionInactive || inst.PaymentOrderID != orderID {
		return false, nil
	}

	now := time.Now()
	inst.SubscriptionStatus = SubscriptionActive
	inst.UpdatedAt = now

	if subID, ok := m.subsByInst[institutionID]; ok {
		sub := m.subs[subID]
		sub.Status = SubscriptionActive
		sd := startDate
		sub.StartDate = &sd
		sub.UpdatedAt = now
	}
	return true, nil
}

func (m *MemoryStore) CancelSubscription(_ context.Context, institutionID, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.institutions[institutionID]
	if !ok {
		return false, ErrInstitutionNotFound
	}
	if inst.SubscriptionStatus != SubscriptionInactive || inst.PaymentOrderID != orderID {
		return false, nil
	}

	now := time.Now()
	inst.SubscriptionStatus = SubscriptionCancelled
	inst.UpdatedAt = now

	if subID, ok := m.subsByInst[institutionID]; ok {
		m.subs[subID].Status = SubscriptionCancelled
		m.subs[subID].UpdatedAt = now
	}
	return true, nil
}

func (m *MemoryStore) CancelActiveSubscription(_ context.Context, institutionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.institutions[institutionID]
	if !ok {
		return false, ErrInstitutionNotFound
	}
	if inst.SubscriptionStatus != SubscriptionActive {
		return false, nil
	}

	now := time.Now()
	inst.SubscriptionStatus = SubscriptionCancelled
	inst.UpdatedAt = now

	if subID, ok := m.subsByInst[institutionID]; ok {
		m.subs[subID].Status = SubscriptionCancelled
		m.subs[subID].UpdatedAt = now
	}
	return true, nil
}

var _ Store = (*MemoryStore)(nil)
