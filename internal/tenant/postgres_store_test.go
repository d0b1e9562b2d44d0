package tenant

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendale/tutorhive/internal/pagination"
	"github.com/avendale/tutorhive/internal/testutil"
)

func TestPostgresStoreInstitutionRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	inst := newTestInstitution("pg-inst1")
	inst.Phone = "+1 555 0100"
	inst.Address = "12 Elm Street"
	require.NoError(t, store.CreateInstitution(ctx, inst))

	got, err := store.GetInstitution(ctx, "pg-inst1")
	require.NoError(t, err)
	assert.Equal(t, inst.Name, got.Name)
	assert.Equal(t, inst.ContactEmail, got.ContactEmail)
	assert.Equal(t, SubscriptionInactive, got.SubscriptionStatus)
	assert.Empty(t, got.PaymentOrderID)

	require.NoError(t, store.DeleteInstitution(ctx, "pg-inst1"))
	_, err = store.GetInstitution(ctx, "pg-inst1")
	assert.ErrorIs(t, err, ErrInstitutionNotFound)
}

func TestPostgresStoreSubscriptionUnique(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.CreateInstitution(ctx, newTestInstitution("pg-inst1")))
	require.NoError(t, store.CreateSubscription(ctx, newTestSubscription("pg-sub1", "pg-inst1")))

	err := store.CreateSubscription(ctx, newTestSubscription("pg-sub2", "pg-inst1"))
	assert.ErrorIs(t, err, ErrSubscriptionExists)
}

func TestPostgresStoreOrderLinkAndActivate(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.CreateInstitution(ctx, newTestInstitution("pg-inst1")))
	require.NoError(t, store.CreateSubscription(ctx, newTestSubscription("pg-sub1", "pg-inst1")))

	require.NoError(t, store.LinkPaymentOrder(ctx, "pg-inst1", "PG_ORDER_1"))
	require.NoError(t, store.LinkPaymentOrder(ctx, "pg-inst1", "PG_ORDER_1")) // idempotent

	err := store.LinkPaymentOrder(ctx, "pg-inst1", "PG_ORDER_2")
	assert.ErrorIs(t, err, ErrOrderInFlight)

	require.NoError(t, store.CreateInstitution(ctx, newTestInstitution("pg-inst2")))
	err = store.LinkPaymentOrder(ctx, "pg-inst2", "PG_ORDER_1")
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	order, err := store.GetPaymentOrder(ctx, "PG_ORDER_1")
	require.NoError(t, err)
	assert.Equal(t, "pg-inst1", order.InstitutionID)

	require.NoError(t, store.SetOrderGatewayRef(ctx, "PG_ORDER_1", "cs_test_123"))
	order, err = store.GetPaymentOrder(ctx, "PG_ORDER_1")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", order.GatewayRef)

	start := time.Now()
	updated, err := store.ActivateSubscription(ctx, "pg-inst1", "PG_ORDER_1", start)
	require.NoError(t, err)
	assert.True(t, updated)

	inst, err := store.GetInstitution(ctx, "pg-inst1")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionActive, inst.SubscriptionStatus)

	sub, err := store.GetSubscription(ctx, "pg-inst1")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionActive, sub.Status)
	require.NotNil(t, sub.StartDate)
	assert.WithinDuration(t, start, *sub.StartDate, 2*time.Second)

	// Replay lands on an unmatched guard and changes nothing.
	updated, err = store.ActivateSubscription(ctx, "pg-inst1", "PG_ORDER_1", time.Now())
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestPostgresStoreCancelPaths(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	require.NoError(t, store.CreateInstitution(ctx, newTestInstitution("pg-inst1")))
	require.NoError(t, store.CreateSubscription(ctx, newTestSubscription("pg-sub1", "pg-inst1")))
	require.NoError(t, store.LinkPaymentOrder(ctx, "pg-inst1", "PG_ORDER_1"))

	updated, err := store.CancelSubscription(ctx, "pg-inst1", "PG_ORDER_1")
	require.NoError(t, err)
	assert.True(t, updated)

	inst, err := store.GetInstitution(ctx, "pg-inst1")
	require.NoError(t, err)
	assert.Equal(t, SubscriptionCancelled, inst.SubscriptionStatus)
	assert.Equal(t, "PG_ORDER_1", inst.PaymentOrderID)

	// Terminal state frees the order slot for a retry.
	require.NoError(t, store.LinkPaymentOrder(ctx, "pg-inst1", "PG_ORDER_2"))

	updated, err = store.ActivateSubscription(ctx, "pg-inst1", "PG_ORDER_2", time.Now())
	require.NoError(t, err)
	assert.False(t, updated) // cancelled is terminal

	_, err = store.CancelActiveSubscription(ctx, "pg-missing")
	assert.ErrorIs(t, err, ErrInstitutionNotFound)
}

func TestPostgresStoreListInstitutions(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		inst := newTestInstitution(fmt.Sprintf("pg-inst%d", i))
		inst.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		inst.UpdatedAt = inst.CreatedAt
		require.NoError(t, store.CreateInstitution(ctx, inst))
	}

	first, err := store.ListInstitutions(ctx, 3, nil)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "pg-inst4", first[0].ID)
	assert.Equal(t, "pg-inst2", first[2].ID)

	after := &pagination.Cursor{CreatedAt: first[2].CreatedAt, ID: first[2].ID}
	rest, err := store.ListInstitutions(ctx, 3, after)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "pg-inst1", rest[0].ID)
	assert.Equal(t, "pg-inst0", rest[1].ID)
}
