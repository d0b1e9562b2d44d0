package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(ctx context.Context) Status {
		return Status{Name: "database", Healthy: true}
	})
	r.Register("payment_gateway", func(ctx context.Context) Status {
		return Status{Name: "payment_gateway", Healthy: true, Detail: "circuit closed"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	require.Len(t, statuses, 2)
	// Registration order is preserved.
	assert.Equal(t, "database", statuses[0].Name)
	assert.Equal(t, "payment_gateway", statuses[1].Name)
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(ctx context.Context) Status {
		return Status{Name: "database", Healthy: true}
	})
	r.Register("payment_gateway", func(ctx context.Context) Status {
		return Status{Name: "payment_gateway", Healthy: false, Detail: "circuit open"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, "circuit open", statuses[1].Detail)
}

func TestRegistryReplaceProbe(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(ctx context.Context) Status {
		return Status{Name: "database", Healthy: false, Detail: "down"}
	})
	r.Register("database", func(ctx context.Context) Status {
		return Status{Name: "database", Healthy: true}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	require.Len(t, statuses, 1)
}

func TestRegistryEmpty(t *testing.T) {
	healthy, statuses := NewRegistry().CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestFunc(t *testing.T) {
	ok := Func("database", func(ctx context.Context) error { return nil })
	st := ok(context.Background())
	assert.True(t, st.Healthy)
	assert.Equal(t, "database", st.Name)
	assert.Empty(t, st.Detail)

	bad := Func("database", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	st = bad(context.Background())
	assert.False(t, st.Healthy)
	assert.Equal(t, "connection refused", st.Detail)
}
