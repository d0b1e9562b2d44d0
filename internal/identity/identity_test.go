package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCreateAndDuplicate(t *testing.T) {
	p := NewLocal()
	ctx := context.Background()

	id, err := p.Create(ctx, NewAccount{
		Email:    "Admin@Greenwood.example",
		Password: "correct-horse",
		Name:     "Dana Okafor",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id.ID)
	assert.Equal(t, "admin@greenwood.example", id.Email) // normalised

	// Same email, different case: still taken.
	_, err = p.Create(ctx, NewAccount{
		Email:    "admin@greenwood.example",
		Password: "another-pass",
		Name:     "Someone Else",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	taken, err := p.EmailTaken(ctx, "ADMIN@greenwood.example")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestLocalWeakPassword(t *testing.T) {
	p := NewLocal()
	_, err := p.Create(context.Background(), NewAccount{
		Email:    "a@b.example",
		Password: "short",
		Name:     "A",
	})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestLocalDeleteIdempotent(t *testing.T) {
	p := NewLocal()
	ctx := context.Background()

	id, err := p.Create(ctx, NewAccount{Email: "a@b.example", Password: "long-enough", Name: "A"})
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, id.ID))
	require.NoError(t, p.Delete(ctx, id.ID)) // second delete is a no-op

	taken, err := p.EmailTaken(ctx, "a@b.example")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestClientCreate(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/v1/accounts":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"idn_remote1","email":"a@b.example","name":"A"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token")
	id, err := c.Create(context.Background(), NewAccount{Email: "a@b.example", Password: "long-enough", Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, "idn_remote1", id.ID)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestClientCreateConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Create(context.Background(), NewAccount{Email: "a@b.example", Password: "x", Name: "A"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestClientCreateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Create(context.Background(), NewAccount{Email: "a@b.example", Password: "x", Name: "A"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientDeleteTolerates404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	assert.NoError(t, c.Delete(context.Background(), "idn_gone"))
}

func TestClientEmailTaken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "taken@b.example" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	taken, err := c.EmailTaken(context.Background(), "taken@b.example")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = c.EmailTaken(context.Background(), "free@b.example")
	require.NoError(t, err)
	assert.False(t, taken)
}
