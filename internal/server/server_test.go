package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avendale/tutorhive/internal/activation"
	"github.com/avendale/tutorhive/internal/config"
	"github.com/avendale/tutorhive/internal/payment"
	"github.com/avendale/tutorhive/internal/provisioning"
	"github.com/avendale/tutorhive/internal/tenant"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "development",
		LogLevel:           "error",
		Currency:           "usd",
		CheckoutSuccessURL: "http://localhost:3000/billing/return",
		CheckoutCancelURL:  "http://localhost:3000/billing/cancelled",
		AdminSecret:        "test-secret",
		RateLimitRPM:       100000, // effectively off for tests
	}
}

func newTestServer(t *testing.T) (*Server, *payment.MemoryGateway) {
	t.Helper()
	gw := payment.NewMemoryGateway()
	srv, err := New(testConfig(),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithGateway(gw),
	)
	require.NoError(t, err)
	t.Cleanup(func() { srv.rateLimiter.Stop() })
	return srv, gw
}

func do(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	w := do(r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = do(r, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Not ready until Run marks it so.
	w = do(r, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	srv.ready.Store(true)
	w = do(r, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthReportsPaymentCircuit(t *testing.T) {
	inner := payment.NewMemoryGateway()
	bg := payment.NewBreakerGateway(inner, 1, time.Minute)
	srv, err := New(testConfig(),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithGateway(bg),
	)
	require.NoError(t, err)
	defer srv.rateLimiter.Stop()
	r := srv.Router()

	w := do(r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payment_gateway")
	assert.Contains(t, w.Body.String(), "circuit closed")

	// Trip the circuit; /health degrades and names the broken dependency.
	inner.FailStatus(payment.ErrUnavailable)
	_, _ = bg.OrderStatus(context.Background(), "ORD1")

	w = do(r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "circuit open")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(srv.Router(), http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tutorhive_")
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	w := do(r, http.MethodGet, "/health", nil, nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(r, http.MethodGet, "/health", nil, map[string]string{"X-Request-ID": "req-abc"})
	assert.Equal(t, "req-abc", w.Header().Get("X-Request-ID"))
}

// The full onboarding journey over HTTP: signup, checkout, payment callback,
// replay, admin cancel.
func TestOnboardingJourney(t *testing.T) {
	srv, gw := newTestServer(t)
	r := srv.Router()

	// Signup.
	w := do(r, http.MethodPost, "/v1/institutions", map[string]string{
		"name":         "Greenwood School",
		"contactEmail": "office@greenwood.example",
		"adminName":    "Dana Okafor",
		"adminEmail":   "dana@greenwood.example",
		"password":     "long-enough",
		"planId":       "standard",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created provisioning.CreateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	instID := created.Institution.ID
	assert.Equal(t, tenant.SubscriptionInactive, created.Institution.SubscriptionStatus)

	// Duplicate signup is told to log in, not sign up.
	w = do(r, http.MethodPost, "/v1/institutions", map[string]string{
		"name":         "Greenwood School",
		"contactEmail": "office@greenwood.example",
		"adminName":    "Dana Okafor",
		"adminEmail":   "dana@greenwood.example",
		"password":     "long-enough",
		"planId":       "standard",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Start checkout.
	w = do(r, http.MethodPost, "/v1/checkout", map[string]string{"institutionId": instID}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session activation.CheckoutSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	// The admin pays.
	gw.SetOrderState(session.OrderID, payment.StatePaid)

	// Success-page callback activates.
	w = do(r, http.MethodPost, "/v1/activate", map[string]string{"orderId": session.OrderID}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result activation.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Transitioned)
	assert.Equal(t, tenant.SubscriptionActive, result.SubscriptionStatus)

	// Replay is harmless.
	w = do(r, http.MethodPost, "/v1/activate", map[string]string{"orderId": session.OrderID}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Transitioned)

	// Status is queryable.
	w = do(r, http.MethodGet, "/v1/institutions/"+instID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(tenant.SubscriptionActive))

	// Admin cancel needs the secret.
	w = do(r, http.MethodPost, "/v1/institutions/"+instID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/v1/institutions/"+instID+"/cancel", nil,
		map[string]string{"X-Admin-Secret": "test-secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(tenant.SubscriptionCancelled))
}

func TestAdminEndpointsRequireSecret(t *testing.T) {
	srv, _ := newTestServer(t)
	r := srv.Router()

	w := do(r, http.MethodGet, "/v1/realtime/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/v1/realtime/stats", nil,
		map[string]string{"X-Admin-Secret": "test-secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "connectedClients")

	// The institution listing is admin-only too.
	w = do(r, http.MethodGet, "/v1/institutions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/v1/institutions", nil,
		map[string]string{"X-Admin-Secret": "test-secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "institutions")
}

func TestAdminOpenInDevelopmentWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.AdminSecret = ""
	srv, err := New(cfg, WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	defer srv.rateLimiter.Stop()

	w := do(srv.Router(), http.MethodGet, "/v1/realtime/stats", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlansEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(srv.Router(), http.MethodGet, "/v1/plans", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "starter")
	assert.Contains(t, w.Body.String(), "premium")
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(srv.Router(), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}
