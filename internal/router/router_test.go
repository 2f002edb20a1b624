package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"digibank/internal/config"
	"digibank/internal/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		RateLimit:       1000,
		RateBurst:       1000,
		DefaultCurrency: "USD",
	}
	return SetupRouter(db, cfg, zerolog.Nop())
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t)

	for _, target := range []string{
		"/api/v1/me",
		"/api/v1/accounts/details",
		"/api/v1/transactions",
		"/api/v1/admin/users",
	} {
		req := httptest.NewRequest("GET", target, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	r := newTestRouter(t)

	authService := services.NewAuthService("test-secret", zerolog.Nop())
	token, err := authService.GenerateToken(1, "alice@example.com", "user")
	require.NoError(t, err)

	for _, target := range []string{
		"/api/v1/admin/users",
		"/api/v1/admin/kyc",
		"/api/v1/admin/cards",
		"/api/v1/admin/support/chats",
	} {
		req := httptest.NewRequest("GET", target, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}
}
