package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmw "portfolio/pkg/platform/middleware/auth"
	"portfolio/pkg/requestcontext"
)

const validToken = "good-token"

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*authmw.Claims, error) {
	if token != validToken {
		return nil, errors.New("invalid token")
	}
	return &authmw.Claims{UserID: "5b0c0f0e-7a9e-4d1a-9d7f-0e2c1f7a9b11"}, nil
}

type routeFunc func(r chi.Router)

func (f routeFunc) Register(r chi.Router) { f(r) }

func newTestRouter(health map[string]HealthCheck) http.Handler {
	return NewRouter(Deps{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Validator: stubValidator{},
		Public: []Registrar{routeFunc(func(r chi.Router) {
			r.Get("/verify/{token}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		})},
		Protected: []Registrar{routeFunc(func(r chi.Router) {
			r.Get("/profile", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, requestcontext.UserID(r.Context()).String())
			})
		})},
		Health: health,
	})
}

func TestRouter(t *testing.T) {
	router := newTestRouter(nil)

	t.Run("public routes need no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify/ABC", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("protected routes reject missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("protected routes see the authenticated user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.Header.Set("Authorization", "Bearer "+validToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5b0c0f0e-7a9e-4d1a-9d7f-0e2c1f7a9b11", rec.Body.String())
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "ok", body.Checks["postgres"])
	})

	t.Run("failing dependency degrades", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "connection refused", body.Checks["redis"])
	})
}
