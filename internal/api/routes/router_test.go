package routes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/provider-directory/internal/adapters/memory"
	"github.com/zatekoja/provider-directory/internal/api/handlers"
	"github.com/zatekoja/provider-directory/internal/api/routes"
	"github.com/zatekoja/provider-directory/internal/application/services"
	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/pkg/config"
	"github.com/zatekoja/provider-directory/pkg/keylock"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Defaults()
	store := memory.NewProviderStore()
	reviews := memory.NewReviewStore()
	aggregator := services.NewRatingAggregator(store, reviews, keylock.New(), memory.NewReconcileQueue())

	require.NoError(t, store.Create(context.Background(), &entities.Provider{
		ID:          "p1",
		Slug:        "first-provider",
		DisplayName: "First Provider",
		Country:     "Ghana",
		City:        "Accra",
		Status:      entities.ProviderStatusApproved,
		CreatedAt:   time.Now().UTC(),
	}))

	router := routes.NewRouter(
		handlers.NewProviderHandler(services.NewDiscoveryService(store, cfg.Discovery)),
		handlers.NewReviewHandler(services.NewReviewService(reviews, store, aggregator, cfg.Discovery)),
		nil,
		[]string{"*"},
		nil,
	)

	srv := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_Routes(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/providers?country=Ghana", "", http.StatusOK},
		{http.MethodGet, "/api/providers/featured", "", http.StatusOK},
		{http.MethodGet, "/api/providers/first-provider", "", http.StatusOK},
		{http.MethodGet, "/api/providers/p1/adjacent", "", http.StatusOK},
		{http.MethodGet, "/api/providers/p1/reviews", "", http.StatusOK},
		{http.MethodGet, "/api/facets/countries", "", http.StatusOK},
		{http.MethodGet, "/api/facets/cities?country=all", "", http.StatusOK},
		{http.MethodPost, "/api/providers/p1/reviews", `{"rating":5}`, http.StatusCreated},
		{http.MethodPost, "/api/admin/providers", `{}`, http.StatusNotFound},
		{http.MethodDelete, "/api/providers/p1", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			req.Header.Set(handlers.ReviewerHeader, "router-test")

			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRouter_Readiness(t *testing.T) {
	cfg := config.Defaults()
	store := memory.NewProviderStore()
	reviews := memory.NewReviewStore()
	aggregator := services.NewRatingAggregator(store, reviews, keylock.New(), memory.NewReconcileQueue())

	router := routes.NewRouter(
		handlers.NewProviderHandler(services.NewDiscoveryService(store, cfg.Discovery)),
		handlers.NewReviewHandler(services.NewReviewService(reviews, store, aggregator, cfg.Discovery)),
		nil,
		nil,
		nil,
	)
	healthy := true
	router.AddReadinessCheck("postgres", func(context.Context) error { return nil })
	router.AddReadinessCheck("redis", func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	})
	h := router.SetupRoutes()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"checks":{"postgres":"ok","redis":"ok"}}`, w.Body.String())

	healthy = false
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"checks":{"postgres":"ok","redis":"unavailable"}}`, w.Body.String())
}
