package floormap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/geojson"
)

func TestHandler_Artifact(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.store.Write(context.Background(), TierFinal, "mall", -1,
		geojson.NewFeatureCollection(geojson.NewFeature("R1", nil))))

	router := chi.NewRouter()
	NewHandler(NewService(fx.store, fx.venues, nil, zap.NewNop())).RegisterRoutes(router, router, router)

	cases := []struct {
		path   string
		status int
	}{
		{"/api/v1/maps/mall/floors/-1", http.StatusOK},
		{"/api/v1/maps/mall/floors/3", http.StatusNotFound},
		{"/api/v1/maps/mall/floors/-1/base", http.StatusNotFound},
		{"/api/v1/maps/mall/floors/ground", http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.path, nil))
		assert.Equal(t, c.status, rec.Code, c.path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/maps/mall/floors/-1", nil))
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	fc, err := geojson.Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 0, fc.Find("R1"))
}

func TestHandler_JournalRequiresPrincipal(t *testing.T) {
	fx := newFixture(t)
	router := chi.NewRouter()
	NewHandler(NewService(fx.store, fx.venues, nil, zap.NewNop())).RegisterRoutes(router, router, router)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/maps/mall/floors/0/journal",
		strings.NewReader(`{"type":"Feature","properties":{"id":"R1","action":"add"}}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
