package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/config"
	"github.com/georgemunganga/wayfinder-backend/internal/geojson"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Storage:  config.StorageConfig{Backend: "local", ArtifactRoot: t.TempDir(), MediaRoot: t.TempDir()},
		JWT:      config.JWTConfig{Secret: "test", TTL: time.Hour},
		CacheTTL: time.Minute,
	}
}

func TestBuild_InMemoryWithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()
	ctx := context.Background()

	a, err := Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	v, err := a.VenueService.UpsertVenue(ctx, &auth.System, venue.UpsertRequest{
		Name: "Mall", Slug: "mall", Floors: map[int]string{0: floormap.Path(floormap.TierBase, "mall", 0)},
	})
	require.NoError(t, err)
	require.NoError(t, a.Store.Write(ctx, floormap.TierBase, "mall", 0,
		geojson.NewFeatureCollection(geojson.NewFeature("R1", nil))))

	report, err := a.MapService.RebuildVenue(ctx, v.Slug)
	require.NoError(t, err)
	assert.Equal(t, floormap.FloorRebuilt, report.Floors[0].Status)

	_, err = a.MapService.Artifact(ctx, floormap.TierFinal, "mall", 0)
	require.NoError(t, err)
	assert.True(t, mr.Exists(floormap.CacheKey("mall", 0)))
}

func TestBuild_UnreachableRedisDisablesCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"
	a, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	a.Close()
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "ftp"
	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
