package maintenance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/geojson"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unit"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/blob"
)

type env struct {
	venues    *venue.MemoryRepository
	units     *unit.MemoryRepository
	artifacts *blob.Local
	media     *blob.Local
	store     *floormap.Store
	migrator  *PathMigrator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		venues:    venue.NewMemoryRepository(),
		units:     unit.NewMemoryRepository(),
		artifacts: blob.NewLocal(t.TempDir()),
		media:     blob.NewLocal(t.TempDir()),
	}
	e.store = floormap.NewStore(e.artifacts, nil, 0, zap.NewNop())
	e.migrator = NewPathMigrator(e.venues, e.units, e.artifacts, e.media, e.store, zap.NewNop())
	return e
}

func (e *env) write(t *testing.T, storage blob.Storage, path string) {
	t.Helper()
	data, err := geojson.Encode(geojson.NewFeatureCollection())
	require.NoError(t, err)
	require.NoError(t, storage.Write(context.Background(), path, data))
}

func (e *env) exists(t *testing.T, storage blob.Storage, path string) bool {
	t.Helper()
	ok, err := storage.Exists(context.Background(), path)
	require.NoError(t, err)
	return ok
}

func seedMall(t *testing.T, e *env) (*venue.Venue, *unit.Unit) {
	t.Helper()
	ctx := context.Background()
	v := &venue.Venue{
		ID: uuid.New(), Name: "Mall", Slug: "mall",
		Floors: map[int]string{
			-1: floormap.Path(floormap.TierBase, "mall", -1),
			0:  floormap.Path(floormap.TierBase, "mall", 0),
		},
		FloorPhotos: map[int]string{0: "/uploads/mall/floors/mall_floor_0.jpg"},
		Content:     venue.Content{Logo: "/uploads/mall/logo.png", Gallery: []string{"/uploads/mall/g1.jpg", "https://cdn.test/x.jpg"}},
	}
	require.NoError(t, e.venues.Upsert(ctx, v))
	u := &unit.Unit{ID: uuid.New(), VenueID: v.ID, RoomID: "R1", Floor: 0,
		Content: unit.Content{Logo: "/uploads/mall/units/r1.png", HeaderImage: "data:image/png;base64,mall"}}
	require.NoError(t, e.units.Upsert(ctx, u))

	e.write(t, e.artifacts, floormap.Path(floormap.TierBase, "mall", -1))
	e.write(t, e.artifacts, floormap.Path(floormap.TierFinal, "mall", -1))
	e.write(t, e.artifacts, floormap.Path(floormap.TierBase, "mall", 0))
	e.write(t, e.media, "mall/logo.png")
	return v, u
}

func countMoves(r *Report, status string) int {
	n := 0
	for _, m := range r.Moves {
		if m.Status == status {
			n++
		}
	}
	return n
}

func TestMigrateVenueSlug(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedMall(t, e)

	report, err := e.migrator.MigrateVenueSlug(ctx, "mall", "grand-mall")
	require.NoError(t, err)
	assert.Equal(t, 4, countMoves(report, MoveDone))
	assert.Equal(t, 3, countMoves(report, MoveSkipped))
	assert.True(t, report.VenueUpdated)
	assert.Equal(t, 1, report.UnitsUpdated)

	assert.True(t, e.exists(t, e.artifacts, "grand-mall/base/grand-mall_floor_-1.geojson"))
	assert.True(t, e.exists(t, e.artifacts, "grand-mall/final/grand-mall_floor_-1_final.geojson"))
	assert.False(t, e.exists(t, e.artifacts, "mall/base/mall_floor_0.geojson"))
	assert.True(t, e.exists(t, e.media, "grand-mall/logo.png"))

	v, err := e.venues.GetBySlug(ctx, "grand-mall")
	require.NoError(t, err)
	assert.Equal(t, "grand-mall/base/grand-mall_floor_0.geojson", v.Floors[0])
	assert.Equal(t, "/uploads/grand-mall/floors/grand-mall_floor_0.jpg", v.FloorPhotos[0])
	assert.Equal(t, "/uploads/grand-mall/logo.png", v.Content.Logo)
	assert.Equal(t, []string{"/uploads/grand-mall/g1.jpg", "https://cdn.test/x.jpg"}, v.Content.Gallery)

	u, err := e.units.GetByRoomID(ctx, v.ID.String(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/grand-mall/units/r1.png", u.Content.Logo)
	assert.Equal(t, "data:image/png;base64,mall", u.Content.HeaderImage)
	assert.True(t, u.NeedsSync)

	again, err := e.migrator.MigrateVenueSlug(ctx, "mall", "grand-mall")
	require.NoError(t, err, "re-running skips what already moved")
	assert.Equal(t, 0, countMoves(again, MoveDone))
	assert.Equal(t, 0, again.UnitsUpdated)
}

func TestMigrateVenueSlug_RecordFailureIsInconsistency(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedMall(t, e)
	e.venues.FailSave = errors.New("record store down")

	_, err := e.migrator.MigrateVenueSlug(ctx, "mall", "grand-mall")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrPathMigrationInconsistency)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	var inc *apperr.InconsistencyError
	require.ErrorAs(t, err, &inc)
	assert.Equal(t, "mall", inc.Slug)
	assert.Len(t, inc.Moved, 4)

	// the operator repairs the store and re-runs
	e.venues.FailSave = nil
	report, err := e.migrator.MigrateVenueSlug(ctx, "mall", "grand-mall")
	require.NoError(t, err)
	assert.Equal(t, 0, countMoves(report, MoveDone))
	v, err := e.venues.GetBySlug(ctx, "grand-mall")
	require.NoError(t, err)
	assert.Equal(t, "grand-mall/base/grand-mall_floor_-1.geojson", v.Floors[-1])
}

func TestMigrateVenueSlug_ResumeAfterUnitFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedMall(t, e)
	venues := venue.NewService(e.venues, zap.NewNop())
	e.units.FailSave = errors.New("units down")

	require.NoError(t, venues.CheckSlugRename(ctx, "mall", "grand-mall"))
	report, err := e.migrator.MigrateVenueSlug(ctx, "mall", "grand-mall")
	assert.ErrorIs(t, err, apperr.ErrPathMigrationInconsistency)
	assert.True(t, report.VenueUpdated)
	assert.Equal(t, 0, report.UnitsUpdated)

	// the venue record already carries the new slug
	e.units.FailSave = nil
	require.NoError(t, venues.CheckSlugRename(ctx, "mall", "grand-mall"))
	report, err = e.migrator.MigrateVenueSlug(ctx, "mall", "grand-mall")
	require.NoError(t, err)
	assert.Equal(t, 1, report.UnitsUpdated)

	v, err := e.venues.GetBySlug(ctx, "grand-mall")
	require.NoError(t, err)
	u, err := e.units.GetByRoomID(ctx, v.ID.String(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/grand-mall/units/r1.png", u.Content.Logo)
}

func TestMigrateVenueSlug_MissingUnitIsNotASkip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	seedMall(t, e)
	e.units.FailSave = fmt.Errorf("unit R1: %w", apperr.ErrNotFound)

	_, err := e.migrator.MigrateVenueSlug(ctx, "mall", "grand-mall")
	assert.ErrorIs(t, err, apperr.ErrPathMigrationInconsistency)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
}

func TestMigrateVenueSlug_NothingMovedIsPlainError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	v := &venue.Venue{ID: uuid.New(), Name: "Empty", Slug: "empty", Floors: map[int]string{0: ""}}
	require.NoError(t, e.venues.Upsert(ctx, v))
	e.venues.FailSave = errors.New("record store down")

	_, err := e.migrator.MigrateVenueSlug(ctx, "empty", "still-empty")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrPathMigrationInconsistency)
}

func TestMigrateVenueSlug_Validation(t *testing.T) {
	e := newEnv(t)
	_, err := e.migrator.MigrateVenueSlug(context.Background(), "mall", "Not Valid")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = e.migrator.MigrateVenueSlug(context.Background(), "ghost", "ghost-2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMigrateFloorNaming(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	v := &venue.Venue{
		ID: uuid.New(), Name: "Park", Slug: "park",
		Floors: map[int]string{
			-1: floormap.LegacyPath(floormap.TierBase, "park", -1),
			0:  floormap.LegacyPath(floormap.TierBase, "park", 0),
		},
		FloorPhotos: map[int]string{0: "/uploads/park/park_L0.jpg"},
	}
	require.NoError(t, e.venues.Upsert(ctx, v))
	e.write(t, e.artifacts, "park/base/park_B1.geojson")
	e.write(t, e.artifacts, "park/updates/park_L0_updates.geojson")

	report, err := e.migrator.MigrateFloorNaming(ctx, "park")
	require.NoError(t, err)
	assert.Equal(t, 2, countMoves(report, MoveDone))
	assert.True(t, e.exists(t, e.artifacts, "park/base/park_floor_-1.geojson"))
	assert.True(t, e.exists(t, e.artifacts, "park/updates/park_floor_0_updates.geojson"))

	got, err := e.venues.GetBySlug(ctx, "park")
	require.NoError(t, err)
	assert.Equal(t, "park/base/park_floor_-1.geojson", got.Floors[-1])
	assert.Equal(t, "park/base/park_floor_0.geojson", got.Floors[0])
	assert.Equal(t, "/uploads/park/park_floor_0.jpg", got.FloorPhotos[0])

	again, err := e.migrator.MigrateFloorNaming(ctx, "park")
	require.NoError(t, err)
	assert.Equal(t, 0, countMoves(again, MoveDone))
}

func TestRenameSlug(t *testing.T) {
	assert.Equal(t, "new/base/new_floor_0.geojson", renameSlug("old/base/old_floor_0.geojson", "old", "new"))
	assert.Equal(t, "/uploads/new/a.png", renameSlug("/uploads/old/a.png", "old", "new"))
	assert.Equal(t, "/uploads/older/a.png", renameSlug("/uploads/older/a.png", "old", "new"))
	assert.Equal(t, "", renameSlug("", "old", "new"))
}

func TestRelabel(t *testing.T) {
	assert.Equal(t, "p/base/p_floor_1.geojson", relabel("p/base/p_L1.geojson", "p_L1", "p_floor_1"))
	assert.Equal(t, "p/base/p_L10.geojson", relabel("p/base/p_L10.geojson", "p_L1", "p_floor_1"))
	assert.Equal(t, "p/base/p_floor_1.geojson", relabel("p/base/p_floor_1.geojson", "p_L1", "p_floor_1"))
}
