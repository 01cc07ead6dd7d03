// Package floormap stores the per-floor GeoJSON artifacts of each venue and
// rebuilds the published tier from the base map and its update journal.
package floormap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/geojson"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/blob"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/cache"
)

// Tier is one of the three artifact layers kept per floor.
type Tier string

const (
	TierBase    Tier = "base"
	TierJournal Tier = "updates"
	TierFinal   Tier = "final"
)

// Tiers lists every tier in storage order.
var Tiers = []Tier{TierBase, TierJournal, TierFinal}

func (t Tier) suffix() string {
	switch t {
	case TierJournal:
		return "_updates"
	case TierFinal:
		return "_final"
	}
	return ""
}

// Path returns the artifact location of a floor, relative to the artifact
// root:
//
//	<slug>/base/<slug>_floor_<n>.geojson
//	<slug>/updates/<slug>_floor_<n>_updates.geojson
//	<slug>/final/<slug>_floor_<n>_final.geojson
func Path(tier Tier, slug string, floor int) string {
	return labelPath(tier, slug, "floor_"+strconv.Itoa(floor))
}

// LegacyPath is Path under the old floor labels (L0, L1, B1, ...).
func LegacyPath(tier Tier, slug string, floor int) string {
	return labelPath(tier, slug, LegacyFloorLabel(floor))
}

// LegacyFloorLabel returns L<n> for ground and upper floors and B<n> for
// basements.
func LegacyFloorLabel(floor int) string {
	if floor < 0 {
		return "B" + strconv.Itoa(-floor)
	}
	return "L" + strconv.Itoa(floor)
}

func labelPath(tier Tier, slug, label string) string {
	return fmt.Sprintf("%s/%s/%s_%s%s.geojson", slug, tier, slug, label, tier.suffix())
}

// CacheKey is the redis key of a published floor.
func CacheKey(slug string, floor int) string {
	return fmt.Sprintf("floormap:%s:%d:final", slug, floor)
}

// Store reads and writes floor artifacts. The published tier is served
// through an optional read-through cache.
type Store struct {
	blobs  blob.Storage
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a Store. c may be nil to disable caching.
func NewStore(blobs blob.Storage, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{blobs: blobs, cache: c, ttl: ttl, logger: logger}
}

func (s *Store) Exists(ctx context.Context, tier Tier, slug string, floor int) (bool, error) {
	return s.blobs.Exists(ctx, Path(tier, slug, floor))
}

// Read loads an artifact. A missing file returns an error wrapping
// apperr.ErrNotFound.
func (s *Store) Read(ctx context.Context, tier Tier, slug string, floor int) (*geojson.FeatureCollection, error) {
	if tier == TierFinal && s.cache != nil {
		if fc := s.cached(ctx, slug, floor); fc != nil {
			return fc, nil
		}
	}

	p := Path(tier, slug, floor)
	data, err := s.blobs.Read(ctx, p)
	if errors.Is(err, blob.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", p, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", p, err)
	}
	fc, err := geojson.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", p, err)
	}

	if tier == TierFinal && s.cache != nil {
		if err := s.cache.Set(ctx, CacheKey(slug, floor), data, s.ttl); err != nil {
			s.logger.Warn("artifact cache set failed", zap.String("key", CacheKey(slug, floor)), zap.Error(err))
		}
	}
	return fc, nil
}

func (s *Store) cached(ctx context.Context, slug string, floor int) *geojson.FeatureCollection {
	key := CacheKey(slug, floor)
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("artifact cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	fc, err := geojson.Decode(data)
	if err != nil {
		s.logger.Warn("dropping undecodable cached artifact", zap.String("key", key), zap.Error(err))
		_ = s.cache.Del(ctx, key)
		return nil
	}
	return fc
}

// Write replaces an artifact. Storage failures wrap apperr.ErrArtifactWrite.
func (s *Store) Write(ctx context.Context, tier Tier, slug string, floor int, fc *geojson.FeatureCollection) error {
	data, err := geojson.Encode(fc)
	if err != nil {
		return err
	}
	p := Path(tier, slug, floor)
	if err := s.blobs.Write(ctx, p, data); err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrArtifactWrite, p, err)
	}
	if tier == TierFinal && s.cache != nil {
		if err := s.cache.Del(ctx, CacheKey(slug, floor)); err != nil {
			s.logger.Warn("artifact cache invalidation failed", zap.String("key", CacheKey(slug, floor)), zap.Error(err))
		}
	}
	return nil
}

// Invalidate drops the cached copy of a published floor.
func (s *Store) Invalidate(ctx context.Context, slug string, floor int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, CacheKey(slug, floor)); err != nil {
		s.logger.Warn("artifact cache invalidation failed", zap.String("key", CacheKey(slug, floor)), zap.Error(err))
	}
}

// AppendJournal adds one entry to the floor's update journal, creating the
// journal when the floor has none yet.
func (s *Store) AppendJournal(ctx context.Context, slug string, floor int, entry geojson.Feature) error {
	if _, ok := entry.ID(); !ok {
		return fmt.Errorf("%w: entry has no id", apperr.ErrMalformedJournalEntry)
	}
	if a := entry.Action(); !a.Valid() {
		return fmt.Errorf("%w: unknown action %q", apperr.ErrMalformedJournalEntry, a)
	}
	journal, err := s.Read(ctx, TierJournal, slug, floor)
	if errors.Is(err, apperr.ErrNotFound) {
		journal = geojson.NewFeatureCollection()
	} else if err != nil {
		return err
	}
	journal.Features = append(journal.Features, entry.Clone())
	return s.Write(ctx, TierJournal, slug, floor, journal)
}
