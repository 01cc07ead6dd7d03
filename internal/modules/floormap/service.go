package floormap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/geojson"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Overlay adjusts a composed floor before it is published. unitsync uses it
// to project unit records onto their features.
type Overlay interface {
	Apply(ctx context.Context, v *venue.Venue, floor int, fc *geojson.FeatureCollection) error
	// Published runs after the floor was written.
	Published(ctx context.Context, v *venue.Venue, floor int, fc *geojson.FeatureCollection) error
}

const (
	FloorRebuilt = "rebuilt"
	FloorSkipped = "skipped"
	FloorFailed  = "failed"
)

type FloorReport struct {
	Floor       int                  `json:"floor"`
	Status      string               `json:"status"`
	Features    int                  `json:"features"`
	Diagnostics []geojson.Diagnostic `json:"diagnostics,omitempty"`
	Error       string               `json:"error,omitempty"`
}

type VenueReport struct {
	Slug   string         `json:"slug"`
	Floors []*FloorReport `json:"floors"`
	Error  string         `json:"error,omitempty"`
}

// Failed reports whether any floor or the venue itself failed.
func (r *VenueReport) Failed() bool {
	if r.Error != "" {
		return true
	}
	for _, f := range r.Floors {
		if f.Status == FloorFailed {
			return true
		}
	}
	return false
}

// Service defines floor map business logic.
type Service interface {
	Artifact(ctx context.Context, tier Tier, slug string, floor int) (*geojson.FeatureCollection, error)
	AppendJournal(ctx context.Context, p *auth.Principal, slug string, floor int, entry geojson.Feature) error
	// Compose merges the journal over the base map. A missing tier counts
	// as empty; both missing is ErrNotFound.
	Compose(ctx context.Context, slug string, floor int) (*geojson.FeatureCollection, []geojson.Diagnostic, error)
	Rebuild(ctx context.Context, slug string, floor int) (*FloorReport, error)
	RebuildVenue(ctx context.Context, slug string) (*VenueReport, error)
	RebuildAll(ctx context.Context) ([]*VenueReport, error)
	// Recenter moves the venue center to the middle of its base geometry.
	Recenter(ctx context.Context, p *auth.Principal, slug string) (*venue.Venue, error)
}

type service struct {
	store   *Store
	venues  venue.Repository
	overlay Overlay
	logger  *zap.Logger
}

// NewService creates the floor map service. overlay may be nil.
func NewService(store *Store, venues venue.Repository, overlay Overlay, logger *zap.Logger) Service {
	return &service{store: store, venues: venues, overlay: overlay, logger: logger}
}

func (s *service) Artifact(ctx context.Context, tier Tier, slug string, floor int) (*geojson.FeatureCollection, error) {
	return s.store.Read(ctx, tier, slug, floor)
}

func (s *service) AppendJournal(ctx context.Context, p *auth.Principal, slug string, floor int, entry geojson.Feature) error {
	v, err := s.venues.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := auth.Authorize(p, v.ID.String(), ""); err != nil {
		return err
	}
	if _, ok := v.Floors[floor]; !ok {
		return fmt.Errorf("%w: venue %s has no floor %d", apperr.ErrNotFound, slug, floor)
	}
	return s.store.AppendJournal(ctx, slug, floor, entry)
}

func (s *service) Compose(ctx context.Context, slug string, floor int) (*geojson.FeatureCollection, []geojson.Diagnostic, error) {
	base, err := s.readOptional(ctx, TierBase, slug, floor)
	if err != nil {
		return nil, nil, err
	}
	journal, err := s.readOptional(ctx, TierJournal, slug, floor)
	if err != nil {
		return nil, nil, err
	}
	if base == nil && journal == nil {
		return nil, nil, fmt.Errorf("%s floor %d has no base or journal: %w", slug, floor, apperr.ErrNotFound)
	}
	merged, diags := geojson.Merge(base, journal)
	return merged, diags, nil
}

func (s *service) readOptional(ctx context.Context, tier Tier, slug string, floor int) (*geojson.FeatureCollection, error) {
	fc, err := s.store.Read(ctx, tier, slug, floor)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return fc, err
}

func (s *service) Rebuild(ctx context.Context, slug string, floor int) (*FloorReport, error) {
	v, err := s.venues.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.rebuildFloor(ctx, v, floor), nil
}

func (s *service) RebuildVenue(ctx context.Context, slug string) (*VenueReport, error) {
	v, err := s.venues.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.rebuildVenue(ctx, v), nil
}

func (s *service) RebuildAll(ctx context.Context) ([]*VenueReport, error) {
	venues, err := s.venues.List(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]*VenueReport, 0, len(venues))
	for _, v := range venues {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		reports = append(reports, s.rebuildVenue(ctx, v))
	}
	return reports, nil
}

func (s *service) rebuildVenue(ctx context.Context, v *venue.Venue) *VenueReport {
	report := &VenueReport{Slug: v.Slug}
	for _, floor := range v.FloorNumbers() {
		report.Floors = append(report.Floors, s.rebuildFloor(ctx, v, floor))
	}
	return report
}

func (s *service) rebuildFloor(ctx context.Context, v *venue.Venue, floor int) *FloorReport {
	report := &FloorReport{Floor: floor}
	log := s.logger.With(zap.String("venue", v.Slug), zap.Int("floor", floor))

	fc, diags, err := s.Compose(ctx, v.Slug, floor)
	report.Diagnostics = diags
	for _, d := range diags {
		log.Warn("journal entry", zap.String("diagnostic", d.String()))
	}
	if errors.Is(err, apperr.ErrNotFound) {
		report.Status = FloorSkipped
		log.Info("floor skipped, no source artifacts")
		return report
	}
	if err == nil && s.overlay != nil {
		err = s.overlay.Apply(ctx, v, floor, fc)
	}
	if err == nil {
		err = s.store.Write(ctx, TierFinal, v.Slug, floor, fc)
	}
	if err != nil {
		report.Status = FloorFailed
		report.Error = err.Error()
		log.Error("floor rebuild failed", zap.Error(err))
		return report
	}

	report.Status = FloorRebuilt
	report.Features = len(fc.Features)
	if s.overlay != nil {
		if err := s.overlay.Published(ctx, v, floor, fc); err != nil {
			// the artifact is out; units keep their sync flag for the next run
			log.Warn("post-publish hook failed", zap.Error(err))
		}
	}
	log.Info("floor rebuilt", zap.Int("features", report.Features))
	return report
}

func (s *service) Recenter(ctx context.Context, p *auth.Principal, slug string) (*venue.Venue, error) {
	v, err := s.venues.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, v.ID.String(), ""); err != nil {
		return nil, err
	}

	var bases []*geojson.FeatureCollection
	for _, floor := range v.FloorNumbers() {
		fc, err := s.readOptional(ctx, TierBase, slug, floor)
		if err != nil {
			return nil, err
		}
		bases = append(bases, fc)
	}
	bound, ok := geojson.Bounds(bases...)
	if !ok {
		return nil, fmt.Errorf("%w: venue %s has no base geometry", apperr.ErrInvalidInput, slug)
	}
	center := bound.Center()
	v.CenterLat, v.CenterLng = center.Lat(), center.Lon()
	if err := s.venues.Save(ctx, v); err != nil {
		return nil, err
	}
	s.logger.Info("venue recentered", zap.String("venue", slug),
		zap.Float64("lat", v.CenterLat), zap.Float64("lng", v.CenterLng))
	return v, nil
}
