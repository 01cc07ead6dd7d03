package maintenance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unit"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// mediaKeys are the feature properties and content fields holding a single
// media path.
var mediaKeys = []string{"logo", "header_image"}

type NormalizeReport struct {
	VenuesUpdated      int      `json:"venues_updated"`
	UnitsUpdated       int      `json:"units_updated"`
	ArtifactsRewritten int      `json:"artifacts_rewritten"`
	FeaturesUpdated    int      `json:"features_updated"`
	Errors             []string `json:"errors,omitempty"`
}

// Changed reports whether the run modified anything.
func (r *NormalizeReport) Changed() bool {
	return r.VenuesUpdated+r.UnitsUpdated+r.ArtifactsRewritten > 0
}

// AssetNormalizer strips cache-busting query suffixes from stored media
// paths: venue content, unit content and the published floor artifacts.
// Clean paths are left alone, so repeated runs change nothing.
type AssetNormalizer struct {
	venues venue.Repository
	units  unit.Repository
	store  *floormap.Store
	logger *zap.Logger
}

func NewAssetNormalizer(venues venue.Repository, units unit.Repository, store *floormap.Store, logger *zap.Logger) *AssetNormalizer {
	return &AssetNormalizer{venues: venues, units: units, store: store, logger: logger}
}

func (n *AssetNormalizer) Run(ctx context.Context) (*NormalizeReport, error) {
	report := &NormalizeReport{}
	fail := func(err error) {
		report.Errors = append(report.Errors, err.Error())
		n.logger.Error("asset normalization step failed", zap.Error(err))
	}

	venues, err := n.venues.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range venues {
		logo, header := unit.CanonicalMediaPath(v.Content.Logo), unit.CanonicalMediaPath(v.Content.HeaderImage)
		if logo == v.Content.Logo && header == v.Content.HeaderImage {
			continue
		}
		v.Content.Logo, v.Content.HeaderImage = logo, header
		if err := n.venues.Save(ctx, v); err != nil {
			fail(fmt.Errorf("venue %s: %w", v.Slug, err))
			continue
		}
		report.VenuesUpdated++
	}

	units, err := n.units.ListAll(ctx)
	if err != nil {
		return report, err
	}
	for _, u := range units {
		logo, header := unit.CanonicalMediaPath(u.Content.Logo), unit.CanonicalMediaPath(u.Content.HeaderImage)
		if logo == u.Content.Logo && header == u.Content.HeaderImage {
			continue
		}
		u.Content.Logo, u.Content.HeaderImage = logo, header
		u.NeedsSync = true
		if err := n.units.Save(ctx, u); err != nil {
			fail(fmt.Errorf("unit %s: %w", u.RoomID, err))
			continue
		}
		report.UnitsUpdated++
	}

	for _, v := range venues {
		for _, floor := range v.FloorNumbers() {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			touched, err := n.normalizeArtifact(ctx, v.Slug, floor)
			if err != nil {
				fail(fmt.Errorf("venue %s floor %d: %w", v.Slug, floor, err))
				continue
			}
			if touched > 0 {
				report.ArtifactsRewritten++
				report.FeaturesUpdated += touched
			}
		}
	}

	n.logger.Info("asset paths normalized",
		zap.Int("venues", report.VenuesUpdated), zap.Int("units", report.UnitsUpdated),
		zap.Int("artifacts", report.ArtifactsRewritten), zap.Int("features", report.FeaturesUpdated))
	return report, nil
}

func (n *AssetNormalizer) normalizeArtifact(ctx context.Context, slug string, floor int) (int, error) {
	fc, err := n.store.Read(ctx, floormap.TierFinal, slug, floor)
	if errors.Is(err, apperr.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	touched := 0
	for _, f := range fc.Features {
		props := f.Properties()
		changed := false
		for _, k := range mediaKeys {
			s, ok := props[k].(string)
			if !ok {
				continue
			}
			if c := unit.CanonicalMediaPath(s); c != s {
				props[k] = c
				changed = true
			}
		}
		if changed {
			touched++
		}
	}
	if touched == 0 {
		return 0, nil
	}
	return touched, n.store.Write(ctx, floormap.TierFinal, slug, floor, fc)
}
