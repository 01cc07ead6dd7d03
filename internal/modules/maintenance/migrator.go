// Package maintenance holds the one-shot batch jobs that rewrite storage
// paths. They assume a maintenance window: no interactive edits run against
// the venue being migrated.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unit"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/blob"
)

const (
	MoveDone    = "moved"
	MoveSkipped = "skipped"
)

type Move struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status string `json:"status"`
}

// Report lists every attempted move and the records rewritten afterwards.
type Report struct {
	Venue        string `json:"venue"`
	Moves        []Move `json:"moves"`
	VenueUpdated bool   `json:"venue_updated"`
	UnitsUpdated int    `json:"units_updated"`
}

func (r *Report) moved() []string {
	var out []string
	for _, m := range r.Moves {
		if m.Status == MoveDone {
			out = append(out, m.From+" -> "+m.To)
		}
	}
	return out
}

// PathMigrator renames venue slugs and floor file names in storage and in
// the records that point at them. Missing sources are skipped, so a run can
// be repeated after a partial failure.
type PathMigrator struct {
	venues    venue.Repository
	units     unit.Repository
	artifacts blob.Storage
	media     blob.Storage
	store     *floormap.Store
	logger    *zap.Logger
}

func NewPathMigrator(venues venue.Repository, units unit.Repository, artifacts, media blob.Storage, store *floormap.Store, logger *zap.Logger) *PathMigrator {
	return &PathMigrator{venues: venues, units: units, artifacts: artifacts, media: media, store: store, logger: logger}
}

// MigrateVenueSlug moves every artifact and the media directory of a venue
// from oldSlug to newSlug and rewrites the stored paths. The caller must
// have run venue.Service.CheckSlugRename.
//
// A record update failing after files moved returns *apperr.InconsistencyError.
func (m *PathMigrator) MigrateVenueSlug(ctx context.Context, oldSlug, newSlug string) (*Report, error) {
	if !venue.ValidSlug(newSlug) {
		return nil, fmt.Errorf("%w: invalid slug %q", apperr.ErrInvalidInput, newSlug)
	}
	v, err := m.venues.GetBySlug(ctx, oldSlug)
	if errors.Is(err, apperr.ErrNotFound) {
		// a previous run already renamed the record
		v, err = m.venues.GetBySlug(ctx, newSlug)
	}
	if err != nil {
		return nil, err
	}
	report := &Report{Venue: newSlug}
	log := m.logger.With(zap.String("from", oldSlug), zap.String("to", newSlug))

	for _, floor := range v.FloorNumbers() {
		for _, tier := range floormap.Tiers {
			from, to := floormap.Path(tier, oldSlug, floor), floormap.Path(tier, newSlug, floor)
			if err := m.move(ctx, m.artifacts, from, to, report); err != nil {
				return report, m.halt(oldSlug, report, err)
			}
		}
		m.store.Invalidate(ctx, oldSlug, floor)
	}
	if err := m.move(ctx, m.media, oldSlug, newSlug, report); err != nil {
		return report, m.halt(oldSlug, report, err)
	}

	v.Slug = newSlug
	rewriteMap(v.Floors, func(p string) string { return renameSlug(p, oldSlug, newSlug) })
	rewriteMap(v.FloorPhotos, func(p string) string { return renameSlug(p, oldSlug, newSlug) })
	v.Content.Logo = renameSlug(v.Content.Logo, oldSlug, newSlug)
	v.Content.HeaderImage = renameSlug(v.Content.HeaderImage, oldSlug, newSlug)
	for i, g := range v.Content.Gallery {
		v.Content.Gallery[i] = renameSlug(g, oldSlug, newSlug)
	}
	if err := m.venues.Save(ctx, v); err != nil {
		return report, m.halt(oldSlug, report, err)
	}
	report.VenueUpdated = true

	units, err := m.units.ListByVenue(ctx, v.ID.String())
	if err != nil {
		return report, m.halt(oldSlug, report, err)
	}
	for _, u := range units {
		if !renameUnitMedia(u, oldSlug, newSlug) {
			continue
		}
		u.NeedsSync = true
		if err := m.units.Save(ctx, u); err != nil {
			return report, m.halt(oldSlug, report, fmt.Errorf("unit %s: %w", u.RoomID, err))
		}
		report.UnitsUpdated++
	}

	log.Info("venue slug migrated", zap.Int("moved", len(report.moved())), zap.Int("units", report.UnitsUpdated))
	return report, nil
}

// MigrateFloorNaming renames the legacy floor files of a venue (L0, B1, ...)
// to the numeric floor_<n> scheme and rewrites the venue's floor paths.
func (m *PathMigrator) MigrateFloorNaming(ctx context.Context, slug string) (*Report, error) {
	v, err := m.venues.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	report := &Report{Venue: slug}

	for _, floor := range v.FloorNumbers() {
		for _, tier := range floormap.Tiers {
			from, to := floormap.LegacyPath(tier, slug, floor), floormap.Path(tier, slug, floor)
			if err := m.move(ctx, m.artifacts, from, to, report); err != nil {
				return report, m.halt(slug, report, err)
			}
		}
		m.store.Invalidate(ctx, slug, floor)

		legacy := slug + "_" + floormap.LegacyFloorLabel(floor)
		current := fmt.Sprintf("%s_floor_%d", slug, floor)
		v.Floors[floor] = relabel(v.Floors[floor], legacy, current)
		if p, ok := v.FloorPhotos[floor]; ok {
			v.FloorPhotos[floor] = relabel(p, legacy, current)
		}
	}

	if err := m.venues.Save(ctx, v); err != nil {
		return report, m.halt(slug, report, err)
	}
	report.VenueUpdated = true
	m.logger.Info("floor naming migrated", zap.String("venue", slug), zap.Int("moved", len(report.moved())))
	return report, nil
}

func (m *PathMigrator) move(ctx context.Context, storage blob.Storage, from, to string, report *Report) error {
	ok, err := storage.Exists(ctx, from)
	if err != nil {
		return err
	}
	if !ok {
		report.Moves = append(report.Moves, Move{From: from, To: to, Status: MoveSkipped})
		return nil
	}
	if err := storage.Rename(ctx, from, to); err != nil {
		if errors.Is(err, blob.ErrNotExist) {
			report.Moves = append(report.Moves, Move{From: from, To: to, Status: MoveSkipped})
			return nil
		}
		return fmt.Errorf("move %s: %w", from, err)
	}
	report.Moves = append(report.Moves, Move{From: from, To: to, Status: MoveDone})
	return nil
}

// halt turns a failure into an InconsistencyError once any file has moved.
func (m *PathMigrator) halt(slug string, report *Report, err error) error {
	moved := report.moved()
	if len(moved) == 0 {
		return err
	}
	m.logger.Error("path migration left venue inconsistent",
		zap.String("venue", slug), zap.Strings("moved", moved), zap.Error(err))
	return &apperr.InconsistencyError{Slug: slug, Moved: moved, Cause: err}
}

func renameUnitMedia(u *unit.Unit, oldSlug, newSlug string) bool {
	changed := false
	set := func(p *string) {
		if n := renameSlug(*p, oldSlug, newSlug); n != *p {
			*p, changed = n, true
		}
	}
	set(&u.Content.Logo)
	set(&u.Content.HeaderImage)
	for i := range u.Content.Gallery {
		set(&u.Content.Gallery[i])
	}
	return changed
}

// renameSlug replaces the slug where it appears as a whole path segment or
// as the prefix of a file name (<slug>_...).
func renameSlug(p, oldSlug, newSlug string) string {
	if p == "" || strings.HasPrefix(p, "data:") {
		return p
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		switch {
		case s == oldSlug:
			segs[i] = newSlug
		case strings.HasPrefix(s, oldSlug+"_"):
			segs[i] = newSlug + s[len(oldSlug):]
		}
	}
	return strings.Join(segs, "/")
}

// relabel swaps the legacy floor label in the file name of p.
func relabel(p, legacy, current string) string {
	dir, file := path.Split(p)
	if !strings.HasPrefix(file, legacy) {
		return p
	}
	rest := file[len(legacy):]
	if rest != "" && rest[0] != '.' && rest[0] != '_' {
		return p
	}
	return dir + current + rest
}

func rewriteMap(m map[int]string, fn func(string) string) {
	for k, v := range m {
		m[k] = fn(v)
	}
}
