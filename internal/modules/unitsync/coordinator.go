// Package unitsync propagates unit attribute edits from the unit records into
// the published floor artifacts.
//
// The unit record is always written first and carries needs_sync until its
// feature has been rewritten, so an interrupted sync is repaired by
// ReconcilePending or by the next floor rebuild.
package unitsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/geojson"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unit"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Result describes what an edit did.
type Result struct {
	Updated      []string `json:"updated"`
	FeatureFound bool     `json:"feature_found"`
	Synced       bool     `json:"synced"`
}

// Coordinator applies unit edits and keeps the published floors in step.
// It also serves as the floormap rebuild overlay.
type Coordinator struct {
	units  unit.Repository
	venues venue.Repository
	store  *floormap.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewCoordinator(units unit.Repository, venues venue.Repository, store *floormap.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		units:  units,
		venues: venues,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ floormap.Overlay = (*Coordinator)(nil)

// keys a caller can never change through an edit
var reservedKeys = map[string]bool{"id": true, "room_id": true, "venue_id": true, "floor": true}

// ApplyUnitEdit writes changes into the unit record and rewrites the unit's
// feature in the final artifact of floor.
//
// Nil and empty string values mean "no change". A missing final artifact is
// not an error: the record keeps needs_sync for a later rebuild. A unit with
// no feature on the floor leaves the artifact untouched.
func (c *Coordinator) ApplyUnitEdit(ctx context.Context, p *auth.Principal, venueID, roomID string, floor int, changes map[string]any) (*Result, error) {
	v, err := c.venues.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, v.ID.String(), roomID); err != nil {
		return nil, err
	}
	u, err := c.units.GetByRoomID(ctx, v.ID.String(), roomID)
	if err != nil {
		return nil, err
	}

	res := &Result{Updated: []string{}}
	if err := applyChanges(u, changes, res); err != nil {
		return nil, err
	}
	now := c.now()
	u.Floor = floor
	u.NeedsSync = true
	u.LastSynced = &now
	if err := c.units.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to save unit %s: %w", roomID, err)
	}

	log := c.logger.With(zap.String("venue", v.Slug), zap.String("room_id", roomID), zap.Int("floor", floor))
	fc, err := c.store.Read(ctx, floormap.TierFinal, v.Slug, floor)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Warn("no final artifact, unit left pending")
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	found, _, _ := overlay(fc, []*unit.Unit{u}, now)
	if len(found) == 1 {
		res.FeatureFound = true
		if err := c.store.Write(ctx, floormap.TierFinal, v.Slug, floor, fc); err != nil {
			log.Error("final artifact write failed, unit left pending", zap.Error(err))
			if !errors.Is(err, apperr.ErrArtifactWrite) {
				err = fmt.Errorf("%w: %v", apperr.ErrArtifactWrite, err)
			}
			return nil, err
		}
		res.Synced = true
	} else {
		log.Warn("unit has no feature in final artifact")
	}

	u.NeedsSync = false
	u.LastSynced = &now
	if err := c.units.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to clear sync flag of unit %s: %w", roomID, err)
	}
	return res, nil
}

func applyChanges(u *unit.Unit, changes map[string]any, res *Result) error {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := changes[k]
		if val == nil || val == "" || reservedKeys[k] {
			continue
		}
		switch k {
		case "name":
			s, ok := val.(string)
			if !ok {
				return fmt.Errorf("%w: name must be a string", apperr.ErrInvalidInput)
			}
			u.Name = s
		case "logo", "header_image":
			s, ok := val.(string)
			if !ok {
				return fmt.Errorf("%w: %s must be a string", apperr.ErrInvalidInput, k)
			}
			if err := u.Content.Set(k, unit.CanonicalMediaPath(s)); err != nil {
				return err
			}
		default:
			if err := u.Content.Set(k, val); err != nil {
				return err
			}
		}
		res.Updated = append(res.Updated, k)
	}
	return nil
}

// overlay rewrites the published properties of every unit that has a
// feature in fc. A settled unit keeps the updated_at of its last sync so
// rebuilding an unchanged floor writes the same bytes; a unit with pending
// changes is stamped with now, recorded in LastSynced and returned in stamped.
func overlay(fc *geojson.FeatureCollection, units []*unit.Unit, now time.Time) (found, missing, stamped []*unit.Unit) {
	for _, u := range units {
		idx := fc.Find(u.RoomID)
		if idx < 0 {
			missing = append(missing, u)
			continue
		}
		if u.NeedsSync || u.LastSynced == nil {
			stamp := now
			u.LastSynced = &stamp
			stamped = append(stamped, u)
		}
		for k, v := range u.FeatureProperties(*u.LastSynced) {
			fc.Features[idx].SetProperty(k, v)
		}
		found = append(found, u)
	}
	return found, missing, stamped
}

// ── floormap.Overlay ──────────────────────────────────────────────────────────

func (c *Coordinator) Apply(ctx context.Context, v *venue.Venue, floor int, fc *geojson.FeatureCollection) error {
	units, err := c.floorUnits(ctx, v, floor)
	if err != nil {
		return err
	}
	found, missing, stamped := overlay(fc, units, c.now())
	c.logger.Debug("units overlaid", zap.String("venue", v.Slug), zap.Int("floor", floor),
		zap.Int("found", len(found)), zap.Int("missing", len(missing)))
	// stamps are stored before the floor is written; needs_sync stays set
	// until Published
	for _, u := range stamped {
		if err := c.units.Save(ctx, u); err != nil {
			return fmt.Errorf("unit %s: %w", u.RoomID, err)
		}
	}
	return nil
}

func (c *Coordinator) Published(ctx context.Context, v *venue.Venue, floor int, _ *geojson.FeatureCollection) error {
	units, err := c.floorUnits(ctx, v, floor)
	if err != nil {
		return err
	}
	return c.clearPending(ctx, units)
}

func (c *Coordinator) floorUnits(ctx context.Context, v *venue.Venue, floor int) ([]*unit.Unit, error) {
	all, err := c.units.ListByVenue(ctx, v.ID.String())
	if err != nil {
		return nil, err
	}
	var out []*unit.Unit
	for _, u := range all {
		if u.Floor == floor {
			out = append(out, u)
		}
	}
	return out, nil
}

func (c *Coordinator) clearPending(ctx context.Context, units []*unit.Unit) error {
	now := c.now()
	var errs []error
	for _, u := range units {
		if !u.NeedsSync {
			continue
		}
		u.NeedsSync = false
		if u.LastSynced == nil {
			u.LastSynced = &now
		}
		if err := c.units.Save(ctx, u); err != nil {
			errs = append(errs, fmt.Errorf("unit %s: %w", u.RoomID, err))
		}
	}
	return errors.Join(errs...)
}
