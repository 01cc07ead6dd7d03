package unitsync

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unit"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// ReconcileReport counts the outcome of a ReconcilePending run, per unit.
type ReconcileReport struct {
	Pending         int      `json:"pending"`
	Synced          int      `json:"synced"`
	FeatureMissing  int      `json:"feature_missing"`
	ArtifactMissing int      `json:"artifact_missing"`
	Failed          int      `json:"failed"`
	Errors          []string `json:"errors,omitempty"`
}

type floorKey struct {
	venueID string
	floor   int
}

// ReconcilePending re-applies every unit still flagged needs_sync. Each
// affected floor is read and written once. Running it twice is harmless.
func (c *Coordinator) ReconcilePending(ctx context.Context) (*ReconcileReport, error) {
	pending, err := c.units.ListNeedsSync(ctx)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{Pending: len(pending)}

	groups := map[floorKey][]*unit.Unit{}
	var order []floorKey
	for _, u := range pending {
		k := floorKey{venueID: u.VenueID.String(), floor: u.Floor}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], u)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].venueID != order[j].venueID {
			return order[i].venueID < order[j].venueID
		}
		return order[i].floor < order[j].floor
	})

	for _, k := range order {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c.reconcileFloor(ctx, k, groups[k], report)
	}
	c.logger.Info("reconcile finished",
		zap.Int("pending", report.Pending), zap.Int("synced", report.Synced),
		zap.Int("feature_missing", report.FeatureMissing), zap.Int("artifact_missing", report.ArtifactMissing),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (c *Coordinator) reconcileFloor(ctx context.Context, k floorKey, units []*unit.Unit, report *ReconcileReport) {
	fail := func(err error) {
		report.Failed += len(units)
		report.Errors = append(report.Errors, err.Error())
		c.logger.Error("reconcile floor failed", zap.String("venue_id", k.venueID), zap.Int("floor", k.floor), zap.Error(err))
	}

	v, err := c.venues.GetByID(ctx, k.venueID)
	if err != nil {
		fail(err)
		return
	}
	fc, err := c.store.Read(ctx, floormap.TierFinal, v.Slug, k.floor)
	if errors.Is(err, apperr.ErrNotFound) {
		report.ArtifactMissing += len(units)
		return
	}
	if err != nil {
		fail(err)
		return
	}

	found, missing, _ := overlay(fc, units, c.now())
	if len(found) > 0 {
		if err := c.store.Write(ctx, floormap.TierFinal, v.Slug, k.floor, fc); err != nil {
			fail(err)
			return
		}
	}
	if err := c.clearPending(ctx, units); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	report.Synced += len(found)
	report.FeatureMissing += len(missing)
}
