package geojson

import (
	"encoding/json"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
)

// Bounds returns the bound of every decodable geometry in the collections.
// Features with a null or unsupported geometry are ignored; ok is false when
// nothing had a geometry.
func Bounds(collections ...*FeatureCollection) (bound orb.Bound, ok bool) {
	for _, fc := range collections {
		if fc == nil {
			continue
		}
		for _, f := range fc.Features {
			raw, present := f["geometry"]
			if !present || raw == nil {
				continue
			}
			data, err := json.Marshal(raw)
			if err != nil {
				continue
			}
			g, err := orbjson.UnmarshalGeometry(data)
			if err != nil || g.Geometry() == nil {
				continue
			}
			b := g.Geometry().Bound()
			if !ok {
				bound, ok = b, true
				continue
			}
			bound = bound.Union(b)
		}
	}
	return bound, ok
}
