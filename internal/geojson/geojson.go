// Package geojson models floor artifacts as loosely typed GeoJSON: geometry and
// unknown members are carried through untouched, only the feature id, the
// journal action and the properties object are interpreted.
package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Action is the journal operation carried in properties.action.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	return a == ActionAdd || a == ActionUpdate || a == ActionDelete
}

// Feature is one GeoJSON feature object.
type Feature map[string]any

// NewFeature returns a Feature with the given id and properties and a null
// geometry.
func NewFeature(id string, props map[string]any) Feature {
	p := make(map[string]any, len(props)+1)
	for k, v := range props {
		p[k] = v
	}
	p["id"] = id
	return Feature{"type": "Feature", "geometry": nil, "properties": p}
}

// Properties returns the properties object, or nil when the feature has none.
func (f Feature) Properties() map[string]any {
	p, _ := f["properties"].(map[string]any)
	return p
}

// ID returns properties.id, falling back to the top-level id member.
func (f Feature) ID() (string, bool) {
	if p := f.Properties(); p != nil {
		if s, ok := idString(p["id"]); ok {
			return s, true
		}
	}
	return idString(f["id"])
}

// Action returns properties.action. Absent means update.
func (f Feature) Action() Action {
	if p := f.Properties(); p != nil {
		if s, ok := p["action"].(string); ok && s != "" {
			return Action(s)
		}
	}
	return ActionUpdate
}

// SetProperty sets a key in the properties object, creating it if needed.
func (f Feature) SetProperty(key string, value any) {
	p := f.Properties()
	if p == nil {
		p = map[string]any{}
		f["properties"] = p
	}
	p[key] = value
}

// Clone returns a deep copy.
func (f Feature) Clone() Feature {
	if f == nil {
		return nil
	}
	return Feature(cloneMap(f))
}

func idString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

// FeatureCollection is a decoded artifact. Members holds every top-level key
// other than "features" so a rewrite preserves them.
type FeatureCollection struct {
	Members  map[string]any
	Features []Feature
}

// NewFeatureCollection returns an empty collection of type FeatureCollection.
func NewFeatureCollection(features ...Feature) *FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return &FeatureCollection{
		Members:  map[string]any{"type": "FeatureCollection"},
		Features: features,
	}
}

// Decode parses an artifact. A document without a top-level features array is
// rejected.
func Decode(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return &fc, nil
}

// Encode serialises the collection with two-space indentation, the format the
// artifacts are stored in.
func Encode(fc *FeatureCollection) ([]byte, error) {
	if fc == nil {
		return nil, fmt.Errorf("%w: nil feature collection", apperr.ErrInvalidInput)
	}
	return json.MarshalIndent(fc, "", "  ")
}

// UnmarshalJSON keeps numbers as json.Number so ids and values beyond float64
// precision are written back exactly as read.
func (fc *FeatureCollection) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := decodeNumbers(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	arr, ok := raw["features"].([]any)
	if !ok {
		return fmt.Errorf("%w: missing top-level features array", apperr.ErrInvalidInput)
	}
	delete(raw, "features")

	fc.Members = raw
	fc.Features = make([]Feature, 0, len(arr))
	for i, it := range arr {
		m, ok := it.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: feature %d is not an object", apperr.ErrInvalidInput, i)
		}
		fc.Features = append(fc.Features, Feature(m))
	}
	return nil
}

// DecodeFeature parses a single feature, keeping numbers as json.Number.
func DecodeFeature(data []byte) (Feature, error) {
	var f Feature
	if err := decodeNumbers(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: feature is not an object", apperr.ErrInvalidInput)
	}
	return f, nil
}

func decodeNumbers(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

func (fc FeatureCollection) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(fc.Members)+1)
	for k, v := range fc.Members {
		out[k] = v
	}
	features := fc.Features
	if features == nil {
		features = []Feature{}
	}
	out["features"] = features
	return json.Marshal(out)
}

// Clone returns a deep copy; a nil collection clones to nil.
func (fc *FeatureCollection) Clone() *FeatureCollection {
	if fc == nil {
		return nil
	}
	out := &FeatureCollection{
		Members:  cloneMap(fc.Members),
		Features: make([]Feature, len(fc.Features)),
	}
	for i, f := range fc.Features {
		out.Features[i] = f.Clone()
	}
	return out
}

// Find returns the index of the first feature with the given id, or -1.
func (fc *FeatureCollection) Find(id string) int {
	if fc == nil {
		return -1
	}
	for i, f := range fc.Features {
		if fid, ok := f.ID(); ok && fid == id {
			return i
		}
	}
	return -1
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Feature:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
