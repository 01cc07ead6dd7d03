package geojson

import "fmt"

// Diagnostic describes a journal entry that was skipped or reinterpreted.
type Diagnostic struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	if d.ID != "" {
		return fmt.Sprintf("journal[%d] (%s): %s", d.Index, d.ID, d.Reason)
	}
	return fmt.Sprintf("journal[%d]: %s", d.Index, d.Reason)
}

// Merge layers the update journal over the base collection and returns the
// resulting collection. Neither input is modified.
//
// Entries are applied in journal order against an accumulating feature list:
//   - add appends, even when the id is already present
//   - delete removes the first feature with the id, if any
//   - update (or no action) merges top-level members and properties into the
//     first feature with the id; with no match it appends like add
//
// Entries without an id are skipped and reported. With no base the journal
// itself is returned; with no journal entries the base is returned.
func Merge(base, journal *FeatureCollection) (*FeatureCollection, []Diagnostic) {
	if base == nil {
		if journal == nil {
			return NewFeatureCollection(), nil
		}
		return journal.Clone(), nil
	}
	result := base.Clone()
	if result.Features == nil {
		result.Features = []Feature{}
	}
	if journal == nil || len(journal.Features) == 0 {
		return result, nil
	}

	var diags []Diagnostic
	for i, entry := range journal.Features {
		id, ok := entry.ID()
		if !ok {
			diags = append(diags, Diagnostic{Index: i, Reason: "missing id, entry skipped"})
			continue
		}
		action := entry.Action()
		if !action.Valid() {
			diags = append(diags, Diagnostic{Index: i, ID: id, Reason: fmt.Sprintf("unknown action %q, applied as update", action)})
			action = ActionUpdate
		}

		switch action {
		case ActionAdd:
			result.Features = append(result.Features, stripAction(entry))
		case ActionDelete:
			if idx := result.Find(id); idx >= 0 {
				result.Features = append(result.Features[:idx], result.Features[idx+1:]...)
			}
		case ActionUpdate:
			idx := result.Find(id)
			if idx < 0 {
				result.Features = append(result.Features, stripAction(entry))
				continue
			}
			result.Features[idx] = applyUpdate(result.Features[idx], entry)
		}
	}
	return result, diags
}

// applyUpdate copies the entry's top-level members over target and merges the
// properties one level deep, entry keys winning.
func applyUpdate(target, entry Feature) Feature {
	merged := target.Clone()
	baseProps := merged.Properties()
	for k, v := range entry {
		if k == "properties" {
			continue
		}
		merged[k] = cloneValue(v)
	}
	props := make(map[string]any, len(baseProps))
	for k, v := range baseProps {
		props[k] = v
	}
	for k, v := range entry.Properties() {
		if k == "action" {
			continue
		}
		props[k] = cloneValue(v)
	}
	merged["properties"] = props
	return merged
}

func stripAction(f Feature) Feature {
	out := f.Clone()
	if p := out.Properties(); p != nil {
		delete(p, "action")
	}
	return out
}
