package unit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// MemoryRepository keeps units in process memory, keyed by venue and room.
type MemoryRepository struct {
	mu    sync.RWMutex
	units map[string]*Unit // venue_id/room_id -> unit

	// FailSave makes Save return this error.
	FailSave error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{units: map[string]*Unit{}}
}

func key(venueID, roomID string) string { return venueID + "/" + roomID }

func (r *MemoryRepository) Upsert(_ context.Context, u *Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	k := key(u.VenueID.String(), u.RoomID)
	if existing, ok := r.units[k]; ok {
		u.ID = existing.ID
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.units[k] = clone(u)
	return nil
}

func (r *MemoryRepository) Save(_ context.Context, u *Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	k := key(u.VenueID.String(), u.RoomID)
	existing, ok := r.units[k]
	if !ok || existing.ID != u.ID {
		return fmt.Errorf("unit %s: %w", u.ID, apperr.ErrNotFound)
	}
	u.UpdatedAt = time.Now().UTC()
	r.units[k] = clone(u)
	return nil
}

func (r *MemoryRepository) GetByRoomID(_ context.Context, venueID, roomID string) (*Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[key(venueID, roomID)]
	if !ok {
		return nil, fmt.Errorf("unit %s/%s: %w", venueID, roomID, apperr.ErrNotFound)
	}
	return clone(u), nil
}

func (r *MemoryRepository) ListByVenue(_ context.Context, venueID string) ([]*Unit, error) {
	return r.filter(func(u *Unit) bool { return u.VenueID.String() == venueID }), nil
}

func (r *MemoryRepository) ListNeedsSync(_ context.Context) ([]*Unit, error) {
	return r.filter(func(u *Unit) bool { return u.NeedsSync }), nil
}

func (r *MemoryRepository) ListAll(_ context.Context) ([]*Unit, error) {
	return r.filter(func(*Unit) bool { return true }), nil
}

func (r *MemoryRepository) filter(keep func(*Unit) bool) []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Unit
	for _, u := range r.units {
		if keep(u) {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.VenueID != b.VenueID {
			return a.VenueID.String() < b.VenueID.String()
		}
		if a.Floor != b.Floor {
			return a.Floor < b.Floor
		}
		return a.RoomID < b.RoomID
	})
	return out
}

func clone(u *Unit) *Unit {
	b, _ := json.Marshal(u)
	out := &Unit{}
	_ = json.Unmarshal(b, out)
	return out
}
