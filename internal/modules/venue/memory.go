package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// MemoryRepository keeps venues in process memory. Stored values are deep
// copies so callers cannot mutate them behind the repository's back.
type MemoryRepository struct {
	mu     sync.RWMutex
	venues map[string]*Venue // id -> venue

	// FailSave makes Save return this error; tests use it to simulate a
	// record store outage.
	FailSave error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{venues: map[string]*Venue{}}
}

func (r *MemoryRepository) Upsert(_ context.Context, v *Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for id, existing := range r.venues {
		if existing.Slug == v.Slug {
			v.ID = existing.ID
			v.CreatedAt = existing.CreatedAt
			v.UpdatedAt = now
			r.venues[id] = clone(v)
			return nil
		}
	}
	v.CreatedAt, v.UpdatedAt = now, now
	r.venues[v.ID.String()] = clone(v)
	return nil
}

func (r *MemoryRepository) Save(_ context.Context, v *Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	if _, ok := r.venues[v.ID.String()]; !ok {
		return fmt.Errorf("venue %s: %w", v.ID, apperr.ErrNotFound)
	}
	v.UpdatedAt = time.Now().UTC()
	r.venues[v.ID.String()] = clone(v)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venues[id]
	if !ok {
		return nil, fmt.Errorf("venue %s: %w", id, apperr.ErrNotFound)
	}
	return clone(v), nil
}

func (r *MemoryRepository) GetBySlug(_ context.Context, slug string) (*Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.venues {
		if v.Slug == slug {
			return clone(v), nil
		}
	}
	return nil, fmt.Errorf("venue %s: %w", slug, apperr.ErrNotFound)
}

func (r *MemoryRepository) List(_ context.Context) ([]*Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Venue, 0, len(r.venues))
	for _, v := range r.venues {
		out = append(out, clone(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func clone(v *Venue) *Venue {
	b, _ := json.Marshal(v)
	out := &Venue{}
	_ = json.Unmarshal(b, out)
	return out
}
