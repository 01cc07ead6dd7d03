package venue

import "context"

// Repository defines the interface for venue data storage. Lookups of a
// missing venue return an error wrapping apperr.ErrNotFound.
type Repository interface {
	// Upsert inserts the venue or, when the slug exists, overwrites it and
	// adopts the stored id.
	Upsert(ctx context.Context, v *Venue) error
	// Save overwrites the venue with the same id, slug included.
	Save(ctx context.Context, v *Venue) error
	GetByID(ctx context.Context, id string) (*Venue, error)
	GetBySlug(ctx context.Context, slug string) (*Venue, error)
	List(ctx context.Context) ([]*Venue, error)
}
