package unit

import "context"

// Repository defines the interface for unit data storage. Lookups of a
// missing unit return an error wrapping apperr.ErrNotFound.
type Repository interface {
	// Upsert inserts the unit or overwrites the one with the same
	// (venue, room) pair, adopting its id.
	Upsert(ctx context.Context, u *Unit) error
	Save(ctx context.Context, u *Unit) error
	GetByRoomID(ctx context.Context, venueID, roomID string) (*Unit, error)
	ListByVenue(ctx context.Context, venueID string) ([]*Unit, error)
	ListNeedsSync(ctx context.Context) ([]*Unit, error)
	ListAll(ctx context.Context) ([]*Unit, error)
}
