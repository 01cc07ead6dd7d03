package auth

import (
	"fmt"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/user"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Authorize checks p may act on the venue, and on the room when roomID is set.
//
//	admin        any venue, any room
//	venue_owner  only rooms of its own venue
//	unit_owner   only its own room within its own venue
func Authorize(p *Principal, venueID, roomID string) error {
	if p == nil {
		return apperr.ErrUnauthenticated
	}
	switch p.Role {
	case user.RoleAdmin:
		return nil
	case user.RoleVenueOwner:
		if p.VenueID != "" && p.VenueID == venueID {
			return nil
		}
	case user.RoleUnitOwner:
		if p.VenueID != "" && p.VenueID == venueID && roomID != "" && p.RoomID == roomID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s may not act on venue %s room %q", apperr.ErrForbidden, p.Role, p.ID, venueID, roomID)
}
