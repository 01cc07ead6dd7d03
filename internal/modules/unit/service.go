package unit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Service defines unit business logic. Attribute edits that must reach the
// published map go through unitsync instead.
type Service interface {
	UpsertUnit(ctx context.Context, p *auth.Principal, venueID string, req UpsertRequest) (*Unit, error)
	GetUnit(ctx context.Context, venueID, roomID string) (*Unit, error)
	ListUnits(ctx context.Context, venueID string) ([]*Unit, error)
}

type service struct {
	repo   Repository
	venues venue.Repository
	logger *zap.Logger
}

func NewService(repo Repository, venues venue.Repository, logger *zap.Logger) Service {
	return &service{repo: repo, venues: venues, logger: logger}
}

func (s *service) UpsertUnit(ctx context.Context, p *auth.Principal, venueID string, req UpsertRequest) (*Unit, error) {
	req.RoomID = strings.TrimSpace(req.RoomID)
	if req.RoomID == "" {
		return nil, fmt.Errorf("%w: room_id is required", apperr.ErrInvalidInput)
	}
	v, err := s.venues.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, v.ID.String(), ""); err != nil {
		return nil, err
	}

	u := &Unit{
		ID:       uuid.New(),
		VenueID:  v.ID,
		RoomID:   req.RoomID,
		Floor:    req.Floor,
		Name:     req.Name,
		Geometry: req.Geometry,
		Content:  req.Content,
		// a fresh or replaced record has not been published yet
		NeedsSync: true,
	}
	u.Content.Logo = CanonicalMediaPath(u.Content.Logo)
	u.Content.HeaderImage = CanonicalMediaPath(u.Content.HeaderImage)
	if req.OwnerID != "" {
		ownerID, err := uuid.Parse(req.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid owner_id: %v", apperr.ErrInvalidInput, err)
		}
		u.OwnerID = &ownerID
	}

	if err := s.repo.Upsert(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to upsert unit %s: %w", u.RoomID, err)
	}
	s.logger.Info("unit upserted",
		zap.String("venue", v.Slug), zap.String("room_id", u.RoomID), zap.Int("floor", u.Floor))
	return u, nil
}

func (s *service) GetUnit(ctx context.Context, venueID, roomID string) (*Unit, error) {
	return s.repo.GetByRoomID(ctx, venueID, roomID)
}

func (s *service) ListUnits(ctx context.Context, venueID string) ([]*Unit, error) {
	return s.repo.ListByVenue(ctx, venueID)
}
