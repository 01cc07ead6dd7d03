package venue

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/user"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Service defines venue business logic.
type Service interface {
	// UpsertVenue creates the venue or updates the one holding req.Slug.
	// Creating requires admin; updating requires admin or the venue owner.
	UpsertVenue(ctx context.Context, p *auth.Principal, req UpsertRequest) (*Venue, error)
	GetVenue(ctx context.Context, id string) (*Venue, error)
	GetVenueBySlug(ctx context.Context, slug string) (*Venue, error)
	ListVenues(ctx context.Context, publishedOnly bool) ([]*Venue, error)
	SetStatus(ctx context.Context, p *auth.Principal, id string, status Status) (*Venue, error)
	// CheckSlugRename must pass before a slug rename is started. It also
	// passes when an earlier run already moved the record to newSlug, so an
	// interrupted rename can be finished.
	CheckSlugRename(ctx context.Context, oldSlug, newSlug string) error
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether s can be used as a storage path segment.
func ValidSlug(s string) bool { return slugPattern.MatchString(s) }

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (s *service) UpsertVenue(ctx context.Context, p *auth.Principal, req UpsertRequest) (*Venue, error) {
	req.Slug = strings.TrimSpace(req.Slug)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}
	if !ValidSlug(req.Slug) {
		return nil, fmt.Errorf("%w: invalid slug %q", apperr.ErrInvalidInput, req.Slug)
	}

	existing, err := s.repo.GetBySlug(ctx, req.Slug)
	switch {
	case err == nil:
		if err := auth.Authorize(p, existing.ID.String(), ""); err != nil {
			return nil, err
		}
	case errors.Is(err, apperr.ErrNotFound):
		if p == nil || p.Role != user.RoleAdmin {
			return nil, fmt.Errorf("%w: only admins create venues", apperr.ErrForbidden)
		}
	default:
		return nil, err
	}

	v := &Venue{
		ID:          uuid.New(),
		Name:        req.Name,
		Slug:        req.Slug,
		CenterLat:   req.CenterLat,
		CenterLng:   req.CenterLng,
		Zoom:        req.Zoom,
		Status:      StatusDraft,
		Floors:      req.Floors,
		FloorPhotos: req.FloorPhotos,
		Content:     req.Content,
	}
	if v.Zoom == 0 {
		v.Zoom = 18
	}
	if v.Floors == nil {
		v.Floors = map[int]string{}
	}
	if v.FloorPhotos == nil {
		v.FloorPhotos = map[int]string{}
	}
	if existing != nil {
		v.Status = existing.Status
		v.OwnerID = existing.OwnerID
	}
	if req.OwnerID != "" {
		ownerID, err := uuid.Parse(req.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid owner_id: %v", apperr.ErrInvalidInput, err)
		}
		v.OwnerID = &ownerID
	}

	if err := s.repo.Upsert(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to upsert venue %s: %w", v.Slug, err)
	}
	s.logger.Info("venue upserted", zap.String("slug", v.Slug), zap.String("venue_id", v.ID.String()))
	return v, nil
}

func (s *service) GetVenue(ctx context.Context, id string) (*Venue, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetVenueBySlug(ctx context.Context, slug string) (*Venue, error) {
	return s.repo.GetBySlug(ctx, slug)
}

func (s *service) ListVenues(ctx context.Context, publishedOnly bool) ([]*Venue, error) {
	venues, err := s.repo.List(ctx)
	if err != nil || !publishedOnly {
		return venues, err
	}
	out := venues[:0]
	for _, v := range venues {
		if v.Status == StatusPublished {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *service) SetStatus(ctx context.Context, p *auth.Principal, id string, status Status) (*Venue, error) {
	if status != StatusDraft && status != StatusPublished {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidInput, status)
	}
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, v.ID.String(), ""); err != nil {
		return nil, err
	}
	v.Status = status
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *service) CheckSlugRename(ctx context.Context, oldSlug, newSlug string) error {
	if !ValidSlug(newSlug) {
		return fmt.Errorf("%w: invalid slug %q", apperr.ErrInvalidInput, newSlug)
	}
	if oldSlug == newSlug {
		return fmt.Errorf("%w: venue is already named %q", apperr.ErrInvalidInput, newSlug)
	}
	src, err := s.repo.GetBySlug(ctx, oldSlug)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	dst, err := s.repo.GetBySlug(ctx, newSlug)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	switch {
	case src == nil && dst == nil:
		return fmt.Errorf("venue %s: %w", oldSlug, apperr.ErrNotFound)
	case dst == nil:
		return nil
	case src == nil:
		s.logger.Info("resuming slug rename", zap.String("from", oldSlug), zap.String("to", newSlug))
		return nil
	default:
		return fmt.Errorf("%w: slug %q is taken", apperr.ErrInvalidInput, newSlug)
	}
}
