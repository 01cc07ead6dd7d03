package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

type service struct {
	repo Repository
}

// NewService creates a new user service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) RegisterUser(ctx context.Context, req RegisterRequest) (*User, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperr.ErrInvalidInput)
	}
	role := Role(req.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidInput, req.Role)
	}

	user := &User{
		ID:        uuid.New(),
		Email:     email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
		RoomID:    req.RoomID,
	}
	if role != RoleAdmin {
		venueID, err := uuid.Parse(req.VenueID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s requires a venue_id", apperr.ErrInvalidInput, role)
		}
		user.VenueID = &venueID
	}
	if role == RoleUnitOwner && req.RoomID == "" {
		return nil, fmt.Errorf("%w: unit_owner requires a room_id", apperr.ErrInvalidInput)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = string(hashedPassword)

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}
