package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/user"
	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Claims is the token payload: the standard claims plus the principal's scope.
type Claims struct {
	Role    user.Role `json:"role"`
	VenueID string    `json:"venue_id,omitempty"`
	RoomID  string    `json:"room_id,omitempty"`
	jwt.StandardClaims
}

type service struct {
	userRepo user.Repository
	jwtKey   []byte
	ttl      time.Duration
}

// NewService creates a new auth service signing HS256 tokens with secret.
func NewService(userRepo user.Repository, secret string, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &service{userRepo: userRepo, jwtKey: []byte(secret), ttl: ttl}
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)
	}

	claims := &Claims{
		Role:   u.Role,
		RoomID: u.RoomID,
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID.String(),
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(s.ttl).Unix(),
		},
	}
	if u.VenueID != nil {
		claims.VenueID = u.VenueID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtKey)
}

func (s *service) Verify(_ context.Context, tokenString string) (*Principal, error) {
	if tokenString == "" {
		return nil, apperr.ErrUnauthenticated
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidToken, err)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", apperr.ErrInvalidToken, claims.Role)
	}
	return &Principal{
		ID:      claims.Subject,
		Role:    claims.Role,
		VenueID: claims.VenueID,
		RoomID:  claims.RoomID,
	}, nil
}
