package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

var userColumns = []string{"id", "email", "password_hash", "first_name", "last_name", "role", "venue_id", "room_id", "created_at", "updated_at"}

func TestPostgres_GetUserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	id, venueID := uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("owner@mall.test").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(id.String(), "owner@mall.test", "hash", "Ada", "", "unit_owner", venueID.String(), "R-1", now, now))

	u, err := repo.GetUserByEmail(context.Background(), "owner@mall.test")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, RoleUnitOwner, u.Role)
	require.NotNil(t, u.VenueID)
	assert.Equal(t, venueID, *u.VenueID)
	assert.Equal(t, "R-1", u.RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetUserByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err = repo.GetUserByID(context.Background(), id.String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = repo.GetUserByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	u := &User{ID: uuid.New(), Email: "admin@x.test", PasswordHash: "h", Role: RoleAdmin}
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Email, "h", "", "", RoleAdmin, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.CreateUser(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}
