package unit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL unit repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const unitColumns = `id,venue_id,room_id,floor,name,geometry,content,owner_id,needs_sync,last_synced,created_at,updated_at`

func (r *postgresRepo) Upsert(ctx context.Context, u *Unit) error {
	content, err := json.Marshal(u.Content)
	if err != nil {
		return fmt.Errorf("failed to encode unit content: %w", err)
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO units (id,venue_id,room_id,floor,name,geometry,content,owner_id,needs_sync,last_synced)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (venue_id, room_id) DO UPDATE SET
		    floor=EXCLUDED.floor, name=EXCLUDED.name, geometry=EXCLUDED.geometry,
		    content=EXCLUDED.content, owner_id=EXCLUDED.owner_id,
		    needs_sync=EXCLUDED.needs_sync, last_synced=EXCLUDED.last_synced,
		    updated_at=now()
		RETURNING id, created_at, updated_at`,
		u.ID, u.VenueID, u.RoomID, u.Floor, u.Name, nullJSON(u.Geometry), content,
		u.OwnerID, u.NeedsSync, u.LastSynced,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *postgresRepo) Save(ctx context.Context, u *Unit) error {
	content, err := json.Marshal(u.Content)
	if err != nil {
		return fmt.Errorf("failed to encode unit content: %w", err)
	}
	u.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE units SET floor=$1,name=$2,geometry=$3,content=$4,owner_id=$5,
		needs_sync=$6,last_synced=$7,updated_at=$8 WHERE id=$9`,
		u.Floor, u.Name, nullJSON(u.Geometry), content, u.OwnerID,
		u.NeedsSync, u.LastSynced, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unit %s: %w", u.ID, apperr.ErrNotFound)
	}
	return nil
}

func (r *postgresRepo) GetByRoomID(ctx context.Context, venueID, roomID string) (*Unit, error) {
	vid, err := uuid.Parse(venueID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid venue id: %v", apperr.ErrInvalidInput, err)
	}
	u, err := scanUnit(r.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE venue_id=$1 AND room_id=$2`, vid, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit %s/%s: %w", venueID, roomID, apperr.ErrNotFound)
	}
	return u, err
}

func (r *postgresRepo) ListByVenue(ctx context.Context, venueID string) ([]*Unit, error) {
	vid, err := uuid.Parse(venueID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid venue id: %v", apperr.ErrInvalidInput, err)
	}
	return r.list(ctx, `SELECT `+unitColumns+` FROM units WHERE venue_id=$1 ORDER BY floor, room_id`, vid)
}

func (r *postgresRepo) ListNeedsSync(ctx context.Context) ([]*Unit, error) {
	return r.list(ctx, `SELECT `+unitColumns+` FROM units WHERE needs_sync ORDER BY venue_id, floor, room_id`)
}

func (r *postgresRepo) ListAll(ctx context.Context) ([]*Unit, error) {
	return r.list(ctx, `SELECT `+unitColumns+` FROM units ORDER BY venue_id, floor, room_id`)
}

func (r *postgresRepo) list(ctx context.Context, query string, args ...interface{}) ([]*Unit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// ── scanners ──────────────────────────────────────────────────────────────────

type unitScanner interface {
	Scan(dest ...interface{}) error
}

func scanUnit(row unitScanner) (*Unit, error) {
	u := &Unit{}
	var geometry, content []byte
	var ownerID uuid.NullUUID
	var lastSynced sql.NullTime
	if err := row.Scan(&u.ID, &u.VenueID, &u.RoomID, &u.Floor, &u.Name, &geometry, &content,
		&ownerID, &u.NeedsSync, &lastSynced, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if len(geometry) > 0 {
		u.Geometry = json.RawMessage(geometry)
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &u.Content); err != nil {
			return nil, fmt.Errorf("unit %s content: %w", u.RoomID, err)
		}
	}
	if ownerID.Valid {
		u.OwnerID = &ownerID.UUID
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		u.LastSynced = &t
	}
	return u, nil
}

func nullJSON(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
