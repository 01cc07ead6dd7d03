package venue

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

// NewPostgresRepository creates a new PostgreSQL venue repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const venueColumns = `id,name,slug,center_lat,center_lng,zoom,status,floors,floor_photos,content,owner_id,created_at,updated_at`

func (r *postgresRepo) Upsert(ctx context.Context, v *Venue) error {
	floors, photos, content, err := encodeJSONColumns(v)
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO venues (id,name,slug,center_lat,center_lng,zoom,status,floors,floor_photos,content,owner_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (slug) DO UPDATE SET
		    name=EXCLUDED.name, center_lat=EXCLUDED.center_lat, center_lng=EXCLUDED.center_lng,
		    zoom=EXCLUDED.zoom, status=EXCLUDED.status, floors=EXCLUDED.floors,
		    floor_photos=EXCLUDED.floor_photos, content=EXCLUDED.content, owner_id=EXCLUDED.owner_id,
		    updated_at=now()
		RETURNING id, created_at, updated_at`,
		v.ID, v.Name, v.Slug, v.CenterLat, v.CenterLng, v.Zoom, v.Status,
		floors, photos, content, v.OwnerID,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
}

func (r *postgresRepo) Save(ctx context.Context, v *Venue) error {
	floors, photos, content, err := encodeJSONColumns(v)
	if err != nil {
		return err
	}
	v.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE venues SET name=$1,slug=$2,center_lat=$3,center_lng=$4,zoom=$5,status=$6,
		floors=$7,floor_photos=$8,content=$9,owner_id=$10,updated_at=$11 WHERE id=$12`,
		v.Name, v.Slug, v.CenterLat, v.CenterLng, v.Zoom, v.Status,
		floors, photos, content, v.OwnerID, v.UpdatedAt, v.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("venue %s: %w", v.ID, apperr.ErrNotFound)
	}
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*Venue, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid venue id: %v", apperr.ErrInvalidInput, err)
	}
	return r.scanVenue(r.db.QueryRowContext(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE id=$1`, parsed), id)
}

func (r *postgresRepo) GetBySlug(ctx context.Context, slug string) (*Venue, error) {
	return r.scanVenue(r.db.QueryRowContext(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE slug=$1`, slug), slug)
}

func (r *postgresRepo) List(ctx context.Context) ([]*Venue, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY slug ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var venues []*Venue
	for rows.Next() {
		v, err := r.scanVenue(rows, "")
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// ── scanners ──────────────────────────────────────────────────────────────────

type venueScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postgresRepo) scanVenue(row venueScanner, key string) (*Venue, error) {
	v := &Venue{}
	var floors, photos, content []byte
	var ownerID uuid.NullUUID
	err := row.Scan(&v.ID, &v.Name, &v.Slug, &v.CenterLat, &v.CenterLng, &v.Zoom, &v.Status,
		&floors, &photos, &content, &ownerID, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("venue %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if ownerID.Valid {
		v.OwnerID = &ownerID.UUID
	}
	if err := decodeJSONColumn(floors, &v.Floors); err != nil {
		return nil, fmt.Errorf("venue %s floors: %w", v.Slug, err)
	}
	if err := decodeJSONColumn(photos, &v.FloorPhotos); err != nil {
		return nil, fmt.Errorf("venue %s floor_photos: %w", v.Slug, err)
	}
	if err := decodeJSONColumn(content, &v.Content); err != nil {
		return nil, fmt.Errorf("venue %s content: %w", v.Slug, err)
	}
	return v, nil
}

func encodeJSONColumns(v *Venue) (floors, photos, content []byte, err error) {
	if floors, err = json.Marshal(nonNil(v.Floors)); err != nil {
		return
	}
	if photos, err = json.Marshal(nonNil(v.FloorPhotos)); err != nil {
		return
	}
	content, err = json.Marshal(v.Content)
	return
}

func decodeJSONColumn(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

func nonNil(m map[int]string) map[int]string {
	if m == nil {
		return map[int]string{}
	}
	return m
}
