package venue

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the publication state of a venue.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Content is the free-form block shown on the venue page.
type Content struct {
	Description string   `json:"description,omitempty"`
	Logo        string   `json:"logo,omitempty"`
	HeaderImage string   `json:"header_image,omitempty"`
	Gallery     []string `json:"gallery,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Website     string   `json:"website,omitempty"`
	Hours       string   `json:"hours,omitempty"`
	Amenities   []string `json:"amenities,omitempty"`
}

// Venue is a place divided into floors. Slug is the stable external key every
// artifact path is derived from.
type Venue struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	CenterLat   float64        `json:"center_lat"`
	CenterLng   float64        `json:"center_lng"`
	Zoom        float64        `json:"zoom"`
	Status      Status         `json:"status"`
	Floors      map[int]string `json:"floors"`       // floor -> base artifact path
	FloorPhotos map[int]string `json:"floor_photos"` // floor -> photo path
	Content     Content        `json:"content"`
	OwnerID     *uuid.UUID     `json:"owner_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// FloorNumbers returns the venue's floors in ascending order.
func (v *Venue) FloorNumbers() []int {
	out := make([]int, 0, len(v.Floors))
	for f := range v.Floors {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// UpsertRequest is the payload for creating or updating a venue by slug.
type UpsertRequest struct {
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	CenterLat   float64        `json:"center_lat"`
	CenterLng   float64        `json:"center_lng"`
	Zoom        float64        `json:"zoom"`
	Floors      map[int]string `json:"floors"`
	FloorPhotos map[int]string `json:"floor_photos"`
	Content     Content        `json:"content"`
	OwnerID     string         `json:"owner_id,omitempty"`
}
