package unit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/wayfinder-backend/internal/platform/apperr"
)

// Campaign is a time-boxed promotion shown on a unit page.
type Campaign struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Active      bool       `json:"active"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// Content is the attribute block of a unit. Keys without a field land in
// Extra and are written back unchanged.
type Content struct {
	Category    string     `json:"category,omitempty"`
	Subtype     string     `json:"subtype,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	IsSpecial   bool       `json:"is_special,omitempty"`
	Status      string     `json:"status,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Hours       string     `json:"hours,omitempty"`
	Promotion   string     `json:"promotion,omitempty"`
	Description string     `json:"description,omitempty"`
	HeaderImage string     `json:"header_image,omitempty"`
	Logo        string     `json:"logo,omitempty"`
	Website     string     `json:"website,omitempty"`
	Email       string     `json:"email,omitempty"`
	Instagram   string     `json:"instagram,omitempty"`
	Twitter     string     `json:"twitter,omitempty"`
	Services    []string   `json:"services,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Gallery     []string   `json:"gallery,omitempty"`
	Campaigns   []Campaign `json:"campaigns,omitempty"`

	Extra map[string]any `json:"-"`
}

// contentFields is an alias without the JSON methods.
type contentFields Content

var knownKeys = map[string]bool{
	"category": true, "subtype": true, "icon": true, "is_special": true, "status": true,
	"phone": true, "hours": true, "promotion": true, "description": true, "header_image": true,
	"logo": true, "website": true, "email": true, "instagram": true, "twitter": true,
	"services": true, "tags": true, "gallery": true, "campaigns": true,
}

func (c Content) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(contentFields(c))
	if err != nil || len(c.Extra) == 0 {
		return b, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if !knownKeys[k] {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func (c *Content) UnmarshalJSON(b []byte) error {
	var fields contentFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*c = Content(fields)
	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if c.Extra == nil {
			c.Extra = map[string]any{}
		}
		c.Extra[k] = v
	}
	return nil
}

// Set writes one attribute, coercing loosely typed input from forms and
// JSON bodies. Unknown keys are kept in Extra.
func (c *Content) Set(key string, value any) error {
	var err error
	switch key {
	case "category":
		c.Category, err = asString(key, value)
	case "subtype":
		c.Subtype, err = asString(key, value)
	case "icon":
		c.Icon, err = asString(key, value)
	case "is_special":
		c.IsSpecial, err = asBool(key, value)
	case "status":
		c.Status, err = asString(key, value)
	case "phone":
		c.Phone, err = asString(key, value)
	case "hours":
		c.Hours, err = asString(key, value)
	case "promotion":
		c.Promotion, err = asString(key, value)
	case "description":
		c.Description, err = asString(key, value)
	case "header_image":
		c.HeaderImage, err = asString(key, value)
	case "logo":
		c.Logo, err = asString(key, value)
	case "website":
		c.Website, err = asString(key, value)
	case "email":
		c.Email, err = asString(key, value)
	case "instagram":
		c.Instagram, err = asString(key, value)
	case "twitter":
		c.Twitter, err = asString(key, value)
	case "services":
		c.Services, err = asStrings(key, value)
	case "tags":
		c.Tags, err = asStrings(key, value)
	case "gallery":
		c.Gallery, err = asStrings(key, value)
	case "campaigns":
		c.Campaigns, err = asCampaigns(value)
	default:
		if c.Extra == nil {
			c.Extra = map[string]any{}
		}
		c.Extra[key] = value
	}
	return err
}

func asString(key string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64, int, int64, bool, json.Number:
		return fmt.Sprint(t), nil
	}
	return "", fmt.Errorf("%w: %s must be a string", apperr.ErrInvalidInput, key)
}

func asBool(key string, v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err == nil {
			return b, nil
		}
	case float64:
		return t != 0, nil
	}
	return false, fmt.Errorf("%w: %s must be a boolean", apperr.ErrInvalidInput, key)
}

// asStrings accepts a list or a comma separated string.
func asStrings(key string, v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), nil
	case string:
		var out []string
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must hold strings", apperr.ErrInvalidInput, key)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s must be a list", apperr.ErrInvalidInput, key)
}

func asCampaigns(v any) ([]Campaign, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: campaigns: %v", apperr.ErrInvalidInput, err)
	}
	var out []Campaign
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: campaigns: %v", apperr.ErrInvalidInput, err)
	}
	return out, nil
}

// Unit is a navigable room of a venue floor. RoomID is unique within the
// venue and equals the id of the unit's feature in the floor artifacts.
type Unit struct {
	ID         uuid.UUID       `json:"id"`
	VenueID    uuid.UUID       `json:"venue_id"`
	RoomID     string          `json:"room_id"`
	Floor      int             `json:"floor"`
	Name       string          `json:"name"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	Content    Content         `json:"content"`
	OwnerID    *uuid.UUID      `json:"owner_id,omitempty"`
	NeedsSync  bool            `json:"needs_sync"`
	LastSynced *time.Time      `json:"last_synced,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// FeatureProperties returns the properties a unit publishes on its floor
// feature. Absent attributes fall back to their defaults.
func (u *Unit) FeatureProperties(now time.Time) map[string]any {
	c := u.Content
	return map[string]any{
		"name":         u.Name,
		"category":     orDefault(c.Category, "general"),
		"subtype":      c.Subtype,
		"icon":         c.Icon,
		"is_special":   c.IsSpecial,
		"status":       orDefault(c.Status, "open"),
		"phone":        c.Phone,
		"hours":        c.Hours,
		"promotion":    c.Promotion,
		"description":  c.Description,
		"header_image": c.HeaderImage,
		"logo":         c.Logo,
		"website":      c.Website,
		"email":        c.Email,
		"instagram":    c.Instagram,
		"twitter":      c.Twitter,
		"services":     orEmpty(c.Services),
		"tags":         orEmpty(c.Tags),
		"updated_at":   now.UTC().Format(time.RFC3339),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orEmpty(s []string) []any {
	out := make([]any, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	return out
}

// CanonicalMediaPath drops a cache-busting query suffix from a stored media
// path. Inline data URIs are returned unchanged.
func CanonicalMediaPath(p string) string {
	if strings.HasPrefix(p, "data:") {
		return p
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

// UpsertRequest is the payload for creating or replacing a unit by room id.
type UpsertRequest struct {
	RoomID   string          `json:"room_id"`
	Floor    int             `json:"floor"`
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
	Content  Content         `json:"content"`
	OwnerID  string          `json:"owner_id,omitempty"`
}
