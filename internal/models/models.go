package models

import "time"

// DefaultEventID is the event every visitor belongs to unless configured otherwise
const DefaultEventID = "00000000-0000-0000-0000-000000000001"

// Visitor represents a pre-registered event visitor
type Visitor struct {
	ID         string    `json:"id"`
	Ref        string    `json:"ref"`
	Name       string    `json:"name"`
	LastName   string    `json:"last_name"`
	Company    string    `json:"company"`
	Position   string    `json:"position"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	EventID    string    `json:"event_id"`
	Registered bool      `json:"registered"`
	PhotoURL   *string   `json:"photo_url"`
	QRURL      *string   `json:"qr_url"`
	BadgeURL   *string   `json:"badge_url"`
	CardURL    *string   `json:"card_url"`
	PrintURL   *string   `json:"print_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FullName returns name and last name joined by a space
func (v *Visitor) FullName() string {
	if v.LastName == "" {
		return v.Name
	}
	return v.Name + " " + v.LastName
}

// PrintableURL returns the best asset for printing: print, then card, then badge
func (v *Visitor) PrintableURL() string {
	for _, u := range []*string{v.PrintURL, v.CardURL, v.BadgeURL} {
		if u != nil && *u != "" {
			return *u
		}
	}
	return ""
}

// RegistrationUpdate holds the asset URLs written when a visitor completes registration
type RegistrationUpdate struct {
	PhotoURL string
	BadgeURL string
	CardURL  string
	PrintURL string
}

// AvatarStyle selects the prompt used for avatar generation
type AvatarStyle string

const (
	StylePhotoShoot AvatarStyle = "photo-shoot"
	StyleAnime      AvatarStyle = "anime"
	StyleGlam80s    AvatarStyle = "80s-Glam"
)

// DefaultAvatarStyle is preselected by the kiosk. Badges stored before a
// session started are assumed to use it.
const DefaultAvatarStyle = StylePhotoShoot

// AvatarStyles lists every supported avatar style
var AvatarStyles = []AvatarStyle{StylePhotoShoot, StyleAnime, StyleGlam80s}

// Valid reports whether s is one of the supported styles
func (s AvatarStyle) Valid() bool {
	for _, style := range AvatarStyles {
		if s == style {
			return true
		}
	}
	return false
}

// StringPtr returns nil for an empty string, otherwise a pointer to s
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or ""
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
