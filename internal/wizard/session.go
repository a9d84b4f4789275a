package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"badge-kiosk-backend/internal/models"

	"github.com/google/uuid"
)

var ErrInvalidTransition = errors.New("invalid wizard transition")

// Badge is the composited badge currently attached to a session, together
// with the inputs that produced it. URLs are data URLs until the preview is
// confirmed and the assets are uploaded.
type Badge struct {
	Style      models.AvatarStyle `json:"style,omitempty"`
	PhotoURL   string             `json:"photo_url"`
	AvatarURL  string             `json:"avatar_url"`
	DisplayURL string             `json:"display_url"`
	PrintURL   string             `json:"print_url,omitempty"`
	Stored     bool               `json:"stored"`
}

// Session is one registration run for a single visitor
type Session struct {
	ID        string
	Ref       string
	Visitor   *models.Visitor
	Style     models.AvatarStyle
	PhotoURL  string
	Retaken   bool
	Badge     *Badge
	PrintView string
	RawBTURL  string
	CreatedAt time.Time
	UpdatedAt time.Time

	step Step
}

// NewSession starts at Info. A registered visitor's stored photo and badge
// are carried over so the badge is not regenerated unless something changes.
func NewSession(visitor *models.Visitor) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		Ref:       visitor.Ref,
		Visitor:   visitor,
		PhotoURL:  models.Deref(visitor.PhotoURL),
		CreatedAt: now,
		UpdatedAt: now,
		step:      Info{},
	}

	if visitor.Registered && visitor.BadgeURL != nil && s.PhotoURL != "" {
		display := models.Deref(visitor.CardURL)
		if display == "" {
			display = models.Deref(visitor.BadgeURL)
		}
		s.Style = models.DefaultAvatarStyle
		s.Badge = &Badge{
			Style:      models.DefaultAvatarStyle,
			PhotoURL:   s.PhotoURL,
			AvatarURL:  models.Deref(visitor.BadgeURL),
			DisplayURL: display,
			PrintURL:   visitor.PrintableURL(),
			Stored:     true,
		}
	}
	return s
}

// Step returns the current step
func (s *Session) Step() Step {
	return s.step
}

func (s *Session) transition(from StepName, to Step) error {
	if s.step.Name() != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.step.Name(), to.Name())
	}
	s.step = to
	s.UpdatedAt = time.Now()
	return nil
}

// ConfirmInfo moves info -> photo
func (s *Session) ConfirmInfo() error {
	return s.transition(StepInfo, Photo{})
}

// PhotoFailed keeps the session on photo with an inline error
func (s *Session) PhotoFailed(msg string) error {
	return s.transition(StepPhoto, Photo{Error: msg})
}

// ShowPreview moves photo -> preview with the given badge
func (s *Session) ShowPreview(badge *Badge) error {
	if badge == nil {
		return fmt.Errorf("%w: preview without badge", ErrInvalidTransition)
	}
	if err := s.transition(StepPhoto, Preview{}); err != nil {
		return err
	}
	s.Badge = badge
	s.Retaken = false
	return nil
}

// Back moves photo -> info or preview -> photo
func (s *Session) Back() error {
	switch s.step.Name() {
	case StepPhoto:
		return s.transition(StepPhoto, Info{})
	case StepPreview:
		return s.transition(StepPreview, Photo{})
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, s.step.Name())
	}
}

// StartPrinting moves preview -> printing once the badge is persisted
func (s *Session) StartPrinting() error {
	return s.transition(StepPreview, Printing{})
}

// Tick advances printing progress, moving to complete at 100
func (s *Session) Tick() error {
	p, ok := s.step.(Printing)
	if !ok {
		return fmt.Errorf("%w: tick on %s", ErrInvalidTransition, s.step.Name())
	}
	p.Progress += ProgressStep
	if p.Progress >= 100 {
		return s.transition(StepPrinting, Complete{})
	}
	return s.transition(StepPrinting, p)
}

// UsePhoto records a capture. Submitting the current photo again is not a retake.
func (s *Session) UsePhoto(photoURL string) {
	if photoURL == s.PhotoURL {
		return
	}
	s.PhotoURL = photoURL
	s.Retaken = true
}

// NeedsRegeneration reports whether the attached badge is stale for style.
// An empty style keeps the badge's style.
func (s *Session) NeedsRegeneration(style models.AvatarStyle) bool {
	if s.Badge == nil || s.Retaken || s.Badge.PhotoURL != s.PhotoURL {
		return true
	}
	if style == "" {
		return false
	}
	current := s.Badge.Style
	if current == "" {
		current = models.DefaultAvatarStyle
	}
	return current != style
}

type sessionJSON struct {
	ID        string             `json:"id"`
	Ref       string             `json:"ref"`
	Visitor   *models.Visitor    `json:"visitor"`
	Step      StepName           `json:"step"`
	Progress  int                `json:"progress,omitempty"`
	Error     string             `json:"error,omitempty"`
	Style     models.AvatarStyle `json:"style,omitempty"`
	PhotoURL  string             `json:"photo_url,omitempty"`
	Retaken   bool               `json:"retaken,omitempty"`
	Badge     *Badge             `json:"badge,omitempty"`
	PrintView string             `json:"print_view,omitempty"`
	RawBTURL  string             `json:"rawbt_url,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (s *Session) MarshalJSON() ([]byte, error) {
	out := sessionJSON{
		ID:        s.ID,
		Ref:       s.Ref,
		Visitor:   s.Visitor,
		Step:      s.step.Name(),
		Style:     s.Style,
		PhotoURL:  s.PhotoURL,
		Retaken:   s.Retaken,
		Badge:     s.Badge,
		PrintView: s.PrintView,
		RawBTURL:  s.RawBTURL,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	switch step := s.step.(type) {
	case Photo:
		out.Error = step.Error
	case Printing:
		out.Progress = step.Progress
	}
	return json.Marshal(out)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var in sessionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	var step Step
	switch in.Step {
	case StepInfo:
		step = Info{}
	case StepPhoto:
		step = Photo{Error: in.Error}
	case StepPreview:
		step = Preview{}
	case StepPrinting:
		step = Printing{Progress: in.Progress}
	case StepComplete:
		step = Complete{}
	default:
		return fmt.Errorf("unknown wizard step: %q", in.Step)
	}

	*s = Session{
		ID:        in.ID,
		Ref:       in.Ref,
		Visitor:   in.Visitor,
		Style:     in.Style,
		PhotoURL:  in.PhotoURL,
		Retaken:   in.Retaken,
		Badge:     in.Badge,
		PrintView: in.PrintView,
		RawBTURL:  in.RawBTURL,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
		step:      step,
	}
	return nil
}
