package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"badge-kiosk-backend/internal/badge"
	"badge-kiosk-backend/internal/models"
	"badge-kiosk-backend/internal/storage"
	"badge-kiosk-backend/internal/wizard"

	"github.com/rs/zerolog/log"
)

// User-facing messages shown inline by the kiosk
const (
	MsgGenerationFailed   = "Failed to generate badge"
	MsgRegistrationFailed = "Failed to update user registration"
)

var (
	ErrPhotoRequired      = errors.New("photo is required")
	ErrGenerationFailed   = errors.New("avatar generation failed")
	ErrRegistrationFailed = errors.New("failed to persist registration")
)

// AvatarGenerator turns a visitor photo into a stylized avatar. ok is false on failure.
type AvatarGenerator interface {
	Generate(ctx context.Context, photo, visitorName string, style models.AvatarStyle) (string, bool)
}

// BadgeComposer renders the display and print badge rasters
type BadgeComposer interface {
	Compose(ctx context.Context, photo string, fields *badge.Fields) (*badge.Result, error)
}

// PrintTicketIssuer signs print tickets for the print view and builds the
// RawBT link when that handoff is enabled
type PrintTicketIssuer interface {
	Ticket(imageURL string, rotate bool, ref string) (string, error)
	PrintURL(ticket string) string
	RawBTLink(ctx context.Context, imageURL string) (string, error)
}

// SessionPublisher pushes session changes to the kiosk browser
type SessionPublisher interface {
	PublishSession(s *wizard.Session)
	Publish(sessionID string, event SessionEvent)
}

// PhotoInput is a capture submitted on the photo step. An empty Photo keeps
// the session's current photo; an empty Style keeps the current style.
type PhotoInput struct {
	Photo string             `json:"photo"`
	Style models.AvatarStyle `json:"style"`
}

// RegistrationConfig holds wizard timing and print options
type RegistrationConfig struct {
	PrintingTick time.Duration
	Rotate       bool
}

// RegistrationService drives registration wizard sessions:
// capture, avatar generation, badge composition, persistence and printing.
type RegistrationService struct {
	visitors *VisitorService
	avatars  AvatarGenerator
	badges   BadgeComposer
	uploader AssetUploader
	printer  PrintTicketIssuer
	store    wizard.Store
	locks    wizard.Locker
	events   SessionPublisher
	cfg      RegistrationConfig

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(
	visitors *VisitorService,
	avatars AvatarGenerator,
	badges BadgeComposer,
	uploader AssetUploader,
	printer PrintTicketIssuer,
	store wizard.Store,
	locks wizard.Locker,
	events SessionPublisher,
	cfg RegistrationConfig,
) *RegistrationService {
	baseCtx, stop := context.WithCancel(context.Background())
	return &RegistrationService{
		visitors: visitors,
		avatars:  avatars,
		badges:   badges,
		uploader: uploader,
		printer:  printer,
		store:    store,
		locks:    locks,
		events:   events,
		cfg:      cfg,
		baseCtx:  baseCtx,
		stop:     stop,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Close stops background printing progress and waits for it to finish
func (r *RegistrationService) Close() {
	r.stop()
	r.wg.Wait()
}

// Start opens a session for a visitor at the info step
func (r *RegistrationService) Start(ctx context.Context, ref string) (*wizard.Session, error) {
	visitor, err := r.visitors.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	s := wizard.NewSession(visitor)
	if err := r.store.Save(ctx, s); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", s.ID).
		Str("ref", ref).
		Bool("registered", visitor.Registered).
		Msg("Registration session started")
	return s, nil
}

// Get returns the current session snapshot
func (r *RegistrationService) Get(ctx context.Context, id string) (*wizard.Session, error) {
	return r.store.Get(ctx, id)
}

// ConfirmInfo moves info -> photo
func (r *RegistrationService) ConfirmInfo(ctx context.Context, id string) (*wizard.Session, error) {
	return r.update(ctx, id, (*wizard.Session).ConfirmInfo)
}

// Back moves photo -> info or preview -> photo
func (r *RegistrationService) Back(ctx context.Context, id string) (*wizard.Session, error) {
	return r.update(ctx, id, (*wizard.Session).Back)
}

func (r *RegistrationService) update(ctx context.Context, id string, fn func(*wizard.Session) error) (*wizard.Session, error) {
	unlock, err := r.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	return s, r.save(ctx, s)
}

func (r *RegistrationService) save(ctx context.Context, s *wizard.Session) error {
	if err := r.store.Save(ctx, s); err != nil {
		return err
	}
	r.events.PublishSession(s)
	return nil
}

// SubmitPhoto generates the avatar and composes the badge, moving photo ->
// preview. Generation is skipped when the attached badge is still current.
// A generation failure keeps the session on photo with an inline error.
func (r *RegistrationService) SubmitPhoto(ctx context.Context, id string, in PhotoInput) (*wizard.Session, error) {
	unlock, err := r.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Step().Name() != wizard.StepPhoto {
		return nil, fmt.Errorf("%w: photo submitted on %s", wizard.ErrInvalidTransition, s.Step().Name())
	}
	if in.Style != "" && !in.Style.Valid() {
		return nil, &ValidationError{Field: "style", Tag: "oneof"}
	}

	if in.Photo != "" {
		s.UsePhoto(in.Photo)
	}
	if s.PhotoURL == "" {
		return nil, ErrPhotoRequired
	}

	if !s.NeedsRegeneration(in.Style) {
		if err := s.ShowPreview(s.Badge); err != nil {
			return nil, err
		}
		return s, r.save(ctx, s)
	}

	style := in.Style
	if style == "" {
		style = s.Style
	}
	if style == "" {
		style = models.DefaultAvatarStyle
	}

	wctx, done := r.begin(ctx, id)
	defer done()

	b, err := r.generate(wctx, s, style)
	if err != nil {
		if wctx.Err() != nil {
			return nil, wctx.Err()
		}
		log.Error().Err(err).Str("session_id", id).Str("ref", s.Ref).Msg("Badge generation failed")
		if err := s.PhotoFailed(MsgGenerationFailed); err != nil {
			return nil, err
		}
		return s, r.save(ctx, s)
	}

	s.Style = style
	if err := s.ShowPreview(b); err != nil {
		return nil, err
	}
	return s, r.save(ctx, s)
}

func (r *RegistrationService) generate(ctx context.Context, s *wizard.Session, style models.AvatarStyle) (*wizard.Badge, error) {
	avatar, ok := r.avatars.Generate(ctx, s.PhotoURL, s.Visitor.FullName(), style)
	if !ok {
		return nil, ErrGenerationFailed
	}
	avatarURL := "data:image/png;base64," + avatar

	res, err := r.badges.Compose(ctx, avatarURL, &badge.Fields{
		Name:     s.Visitor.Name,
		LastName: s.Visitor.LastName,
		Company:  s.Visitor.Company,
		Position: s.Visitor.Position,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compose badge: %w", err)
	}

	return &wizard.Badge{
		Style:      style,
		PhotoURL:   s.PhotoURL,
		AvatarURL:  avatarURL,
		DisplayURL: res.DisplayDataURL(),
		PrintURL:   res.PrintDataURL(),
	}, nil
}

// ConfirmPreview uploads the photo and badge assets, marks the visitor
// registered and moves preview -> printing. On failure the session stays on
// preview; assets uploaded before the failure are left in storage.
func (r *RegistrationService) ConfirmPreview(ctx context.Context, id string) (*wizard.Session, error) {
	unlock, err := r.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Step().Name() != wizard.StepPreview {
		return nil, fmt.Errorf("%w: confirm on %s", wizard.ErrInvalidTransition, s.Step().Name())
	}

	wctx, done := r.begin(ctx, id)
	defer done()

	// the print raster is still inline here, so RawBT needs no download
	printSource := s.Badge.PrintURL

	hosted, visitor, err := r.persist(wctx, s)
	if err != nil {
		if wctx.Err() != nil {
			return nil, wctx.Err()
		}
		log.Error().Err(err).Str("session_id", id).Str("ref", s.Ref).Msg("Failed to persist registration")
		r.events.Publish(id, SessionEvent{Type: EventError, Step: wizard.StepPreview, Message: MsgRegistrationFailed})
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	s.Visitor = visitor
	s.PhotoURL = hosted.PhotoURL
	s.Badge = hosted
	s.PrintView = r.printView(s)
	if printSource == "" {
		printSource = s.Visitor.PrintableURL()
	}
	s.RawBTURL = r.rawBTLink(wctx, s.Ref, printSource)

	if err := s.StartPrinting(); err != nil {
		return nil, err
	}
	if err := r.save(ctx, s); err != nil {
		return nil, err
	}

	log.Info().Str("session_id", id).Str("ref", s.Ref).Msg("Visitor registered")
	r.startPrinting(id)
	return s, nil
}

func (r *RegistrationService) persist(ctx context.Context, s *wizard.Session) (*wizard.Badge, *models.Visitor, error) {
	b := *s.Badge

	uploads := []struct {
		target  *string
		kind    storage.Kind
		variant string
	}{
		{&b.PhotoURL, storage.KindPhoto, ""},
		{&b.AvatarURL, storage.KindBadge, ""},
		{&b.DisplayURL, storage.KindBadge, storage.VariantCard},
		{&b.PrintURL, storage.KindBadge, storage.VariantPrint},
	}
	for _, u := range uploads {
		if *u.target == "" {
			continue
		}
		url, err := r.uploader.Upload(ctx, storage.UploadInput{
			Data:     *u.target,
			OwnerRef: s.Ref,
			Kind:     u.kind,
			Variant:  u.variant,
		})
		if err != nil {
			return nil, nil, err
		}
		*u.target = url
	}

	visitor, err := r.visitors.UpdateRegistration(ctx, s.Ref, models.RegistrationUpdate{
		PhotoURL: b.PhotoURL,
		BadgeURL: b.AvatarURL,
		CardURL:  b.DisplayURL,
		PrintURL: b.PrintURL,
	})
	if err != nil {
		return nil, nil, err
	}

	b.Stored = true
	return &b, visitor, nil
}

func (r *RegistrationService) printView(s *wizard.Session) string {
	image := s.Visitor.PrintableURL()
	if image == "" {
		return ""
	}
	ticket, err := r.printer.Ticket(image, r.cfg.Rotate, s.Ref)
	if err != nil {
		log.Error().Err(err).Str("ref", s.Ref).Msg("Failed to issue print ticket")
		return ""
	}
	return r.printer.PrintURL(ticket)
}

func (r *RegistrationService) rawBTLink(ctx context.Context, ref, imageURL string) string {
	if imageURL == "" {
		return ""
	}
	link, err := r.printer.RawBTLink(ctx, imageURL)
	if err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Failed to build RawBT link")
		return ""
	}
	return link
}

// startPrinting advances the simulated print progress in the background.
// It is not tied to any printer status.
func (r *RegistrationService) startPrinting(id string) {
	ctx, done := r.begin(r.baseCtx, printKey(id))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer done()

		ticker := time.NewTicker(r.cfg.PrintingTick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				finished, err := r.tick(ctx, id)
				if err != nil {
					if ctx.Err() == nil {
						log.Error().Err(err).Str("session_id", id).Msg("Printing progress stopped")
					}
					return
				}
				if finished {
					return
				}
			}
		}
	}()
}

func (r *RegistrationService) tick(ctx context.Context, id string) (bool, error) {
	unlock, err := r.locks.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	s, err := r.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if err := s.Tick(); err != nil {
		return false, err
	}
	if err := r.save(ctx, s); err != nil {
		return false, err
	}
	return s.Step().Name() == wizard.StepComplete, nil
}

// Cancel aborts in-flight work for the session and discards it
func (r *RegistrationService) Cancel(ctx context.Context, id string) error {
	r.mu.Lock()
	for _, key := range []string{id, printKey(id)} {
		if cancel, ok := r.inflight[key]; ok {
			cancel()
		}
	}
	r.mu.Unlock()

	unlock, err := r.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	err = r.store.Delete(ctx, id)
	unlock()
	r.locks.Forget(id)

	if err != nil {
		return err
	}
	r.events.Publish(id, SessionEvent{Type: EventCancelled})
	log.Info().Str("session_id", id).Msg("Registration session cancelled")
	return nil
}

// begin derives a cancellable context for work on behalf of a session
func (r *RegistrationService) begin(parent context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	r.inflight[key] = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
		cancel()
	}
}

func printKey(id string) string {
	return id + "/print"
}
