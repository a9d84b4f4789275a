package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strings"
	"time"

	"badge-kiosk-backend/internal/models"
	"badge-kiosk-backend/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	refPrefix      = "REF"
	refDigits      = 6
	refMaxAttempts = 10

	defaultPerPage = 20
	maxPerPage     = 100
)

// ValidationError reports the first missing or malformed request field
type ValidationError struct {
	Field string
	Tag   string
}

func (e *ValidationError) Error() string {
	if e.Tag == "required" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s is invalid", e.Field)
}

// Validator validates request structs and reports fields by their json names
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new request validator
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate returns a *ValidationError for the first failing field
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ValidationError{Field: fieldErrs[0].Field(), Tag: fieldErrs[0].Tag()}
	}
	return err
}

// CreateVisitorInput is the full visitor record supplied by a caller
type CreateVisitorInput struct {
	ID       string `json:"id"`
	Ref      string `json:"ref" validate:"required"`
	Name     string `json:"name" validate:"required"`
	LastName string `json:"last_name" validate:"required"`
	Company  string `json:"company" validate:"required"`
	Position string `json:"position" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	EventID  string `json:"event_id" validate:"required"`
}

// ListQuery selects a page of an event's visitors
type ListQuery struct {
	EventID string
	Search  string
	Page    int
	PerPage int
}

// VisitorPage is one page of the visitor list
type VisitorPage struct {
	Visitors []*models.Visitor `json:"users"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PerPage  int               `json:"per_page"`
}

// VisitorService handles visitor record business logic
type VisitorService struct {
	repo      repository.VisitorStore
	validator *Validator
	legacyRef bool
	random    io.Reader
}

// NewVisitorService creates a new visitor service
func NewVisitorService(repo repository.VisitorStore, validator *Validator, legacyRef bool) *VisitorService {
	return &VisitorService{
		repo:      repo,
		validator: validator,
		legacyRef: legacyRef,
		random:    rand.Reader,
	}
}

// Create validates and persists a visitor. A missing id is generated.
func (s *VisitorService) Create(ctx context.Context, in CreateVisitorInput) (*models.Visitor, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC()
	visitor := &models.Visitor{
		ID:        id,
		Ref:       in.Ref,
		Name:      in.Name,
		LastName:  in.LastName,
		Company:   in.Company,
		Position:  in.Position,
		Email:     in.Email,
		Phone:     in.Phone,
		EventID:   in.EventID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, visitor); err != nil {
		return nil, fmt.Errorf("failed to create visitor: %w", err)
	}
	return visitor, nil
}

// GetByRef returns a visitor by reference
func (s *VisitorService) GetByRef(ctx context.Context, ref string) (*models.Visitor, error) {
	return s.repo.GetByRef(ctx, ref)
}

// GetByEvent returns an event's visitors, most recently updated first
func (s *VisitorService) GetByEvent(ctx context.Context, eventID string) ([]*models.Visitor, error) {
	return s.repo.GetByEvent(ctx, eventID)
}

// List returns a filtered page of an event's visitors. Search matches name,
// last name, company and email case-insensitively.
func (s *VisitorService) List(ctx context.Context, q ListQuery) (*VisitorPage, error) {
	page, perPage := normalizePage(q.Page, q.PerPage)

	visitors, total, err := s.repo.Search(ctx, repository.VisitorFilter{
		EventID: q.EventID,
		Search:  q.Search,
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}

	return &VisitorPage{
		Visitors: visitors,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
	}, nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage < 1:
		perPage = defaultPerPage
	case perPage > maxPerPage:
		perPage = maxPerPage
	}
	return page, perPage
}

// UpdateRegistration marks a visitor registered and stores the asset URLs
func (s *VisitorService) UpdateRegistration(ctx context.Context, ref string, u models.RegistrationUpdate) (*models.Visitor, error) {
	return s.repo.UpdateRegistration(ctx, ref, u)
}

// UpdateQRURL stores the visitor's QR code URL
func (s *VisitorService) UpdateQRURL(ctx context.Context, ref, qrURL string) (*models.Visitor, error) {
	return s.repo.UpdateQRURL(ctx, ref, qrURL)
}

// GenerateRef generates a reference not yet present in the store
func (s *VisitorService) GenerateRef(ctx context.Context) (string, error) {
	for i := 0; i < refMaxAttempts; i++ {
		ref, err := s.nextRef()
		if err != nil {
			return "", fmt.Errorf("failed to generate ref: %w", err)
		}

		exists, err := s.repo.RefExists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("failed to check ref existence: %w", err)
		}
		if !exists {
			return ref, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique ref after %d attempts", refMaxAttempts)
}

func (s *VisitorService) nextRef() (string, error) {
	if s.legacyRef {
		n, err := randomInt(s.random, 1000)
		if err != nil {
			return "", err
		}
		return LegacyRef(time.Now(), n), nil
	}
	return generateRef(s.random)
}

// generateRef returns REF followed by six random digits
func generateRef(random io.Reader) (string, error) {
	digits := make([]byte, refDigits)
	for i := range digits {
		n, err := randomInt(random, 10)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n)
	}
	return refPrefix + string(digits), nil
}

// LegacyRef builds the timestamp-based reference used by earlier kiosks:
// REF, the last six digits of the epoch milliseconds, then n (0-999).
// Two visitors in the same window with the same draw collide.
func LegacyRef(now time.Time, n int) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > refDigits {
		ms = ms[len(ms)-refDigits:]
	}
	return fmt.Sprintf("%s%s%d", refPrefix, ms, n)
}

func randomInt(random io.Reader, limit int64) (int, error) {
	n, err := rand.Int(random, big.NewInt(limit))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
