package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"badge-kiosk-backend/internal/models"
	"badge-kiosk-backend/internal/repository"
	"badge-kiosk-backend/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const issueMaxAttempts = 3

// AssetUploader stores image payloads and returns their public URLs
type AssetUploader interface {
	Upload(ctx context.Context, in storage.UploadInput) (string, error)
	UploadBytes(ctx context.Context, body []byte, contentType, ownerRef string, kind storage.Kind, variant string) (string, error)
}

// IssueInput is the profile entered at the QR issuance desk
type IssueInput struct {
	Name     string `json:"name" validate:"required"`
	LastName string `json:"last_name" validate:"required"`
	Company  string `json:"company" validate:"required"`
	Position string `json:"position" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
}

// Issued is a newly created visitor with their registration QR code
type Issued struct {
	Visitor     *models.Visitor `json:"user"`
	RegisterURL string          `json:"registerUrl"`
	QRURL       string          `json:"qrUrl"`
}

// IssuanceService creates visitors and their registration QR codes
type IssuanceService struct {
	visitors  *VisitorService
	uploader  AssetUploader
	validator *Validator
	eventID   string
	qrSize    int
}

// NewIssuanceService creates a new issuance service
func NewIssuanceService(visitors *VisitorService, uploader AssetUploader, validator *Validator, eventID string, qrSize int) *IssuanceService {
	return &IssuanceService{
		visitors:  visitors,
		uploader:  uploader,
		validator: validator,
		eventID:   eventID,
		qrSize:    qrSize,
	}
}

// Issue persists the visitor first, then renders and uploads a QR code for
// {origin}/register?id={ref}. A QR failure is logged and the visitor is
// still returned with an empty QR URL.
func (s *IssuanceService) Issue(ctx context.Context, in IssueInput, origin string) (*Issued, error) {
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	visitor, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	issued := &Issued{
		Visitor:     visitor,
		RegisterURL: RegisterURL(origin, visitor.Ref),
	}

	qrURL, err := s.renderQR(ctx, visitor.Ref, issued.RegisterURL)
	if err != nil {
		log.Error().Err(err).Str("ref", visitor.Ref).Msg("Failed to issue QR code")
		return issued, nil
	}

	updated, err := s.visitors.UpdateQRURL(ctx, visitor.Ref, qrURL)
	if err != nil {
		log.Error().Err(err).Str("ref", visitor.Ref).Msg("Failed to save QR URL")
		return issued, nil
	}

	issued.Visitor = updated
	issued.QRURL = qrURL

	log.Info().
		Str("ref", visitor.Ref).
		Str("visitor_id", visitor.ID).
		Msg("Visitor issued")

	return issued, nil
}

func (s *IssuanceService) create(ctx context.Context, in IssueInput) (*models.Visitor, error) {
	var lastErr error
	for i := 0; i < issueMaxAttempts; i++ {
		ref, err := s.visitors.GenerateRef(ctx)
		if err != nil {
			return nil, err
		}

		visitor, err := s.visitors.Create(ctx, CreateVisitorInput{
			Ref:      ref,
			Name:     in.Name,
			LastName: in.LastName,
			Company:  in.Company,
			Position: in.Position,
			Email:    in.Email,
			Phone:    in.Phone,
			EventID:  s.eventID,
		})
		if err == nil {
			return visitor, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		// lost a race for the ref between the existence check and the insert
		lastErr = err
	}
	return nil, fmt.Errorf("failed to issue visitor after %d attempts: %w", issueMaxAttempts, lastErr)
}

func (s *IssuanceService) renderQR(ctx context.Context, ref, content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, s.qrSize)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}
	return s.uploader.UploadBytes(ctx, png, "image/png", ref, storage.KindQR, "")
}

// RegisterURL is the URL encoded in a visitor's QR code
func RegisterURL(origin, ref string) string {
	return strings.TrimRight(origin, "/") + "/register?id=" + url.QueryEscape(ref)
}
