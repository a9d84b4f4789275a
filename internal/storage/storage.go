package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrInvalidImageFormat is returned when an upload payload is not a base64 data URL
var ErrInvalidImageFormat = errors.New("invalid base64 image format")

// Backend stores objects and resolves their public URLs
type Backend interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	PublicURL(bucket, key string) string
}

// Kind identifies one of the logical asset buckets
type Kind string

const (
	KindPhoto Kind = "photos"
	KindQR    Kind = "qr"
	KindBadge Kind = "badges"
)

// Badge bucket variants, distinguished by file name suffix only
const (
	VariantCard  = "card"
	VariantPrint = "print"
)

// Buckets maps logical kinds to backend bucket names
type Buckets struct {
	Photos string
	QR     string
	Badges string
}

// UploadInput describes a single asset upload
type UploadInput struct {
	Data     string // data URL, or an absolute URL that is returned unchanged
	OwnerRef string
	Kind     Kind
	Variant  string
}

// Gateway uploads base64 image payloads and returns public URLs
type Gateway struct {
	backend Backend
	buckets Buckets
}

// NewGateway creates a new storage gateway
func NewGateway(backend Backend, buckets Buckets) *Gateway {
	return &Gateway{backend: backend, buckets: buckets}
}

// Upload stores a data URL image under a freshly generated key.
// Every call creates a new object; nothing is deduplicated.
func (g *Gateway) Upload(ctx context.Context, in UploadInput) (string, error) {
	if IsRemoteURL(in.Data) {
		return in.Data, nil
	}

	body, _, err := DecodeDataURL(in.Data)
	if err != nil {
		return "", err
	}

	bucket, ext, contentType, err := g.target(in.Kind)
	if err != nil {
		return "", err
	}

	owner := in.OwnerRef
	if in.Variant != "" {
		owner = owner + "-" + in.Variant
	}
	key := fmt.Sprintf("%s_%s.%s", sanitizeKey(owner), uuid.New().String(), ext)

	if err := g.backend.Put(ctx, bucket, key, body, contentType); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", in.Kind, err)
	}

	url := g.backend.PublicURL(bucket, key)
	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int("size", len(body)).
		Msg("Asset uploaded")
	return url, nil
}

// UploadBytes stores raw encoded image bytes
func (g *Gateway) UploadBytes(ctx context.Context, body []byte, contentType, ownerRef string, kind Kind, variant string) (string, error) {
	return g.Upload(ctx, UploadInput{
		Data:     EncodeDataURL(contentType, body),
		OwnerRef: ownerRef,
		Kind:     kind,
		Variant:  variant,
	})
}

func (g *Gateway) target(kind Kind) (bucket, ext, contentType string, err error) {
	switch kind {
	case KindPhoto:
		return g.buckets.Photos, "jpg", "image/jpeg", nil
	case KindQR:
		return g.buckets.QR, "png", "image/png", nil
	case KindBadge:
		return g.buckets.Badges, "png", "image/png", nil
	default:
		return "", "", "", fmt.Errorf("unknown asset kind: %s", kind)
	}
}

// IsRemoteURL reports whether s is an absolute http(s) URL
func IsRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DecodeDataURL splits a data URL at its first comma and decodes the base64 payload.
// The returned mime type is empty when the prefix does not carry one.
func DecodeDataURL(s string) ([]byte, string, error) {
	prefix, payload, ok := strings.Cut(s, ",")
	if !ok || payload == "" {
		return nil, "", ErrInvalidImageFormat
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", ErrInvalidImageFormat
		}
	}

	mime := strings.TrimPrefix(prefix, "data:")
	mime, _, _ = strings.Cut(mime, ";")
	return data, mime, nil
}

// EncodeDataURL builds a base64 data URL
func EncodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func sanitizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
