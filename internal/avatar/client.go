package avatar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"badge-kiosk-backend/internal/models"
	"badge-kiosk-backend/internal/storage"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

const (
	uploadFileName = "visitor.png"
	maxPhotoBytes  = 20 << 20
)

// Config configures the image edit upstream
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Quality string
	Timeout time.Duration
}

// Client calls the image edit API to turn a visitor photo into a stylized avatar
type Client struct {
	cfg        Config
	images     openai.ImageService
	httpClient *http.Client
}

// NewClient creates a new avatar generation client
func NewClient(cfg Config) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	api := openai.NewClient(opts...)

	return &Client{
		cfg:        cfg,
		images:     api.Images,
		httpClient: httpClient,
	}
}

// Generate returns the base64 PNG of the stylized avatar. The boolean is false
// on any failure; the cause is logged, never returned.
func (c *Client) Generate(ctx context.Context, photo, visitorName string, style models.AvatarStyle) (string, bool) {
	log.Info().
		Str("visitor", visitorName).
		Str("style", string(style)).
		Msg("Generating avatar")

	b64, err := c.generate(ctx, photo, style)
	if err != nil {
		log.Error().Err(err).Str("visitor", visitorName).Msg("Avatar generation failed")
		return "", false
	}
	return b64, true
}

func (c *Client) generate(ctx context.Context, photo string, style models.AvatarStyle) (string, error) {
	image, err := c.loadPhoto(ctx, photo)
	if err != nil {
		return "", err
	}

	resp, err := c.images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(image), uploadFileName, "image/png"),
		},
		Prompt:     Prompt(style),
		Model:      openai.ImageModel(c.cfg.Model),
		Quality:    openai.ImageEditParamsQuality(c.cfg.Quality),
		Background: openai.ImageEditParamsBackgroundTransparent,
		Size:       openai.ImageEditParamsSize1024x1024,
		N:          openai.Int(1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to call image edit API: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", fmt.Errorf("image edit API returned no image data")
	}
	return resp.Data[0].B64JSON, nil
}

// loadPhoto accepts a data URL or a fetchable http(s) URL
func (c *Client) loadPhoto(ctx context.Context, photo string) ([]byte, error) {
	if !storage.IsRemoteURL(photo) {
		data, _, err := storage.DecodeDataURL(photo)
		if err != nil {
			return nil, fmt.Errorf("failed to decode photo: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch photo: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	return data, nil
}
