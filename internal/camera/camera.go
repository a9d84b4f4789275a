package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"badge-kiosk-backend/internal/storage"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// State is the camera lifecycle state
type State string

const (
	StateInactive  State = "inactive"
	StateActive    State = "active"
	StateCapturing State = "capturing"
	StateError     State = "error"
)

var (
	ErrInsecureContext        = errors.New("camera access requires a secure context (HTTPS or localhost)")
	ErrNoCameraAPI            = errors.New("camera API is not available on this device")
	ErrPermissionDenied       = errors.New("camera permission denied")
	ErrConstraintsUnsatisfied = errors.New("camera does not support the requested constraints")
	ErrNotActive              = errors.New("camera is not active")
)

// Constraints describes a requested stream resolution and facing mode.
// Zero values mean "any".
type Constraints struct {
	Width      int
	Height     int
	FacingMode string
}

// DefaultConstraints are tried in order until the source accepts one
var DefaultConstraints = []Constraints{
	{Width: 1280, Height: 720, FacingMode: "user"},
	{Width: 640, Height: 480, FacingMode: "user"},
	{},
}

// Frame is a single still from a stream. Mirrored is true when the pixels are
// horizontally flipped relative to the scene, as in a selfie preview.
type Frame struct {
	Image    image.Image
	Mirrored bool
}

// Source opens video streams from a camera device
type Source interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open video stream
type Stream interface {
	Frame(ctx context.Context) (Frame, error)
	Close() error
}

// Uploader stores encoded photos
type Uploader interface {
	UploadBytes(ctx context.Context, body []byte, contentType, ownerRef string, kind storage.Kind, variant string) (string, error)
}

// StartOptions describes the environment the camera is started from
type StartOptions struct {
	SecureContext bool
}

// Photo is a captured still. URL is the hosted URL, or the local data URL
// when no ref was given or the upload failed.
type Photo struct {
	URL     string `json:"url"`
	DataURL string `json:"-"`
	Hosted  bool   `json:"hosted"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// Camera is the capture state machine: inactive -> active -> capturing -> active,
// with error reachable from inactive when starting fails.
type Camera struct {
	mu          sync.Mutex
	source      Source
	uploader    Uploader
	constraints []Constraints
	quality     int

	state  State
	err    error
	stream Stream
	active Constraints
	mirror bool
}

// New creates an inactive camera
func New(source Source, uploader Uploader) *Camera {
	return &Camera{
		source:      source,
		uploader:    uploader,
		constraints: DefaultConstraints,
		quality:     90,
		state:       StateInactive,
		mirror:      true,
	}
}

// Start opens a stream, falling back through the constraint list.
// A permission denial stops the fallback immediately.
func (c *Camera) Start(ctx context.Context, opts StartOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateActive || c.state == StateCapturing {
		return nil
	}

	if !opts.SecureContext {
		return c.fail(ErrInsecureContext)
	}
	if c.source == nil {
		return c.fail(ErrNoCameraAPI)
	}

	var lastErr error
	for _, constraints := range c.constraints {
		stream, err := c.source.Open(ctx, constraints)
		if err == nil {
			c.stream = stream
			c.active = constraints
			c.state = StateActive
			c.err = nil
			log.Debug().
				Int("width", constraints.Width).
				Int("height", constraints.Height).
				Str("facing_mode", constraints.FacingMode).
				Msg("Camera started")
			return nil
		}
		if errors.Is(err, ErrPermissionDenied) || ctx.Err() != nil {
			return c.fail(err)
		}
		lastErr = err
	}
	return c.fail(fmt.Errorf("failed to start camera: %w", lastErr))
}

func (c *Camera) fail(err error) error {
	c.state = StateError
	c.err = err
	return err
}

// Stop releases the stream. Safe to call any number of times.
func (c *Camera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release()
	c.state = StateInactive
	c.err = nil
}

func (c *Camera) release() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close camera stream")
	}
	c.stream = nil
}

// Restart stops the current stream before starting a new one
func (c *Camera) Restart(ctx context.Context, opts StartOptions) error {
	c.Stop()
	return c.Start(ctx, opts)
}

// SetMirror toggles the mirrored on-screen preview
func (c *Camera) SetMirror(mirror bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirror = mirror
}

// Mirror reports whether the preview is mirrored
func (c *Camera) Mirror() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror
}

// State returns the current state and the error that caused StateError
func (c *Camera) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.err
}

// Preview returns the current frame as shown on screen
func (c *Camera) Preview(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return nil, ErrNotActive
	}
	frame, err := c.stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	img := unmirror(frame)
	if c.mirror {
		img = imaging.FlipH(img)
	}
	return img, nil
}

// Capture takes a still at the stream's native resolution. The stored photo
// is never mirrored regardless of the preview setting. When ref is set the
// JPEG is uploaded; an upload failure falls back to the local encoding.
func (c *Camera) Capture(ctx context.Context, ref string) (*Photo, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	c.state = StateCapturing
	stream := c.stream
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.state == StateCapturing {
			c.state = StateActive
		}
		c.mu.Unlock()
	}()

	frame, err := stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	img := unmirror(frame)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode photo: %w", err)
	}

	bounds := img.Bounds()
	photo := &Photo{
		DataURL: storage.EncodeDataURL("image/jpeg", buf.Bytes()),
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
	}
	photo.URL = photo.DataURL

	if ref == "" || c.uploader == nil {
		return photo, nil
	}

	url, err := c.uploader.UploadBytes(ctx, buf.Bytes(), "image/jpeg", ref, storage.KindPhoto, "")
	if err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("Photo upload failed, using local encoding")
		return photo, nil
	}
	photo.URL = url
	photo.Hosted = true
	return photo, nil
}

func unmirror(frame Frame) image.Image {
	if frame.Mirrored {
		return imaging.FlipH(frame.Image)
	}
	return frame.Image
}
