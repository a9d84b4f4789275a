package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"badge-kiosk-backend/internal/storage"

	"github.com/disintegration/imaging"
)

// FrameSource is a Source fed by a single frame posted from the kiosk
// browser. It accepts any constraints since the browser already negotiated them.
type FrameSource struct {
	frame Frame
}

// NewFrameSource decodes a data URL frame. mirrored reports whether the
// browser sent the frame as shown in its mirrored preview.
func NewFrameSource(dataURL string, mirrored bool) (*FrameSource, error) {
	data, _, err := storage.DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return &FrameSource{frame: Frame{Image: img, Mirrored: mirrored}}, nil
}

// NewImageSource wraps an already decoded image
func NewImageSource(img image.Image, mirrored bool) *FrameSource {
	return &FrameSource{frame: Frame{Image: img, Mirrored: mirrored}}
}

func (s *FrameSource) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &frameStream{frame: s.frame}, nil
}

type frameStream struct {
	frame  Frame
	closed bool
}

func (s *frameStream) Frame(ctx context.Context) (Frame, error) {
	if s.closed {
		return Frame{}, ErrNotActive
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	return s.frame, nil
}

func (s *frameStream) Close() error {
	s.closed = true
	return nil
}
