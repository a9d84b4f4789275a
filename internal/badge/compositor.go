package badge

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"badge-kiosk-backend/internal/storage"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

const maxImageBytes = 20 << 20

// Fields is the visitor text printed on the badge
type Fields struct {
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Company  string `json:"company"`
	Position string `json:"position"`
}

// Result holds the encoded display and print rasters
type Result struct {
	Display       []byte
	Print         []byte
	DisplayWidth  int
	DisplayHeight int
	PrintWidth    int
	PrintHeight   int
}

// DisplayDataURL returns the display raster as a PNG data URL
func (r *Result) DisplayDataURL() string {
	return storage.EncodeDataURL("image/png", r.Display)
}

// PrintDataURL returns the rotated print raster as a PNG data URL
func (r *Result) PrintDataURL() string {
	return storage.EncodeDataURL("image/png", r.Print)
}

// Compositor draws badges onto a fixed template
type Compositor struct {
	layout       Layout
	templatePath string
	httpClient   *http.Client

	fontOnce sync.Once
	font     *truetype.Font
	fontErr  error
}

// NewCompositor creates a compositor for the given layout. An empty template
// path draws a plain generated template.
func NewCompositor(layout Layout, templatePath string) *Compositor {
	return &Compositor{
		layout:       layout,
		templatePath: templatePath,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Compose renders the badge for a photo (data URL or http URL). Any load
// failure is logged and returned; callers must treat it as "no badge".
func (c *Compositor) Compose(ctx context.Context, photo string, fields *Fields) (*Result, error) {
	result, err := c.compose(ctx, photo, fields)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compose badge")
		return nil, err
	}
	return result, nil
}

func (c *Compositor) compose(ctx context.Context, photo string, fields *Fields) (*Result, error) {
	l := c.layout
	dc := gg.NewContext(l.Width, l.Height)

	// template first, then the photo
	tmpl, err := c.loadTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to load template image: %w", err)
	}
	img, err := c.loadPhoto(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("failed to load user photo: %w", err)
	}

	dc.DrawImage(imaging.Resize(tmpl, l.Width, l.Height, imaging.Lanczos), 0, 0)

	square := imaging.Resize(img, l.PhotoSize, l.PhotoSize, imaging.Lanczos)
	for _, pt := range l.Photos {
		dc.DrawImage(square, pt.X, pt.Y)
	}

	if fields != nil {
		if err := c.drawText(dc, fields); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	display := dc.Image()
	var displayBuf bytes.Buffer
	if err := dc.EncodePNG(&displayBuf); err != nil {
		return nil, fmt.Errorf("failed to encode display badge: %w", err)
	}

	pc := gg.NewContext(l.Height, l.Width)
	pc.Translate(float64(l.Height), 0)
	pc.Rotate(gg.Radians(90))
	pc.DrawImage(display, 0, 0)

	var printBuf bytes.Buffer
	if err := pc.EncodePNG(&printBuf); err != nil {
		return nil, fmt.Errorf("failed to encode print badge: %w", err)
	}

	return &Result{
		Display:       displayBuf.Bytes(),
		Print:         printBuf.Bytes(),
		DisplayWidth:  l.Width,
		DisplayHeight: l.Height,
		PrintWidth:    l.Height,
		PrintHeight:   l.Width,
	}, nil
}

func (c *Compositor) drawText(dc *gg.Context, fields *Fields) error {
	name := strings.TrimSpace(fields.Name + " " + fields.LastName)
	if name == "" {
		return nil
	}

	l := c.layout
	nameFace, err := c.face(l.NameSize)
	if err != nil {
		return err
	}
	detailFace, err := c.face(l.DetailSize)
	if err != nil {
		return err
	}

	cx := float64(l.Width) / 2
	dc.SetColor(l.TextColor)

	dc.SetFontFace(nameFace)
	dc.DrawStringAnchored(strings.ToUpper(name), cx, l.TextY, 0.5, 0.5)

	dc.SetFontFace(detailFace)
	if fields.Position != "" {
		dc.DrawStringAnchored(strings.ToUpper(fields.Position), cx, l.TextY+l.LineSpacing, 0.5, 0.5)
	}
	if fields.Company != "" {
		dc.DrawStringAnchored("( "+strings.ToUpper(fields.Company)+" )", cx, l.TextY+2*l.LineSpacing, 0.5, 0.5)
	}
	return nil
}

func (c *Compositor) face(size float64) (font.Face, error) {
	c.fontOnce.Do(func() {
		c.font, c.fontErr = truetype.Parse(gobold.TTF)
	})
	if c.fontErr != nil {
		return nil, fmt.Errorf("failed to parse badge font: %w", c.fontErr)
	}
	return truetype.NewFace(c.font, &truetype.Options{Size: size}), nil
}

func (c *Compositor) loadTemplate() (image.Image, error) {
	if c.templatePath == "" {
		return c.plainTemplate(), nil
	}
	return gg.LoadImage(c.templatePath)
}

// plainTemplate draws a dark card with an accent band behind each photo slot
func (c *Compositor) plainTemplate() image.Image {
	l := c.layout
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(l.Background)
	dc.Clear()

	dc.SetColor(l.AccentColor)
	dc.DrawRectangle(0, 0, float64(l.Width), float64(l.Height)/12)
	dc.Fill()
	dc.DrawRectangle(0, float64(l.Height)*11/12, float64(l.Width), float64(l.Height)/12)
	dc.Fill()

	pad := float64(l.PhotoSize) / 20
	for _, pt := range l.Photos {
		dc.DrawRoundedRectangle(float64(pt.X)-pad, float64(pt.Y)-pad, float64(l.PhotoSize)+2*pad, float64(l.PhotoSize)+2*pad, pad)
		dc.Fill()
	}
	return dc.Image()
}

func (c *Compositor) loadPhoto(ctx context.Context, photo string) (image.Image, error) {
	var data []byte
	if storage.IsRemoteURL(photo) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, photo, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		data, _, err = storage.DecodeDataURL(photo)
		if err != nil {
			return nil, err
		}
	}
	return imaging.Decode(bytes.NewReader(data))
}
