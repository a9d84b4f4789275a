package badge

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"badge-kiosk-backend/internal/storage"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redPhoto(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	// non-square on purpose, the compositor forces a square draw region
	img := imaging.New(40, 80, color.NRGBA{R: 255, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return storage.EncodeDataURL("image/png", buf.Bytes())
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r > 0xe000 && g < 0x2000 && b < 0x2000
}

func newCompositor(t *testing.T, name, template string) *Compositor {
	t.Helper()
	l, err := LayoutByName(name)
	require.NoError(t, err)
	return NewCompositor(l, template)
}

func TestCompositor_ComposeSingle(t *testing.T) {
	c := newCompositor(t, LayoutSingle, "")
	fields := &Fields{Name: "Ada", LastName: "Lovelace", Company: "Analytical Engines", Position: "Engineer"}

	res, err := c.Compose(context.Background(), redPhoto(t), fields)
	require.NoError(t, err)

	assert.Equal(t, 1000, res.DisplayWidth)
	assert.Equal(t, 1500, res.DisplayHeight)
	assert.Equal(t, res.DisplayWidth, res.PrintHeight)
	assert.Equal(t, res.DisplayHeight, res.PrintWidth)

	display := decode(t, res.Display)
	assert.Equal(t, 1000, display.Bounds().Dx())
	assert.Equal(t, 1500, display.Bounds().Dy())
	// photo slot center
	assert.True(t, isRed(display.At(500, 560)))
	assert.False(t, isRed(display.At(10, 700)))

	printed := decode(t, res.Print)
	assert.Equal(t, 1500, printed.Bounds().Dx())
	assert.Equal(t, 1000, printed.Bounds().Dy())
	// (x, y) on display lands at (H-y, x) on the print raster
	assert.True(t, isRed(printed.At(1500-560, 500)))
}

func TestCompositor_ComposeDual(t *testing.T) {
	c := newCompositor(t, LayoutDual, "")

	res, err := c.Compose(context.Background(), redPhoto(t), nil)
	require.NoError(t, err)

	display := decode(t, res.Display)
	assert.True(t, isRed(display.At(500, 470)))
	assert.True(t, isRed(display.At(1500, 470)))
	assert.False(t, isRed(display.At(1000, 470)))
	assert.Equal(t, 1400, res.PrintWidth)
	assert.Equal(t, 2000, res.PrintHeight)
}

func TestCompositor_TemplateScaledToRaster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.png")
	require.NoError(t, imaging.Save(imaging.New(100, 150, color.NRGBA{G: 255, A: 255}), path))

	c := newCompositor(t, LayoutSingle, path)
	res, err := c.Compose(context.Background(), redPhoto(t), nil)
	require.NoError(t, err)

	display := decode(t, res.Display)
	_, g, _, _ := display.At(995, 1495).RGBA()
	assert.Greater(t, g, uint32(0xe000))
}

func TestCompositor_LoadFailures(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		c := newCompositor(t, LayoutSingle, filepath.Join(t.TempDir(), "missing.png"))
		res, err := c.Compose(context.Background(), redPhoto(t), nil)
		assert.Error(t, err)
		assert.Nil(t, res)
	})

	t.Run("undecodable photo", func(t *testing.T) {
		c := newCompositor(t, LayoutSingle, "")
		res, err := c.Compose(context.Background(), "data:image/png;base64,bm90IGFuIGltYWdl", nil)
		assert.Error(t, err)
		assert.Nil(t, res)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := newCompositor(t, LayoutSingle, "")
		_, err := c.Compose(ctx, redPhoto(t), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLayoutByName_Unknown(t *testing.T) {
	_, err := LayoutByName("triple")
	assert.Error(t, err)
}
