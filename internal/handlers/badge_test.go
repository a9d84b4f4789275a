package handlers

import (
	"bytes"
	"image"
	_ "image/png"
	"net/http"
	"strings"
	"testing"

	"badge-kiosk-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBadge(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, http.MethodPost, "/api/generate-badge", map[string]string{"visitorName": "Ada"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Photo URL is required", errorMessage(t, rec))

	rec = s.do(t, http.MethodPost, "/api/generate-badge", map[string]string{
		"photoUrl":    pixelPNG,
		"visitorName": "Ada Lovelace",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Badge   string `json:"badge"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, pixelB64, resp.Badge)
}

func TestGenerateBadge_UpstreamFailure(t *testing.T) {
	s := newTestServer(t, serverOptions{avatar: fakeAvatar{fail: true}})

	rec := s.do(t, http.MethodPost, "/api/generate-badge", map[string]string{
		"photoUrl": pixelPNG,
		"style":    "anime",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to generate badge", errorMessage(t, rec))
}

func TestComposeBadge(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, http.MethodPost, "/api/badge/compose", map[string]interface{}{
		"photoUrl": pixelPNG,
		"user": map[string]string{
			"name":      "Ada",
			"last_name": "Lovelace",
			"company":   "Analytical Engines",
			"position":  "Engineer",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ComposeResponse
	decode(t, rec, &resp)
	assert.Equal(t, 1000, resp.Width)
	assert.Equal(t, 1500, resp.Height)

	display := decodeConfig(t, resp.DisplayURL)
	assert.Equal(t, 1000, display.Width)
	assert.Equal(t, 1500, display.Height)

	// print raster is the display rotated a quarter turn
	printed := decodeConfig(t, resp.PrintURL)
	assert.Equal(t, 1500, printed.Width)
	assert.Equal(t, 1000, printed.Height)
}

func TestComposeBadge_Errors(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, http.MethodPost, "/api/badge/compose", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/badge/compose", map[string]interface{}{
		"photoUrl": "data:image/png;base64," + strings.Repeat("A", 16),
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to compose badge", errorMessage(t, rec))
}

func decodeConfig(t *testing.T, dataURL string) image.Config {
	t.Helper()
	data, mime, err := storage.DecodeDataURL(dataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg
}
