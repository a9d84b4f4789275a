package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadPhoto(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	tests := []struct {
		name    string
		body    map[string]string
		wantErr string
	}{
		{"missing image", map[string]string{"userRef": "REF1"}, "Base64 image and user reference are required"},
		{"missing ref", map[string]string{"base64Image": pixelPNG}, "Base64 image and user reference are required"},
		{"no comma", map[string]string{"base64Image": pixelB64, "userRef": "REF1"}, "Invalid base64 image format"},
		{"bad payload", map[string]string{"base64Image": "data:image/png;base64,%%%", "userRef": "REF1"}, "Invalid base64 image format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/storage/upload-photo", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, errorMessage(t, rec))
		})
	}
}

func TestUploadPhoto_ServedFromAssets(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, http.MethodPost, "/api/storage/upload-photo", map[string]string{
		"base64Image": pixelPNG,
		"userRef":     "REF123456",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		URL string `json:"url"`
	}
	decode(t, rec, &resp)
	require.True(t, strings.HasPrefix(resp.URL, publicURL+"/assets/photos/REF123456_"), resp.URL)
	assert.True(t, strings.HasSuffix(resp.URL, ".jpg"))

	u, err := url.Parse(resp.URL)
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, u.Path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte("\x89PNG"), rec.Body.Bytes()[:4])
}

func TestUploadBadge_Variants(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, http.MethodPost, "/api/storage/upload-badge", map[string]string{
		"base64Image": pixelPNG,
		"userRef":     "REF123456",
		"variant":     "print",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		URL string `json:"url"`
	}
	decode(t, rec, &resp)
	assert.True(t, strings.HasPrefix(resp.URL, publicURL+"/assets/badges/REF123456-print_"), resp.URL)

	rec = s.do(t, http.MethodPost, "/api/storage/upload-badge", map[string]string{
		"base64Image": pixelPNG,
		"userRef":     "REF123456",
		"variant":     "poster",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid badge variant", errorMessage(t, rec))
}

func TestUploadQR(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := s.do(t, http.MethodPost, "/api/storage/upload-qr", map[string]string{
		"base64Image": pixelPNG,
		"userRef":     "REF123456",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		URL string `json:"url"`
	}
	decode(t, rec, &resp)
	assert.True(t, strings.HasPrefix(resp.URL, publicURL+"/assets/qr/REF123456_"), resp.URL)
}
