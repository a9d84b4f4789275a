package printing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(ttl time.Duration) *Dispatcher {
	return NewDispatcher(Config{
		Secret:     "test-secret",
		TTL:        ttl,
		PageWidth:  "62mm",
		PageHeight: "100mm",
		PublicURL:  "http://kiosk.local",
	})
}

func TestDispatcher_TicketRoundTrip(t *testing.T) {
	d := newTestDispatcher(time.Minute)

	ticket, err := d.Ticket("https://cdn.example.com/badges/REF1-print_x.png", true, "REF1")
	require.NoError(t, err)

	job, err := d.ParseTicket(ticket)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/badges/REF1-print_x.png", job.ImageURL)
	assert.True(t, job.Rotate)
	assert.Equal(t, "REF1", job.Ref)

	assert.True(t, strings.HasPrefix(d.PrintURL(ticket), "http://kiosk.local/print?ticket="))
}

func TestDispatcher_TicketRejectsScriptURLs(t *testing.T) {
	_, err := newTestDispatcher(time.Minute).Ticket("javascript:alert(1)", false, "REF1")
	assert.ErrorIs(t, err, ErrInvalidImageURL)
}

func TestDispatcher_ParseTicketInvalid(t *testing.T) {
	d := newTestDispatcher(time.Minute)

	expired, err := newTestDispatcher(-time.Minute).Ticket("https://cdn.example.com/a.png", false, "")
	require.NoError(t, err)

	other := NewDispatcher(Config{Secret: "other", TTL: time.Minute})
	foreign, err := other.Ticket("https://cdn.example.com/a.png", false, "")
	require.NoError(t, err)

	for name, ticket := range map[string]string{
		"empty":   "",
		"garbage": "not.a.jwt",
		"expired": expired,
		"foreign": foreign,
	} {
		_, err := d.ParseTicket(ticket)
		assert.ErrorIs(t, err, ErrInvalidTicket, name)
	}
}

func TestDispatcher_RenderPage(t *testing.T) {
	d := newTestDispatcher(time.Minute)

	var sb strings.Builder
	require.NoError(t, d.RenderPage(&sb, &Job{ImageURL: "data:image/png;base64,AAAA", Rotate: true, Ref: "REF1"}))
	page := sb.String()

	assert.Contains(t, page, "@page { size: 62mm 100mm; margin: 0; }")
	assert.Contains(t, page, "object-fit: contain;")
	assert.Contains(t, page, "rotate(270deg)")
	assert.Contains(t, page, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, page, "window.print()")

	sb.Reset()
	require.NoError(t, d.RenderPage(&sb, &Job{ImageURL: "https://cdn.example.com/a.png"}))
	assert.NotContains(t, sb.String(), "rotate(270deg)")
}

func TestRawBTURL(t *testing.T) {
	assert.Equal(t, "rawbt://image.base64,AAAA", RawBTURL("AAAA"))
	assert.Equal(t, "rawbt://image.base64,AAAA", RawBTURL("data:image/png;base64,AAAA"))
}

func TestDispatcher_RawBTLink(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/badge.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer images.Close()

	ctx := context.Background()
	d := NewDispatcher(Config{Secret: "test-secret", TTL: time.Minute, RawBT: true})

	link, err := d.RawBTLink(ctx, "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "rawbt://image.base64,AAAA", link)

	link, err = d.RawBTLink(ctx, images.URL+"/badge.png")
	require.NoError(t, err)
	assert.Equal(t, "rawbt://image.base64,cG5n", link)

	_, err = d.RawBTLink(ctx, images.URL+"/missing.png")
	assert.Error(t, err)

	_, err = d.RawBTLink(ctx, "javascript:alert(1)")
	assert.ErrorIs(t, err, ErrInvalidImageURL)

	link, err = newTestDispatcher(time.Minute).RawBTLink(ctx, images.URL+"/badge.png")
	require.NoError(t, err)
	assert.Empty(t, link)
}
