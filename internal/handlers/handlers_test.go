package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"badge-kiosk-backend/internal/badge"
	"badge-kiosk-backend/internal/models"
	"badge-kiosk-backend/internal/printing"
	"badge-kiosk-backend/internal/repository"
	"badge-kiosk-backend/internal/services"
	"badge-kiosk-backend/internal/storage"
	"badge-kiosk-backend/internal/wizard"

	"github.com/stretchr/testify/require"
)

const (
	pixelB64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="
	pixelPNG = "data:image/png;base64," + pixelB64

	publicURL = "http://kiosk.local"
)

type fakeAvatar struct {
	fail bool
}

func (f fakeAvatar) Generate(ctx context.Context, photo, visitorName string, style models.AvatarStyle) (string, bool) {
	if f.fail {
		return "", false
	}
	return pixelB64, true
}

type testServer struct {
	handler http.Handler
	repo    *repository.MemoryVisitorRepository
	backend *storage.LocalBackend
	printer *printing.Dispatcher
}

type serverOptions struct {
	avatar services.AvatarGenerator
	rawBT  bool
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()

	if opts.avatar == nil {
		opts.avatar = fakeAvatar{}
	}

	repo := repository.NewMemoryVisitorRepository()
	backend, err := storage.NewLocalBackend(t.TempDir(), publicURL)
	require.NoError(t, err)
	gw := storage.NewGateway(backend, storage.Buckets{Photos: "photos", QR: "qr", Badges: "badges"})

	layout, err := badge.LayoutByName(badge.LayoutSingle)
	require.NoError(t, err)
	compositor := badge.NewCompositor(layout, "")

	printer := printing.NewDispatcher(printing.Config{
		Secret:     "test-secret",
		TTL:        time.Minute,
		PageWidth:  "62mm",
		PageHeight: "100mm",
		PublicURL:  publicURL,
		RawBT:      opts.rawBT,
	})

	v := services.NewValidator()
	visitors := services.NewVisitorService(repo, v, false)
	issuance := services.NewIssuanceService(visitors, gw, v, models.DefaultEventID, 128)
	hub := services.NewSessionHub()
	registration := services.NewRegistrationService(
		visitors,
		opts.avatar,
		compositor,
		gw,
		printer,
		wizard.NewMemoryStore(time.Minute),
		wizard.NewMemoryLocker(),
		hub,
		services.RegistrationConfig{PrintingTick: 5 * time.Millisecond, Rotate: true},
	)
	t.Cleanup(registration.Close)

	h := Handlers{
		Users:     NewUserHandler(visitors),
		Storage:   NewStorageHandler(gw),
		Badges:    NewBadgeHandler(opts.avatar, compositor),
		Camera:    NewCameraHandler(gw),
		Visitors:  NewVisitorHandler(issuance, visitors, printer, VisitorHandlerConfig{EventID: models.DefaultEventID, PublicURL: publicURL, Rotate: true}),
		Print:     NewPrintHandler(printer, gw),
		Sessions:  NewSessionHandler(registration),
		WebSocket: NewWebSocketHandler(hub, registration),
		Health:    Health(repo),
	}

	return &testServer{
		handler: NewRouter(h, RouterConfig{
			AllowedOrigins: []string{"*"},
			Printer:        printer,
			AssetsDir:      backend.Dir(),
		}),
		repo:    repo,
		backend: backend,
		printer: printer,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return s.doRequest(t, newRequest(t, method, path, body))
}

func (s *testServer) doRequest(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func newRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Error
}

func visitorBody(ref string) map[string]string {
	return map[string]string{
		"ref":       ref,
		"name":      "Ada",
		"last_name": "Lovelace",
		"company":   "Analytical Engines",
		"position":  "Engineer",
		"email":     "ada@example.com",
		"phone":     "+44 20 0000",
		"event_id":  models.DefaultEventID,
	}
}

func (s *testServer) createVisitor(t *testing.T, ref string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/users/create", visitorBody(ref))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
