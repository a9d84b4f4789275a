package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"badge-kiosk-backend/internal/models"
	"badge-kiosk-backend/internal/repository"
	"badge-kiosk-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueInput() IssueInput {
	return IssueInput{
		Name:     "Ada",
		LastName: "Lovelace",
		Company:  "Analytical Engines",
		Position: "Engineer",
		Email:    "ada@example.com",
		Phone:    "+44 20 0000",
	}
}

func newGateway(t *testing.T) (*storage.Gateway, *storage.LocalBackend) {
	t.Helper()
	backend, err := storage.NewLocalBackend(t.TempDir(), "http://kiosk.local")
	require.NoError(t, err)
	return storage.NewGateway(backend, storage.Buckets{Photos: "photos", QR: "qr", Badges: "badges"}), backend
}

func TestIssuanceService_Issue(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryVisitorRepository()
	gw, backend := newGateway(t)
	v := NewValidator()
	svc := NewIssuanceService(NewVisitorService(repo, v, false), gw, v, models.DefaultEventID, 256)

	issued, err := svc.Issue(ctx, issueInput(), "http://kiosk.local/")
	require.NoError(t, err)

	ref := issued.Visitor.Ref
	assert.Equal(t, "http://kiosk.local/register?id="+ref, issued.RegisterURL)
	assert.True(t, strings.HasPrefix(issued.QRURL, "http://kiosk.local/assets/qr/"+ref+"_"))
	assert.Equal(t, issued.QRURL, models.Deref(issued.Visitor.QRURL))
	assert.False(t, issued.Visitor.Registered)
	assert.Equal(t, models.DefaultEventID, issued.Visitor.EventID)

	stored, err := repo.GetByRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, issued.QRURL, models.Deref(stored.QRURL))

	entries, err := os.ReadDir(filepath.Join(backend.Dir(), "qr"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	png, err := os.ReadFile(filepath.Join(backend.Dir(), "qr", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

type failingUploader struct{}

func (failingUploader) Upload(context.Context, storage.UploadInput) (string, error) {
	return "", errors.New("bucket unavailable")
}

func (failingUploader) UploadBytes(context.Context, []byte, string, string, storage.Kind, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestIssuanceService_QRFailureStillReturnsVisitor(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryVisitorRepository()
	v := NewValidator()
	svc := NewIssuanceService(NewVisitorService(repo, v, false), failingUploader{}, v, models.DefaultEventID, 256)

	issued, err := svc.Issue(ctx, issueInput(), "http://kiosk.local")
	require.NoError(t, err)
	assert.Empty(t, issued.QRURL)

	stored, err := repo.GetByRef(ctx, issued.Visitor.Ref)
	require.NoError(t, err)
	assert.Nil(t, stored.QRURL)
}

func TestIssuanceService_Validation(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryVisitorRepository()
	gw, _ := newGateway(t)
	v := NewValidator()
	svc := NewIssuanceService(NewVisitorService(repo, v, false), gw, v, models.DefaultEventID, 256)

	in := issueInput()
	in.Email = "not-an-email"
	_, err := svc.Issue(ctx, in, "http://kiosk.local")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	visitors, err := repo.GetByEvent(ctx, models.DefaultEventID)
	require.NoError(t, err)
	assert.Empty(t, visitors)
}

func TestRegisterURL(t *testing.T) {
	assert.Equal(t, "https://kiosk.example.com/register?id=REF123456", RegisterURL("https://kiosk.example.com/", "REF123456"))
}
