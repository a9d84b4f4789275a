package repository

import (
	"context"
	"testing"
	"time"

	"badge-kiosk-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVisitor(id, ref string, updated time.Time) *models.Visitor {
	return &models.Visitor{
		ID:        id,
		Ref:       ref,
		Name:      "Ada",
		LastName:  "Lovelace",
		Company:   "Analytical Engines",
		Position:  "Engineer",
		Email:     "ada@example.com",
		Phone:     "+44 20 0000",
		EventID:   models.DefaultEventID,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestMemoryRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryVisitorRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newVisitor("1", "REF000001", now)))

	err := repo.Create(ctx, newVisitor("2", "REF000001", now))
	assert.ErrorIs(t, err, ErrDuplicate)

	err = repo.Create(ctx, newVisitor("1", "REF000002", now))
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := repo.RefExists(ctx, "REF000002")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryRepository_GetByRefNotFound(t *testing.T) {
	_, err := NewMemoryVisitorRepository().GetByRef(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ReadYourWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryVisitorRepository()
	require.NoError(t, repo.Create(ctx, newVisitor("1", "REF123456", time.Now())))

	_, err := repo.UpdateRegistration(ctx, "REF123456", models.RegistrationUpdate{
		PhotoURL: "https://cdn.example.com/photos/a.jpg",
		BadgeURL: "https://cdn.example.com/badges/a.png",
	})
	require.NoError(t, err)

	got, err := repo.GetByRef(ctx, "REF123456")
	require.NoError(t, err)
	assert.True(t, got.Registered)
	assert.Equal(t, "https://cdn.example.com/photos/a.jpg", models.Deref(got.PhotoURL))
	assert.Equal(t, "https://cdn.example.com/badges/a.png", models.Deref(got.BadgeURL))
	assert.Nil(t, got.CardURL)
	assert.Nil(t, got.PrintURL)

	// an empty badge url keeps the stored one
	_, err = repo.UpdateRegistration(ctx, "REF123456", models.RegistrationUpdate{PhotoURL: "https://cdn.example.com/photos/b.jpg"})
	require.NoError(t, err)
	got, err = repo.GetByRef(ctx, "REF123456")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/photos/b.jpg", models.Deref(got.PhotoURL))
	assert.Equal(t, "https://cdn.example.com/badges/a.png", models.Deref(got.BadgeURL))
}

func TestMemoryRepository_GetByEventOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryVisitorRepository()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, repo.Create(ctx, newVisitor("1", "REF000001", base)))
	require.NoError(t, repo.Create(ctx, newVisitor("2", "REF000002", base.Add(time.Minute))))
	other := newVisitor("3", "REF000003", base)
	other.EventID = "other-event"
	require.NoError(t, repo.Create(ctx, other))

	_, err := repo.UpdateQRURL(ctx, "REF000001", "https://cdn.example.com/qr/1.png")
	require.NoError(t, err)

	visitors, err := repo.GetByEvent(ctx, models.DefaultEventID)
	require.NoError(t, err)
	require.Len(t, visitors, 2)
	assert.Equal(t, "REF000001", visitors[0].Ref)
	assert.Equal(t, "REF000002", visitors[1].Ref)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryVisitorRepository()
	require.NoError(t, repo.Create(ctx, newVisitor("1", "REF000001", time.Now())))

	got, err := repo.GetByRef(ctx, "REF000001")
	require.NoError(t, err)
	got.Name = "changed"

	again, err := repo.GetByRef(ctx, "REF000001")
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.Name)
}

func TestMemoryRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryVisitorRepository()
	base := time.Now().Add(-time.Hour)

	for i, ref := range []string{"REF000001", "REF000002", "REF000003"} {
		require.NoError(t, repo.Create(ctx, newVisitor(ref, ref, base.Add(time.Duration(i)*time.Minute))))
	}
	grace := newVisitor("4", "REF000004", base.Add(-time.Minute))
	grace.Name, grace.LastName, grace.Email = "Grace", "Hopper", "grace@navy.mil"
	require.NoError(t, repo.Create(ctx, grace))

	visitors, total, err := repo.Search(ctx, VisitorFilter{EventID: models.DefaultEventID, Search: " HOPPER "})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, visitors, 1)
	assert.Equal(t, "REF000004", visitors[0].Ref)

	visitors, total, err = repo.Search(ctx, VisitorFilter{EventID: models.DefaultEventID, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, visitors, 2)
	assert.Equal(t, "REF000001", visitors[0].Ref)
	assert.Equal(t, "REF000004", visitors[1].Ref)

	visitors, total, err = repo.Search(ctx, VisitorFilter{EventID: models.DefaultEventID, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, visitors)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
}
