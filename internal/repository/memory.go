package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"badge-kiosk-backend/internal/models"
)

// MemoryVisitorRepository keeps visitors in process memory.
// Used for single-kiosk demo deployments without a database.
type MemoryVisitorRepository struct {
	mu       sync.RWMutex
	visitors map[string]*models.Visitor // keyed by ref
	ids      map[string]string          // id -> ref
	now      func() time.Time
}

// NewMemoryVisitorRepository creates an empty in-memory repository
func NewMemoryVisitorRepository() *MemoryVisitorRepository {
	return &MemoryVisitorRepository{
		visitors: make(map[string]*models.Visitor),
		ids:      make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new visitor
func (r *MemoryVisitorRepository) Create(ctx context.Context, v *models.Visitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.visitors[v.Ref]; exists {
		return fmt.Errorf("failed to create visitor %s: %w", v.Ref, ErrDuplicate)
	}
	if _, exists := r.ids[v.ID]; exists {
		return fmt.Errorf("failed to create visitor %s: %w", v.ID, ErrDuplicate)
	}

	stored := *v
	r.visitors[v.Ref] = &stored
	r.ids[v.ID] = v.Ref
	return nil
}

// GetByRef retrieves a visitor by reference code
func (r *MemoryVisitorRepository) GetByRef(ctx context.Context, ref string) (*models.Visitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.visitors[ref]
	if !ok {
		return nil, fmt.Errorf("failed to get visitor %s: %w", ref, ErrNotFound)
	}
	out := *v
	return &out, nil
}

// GetByEvent retrieves all visitors of an event, most recently updated first
func (r *MemoryVisitorRepository) GetByEvent(ctx context.Context, eventID string) ([]*models.Visitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visitors := make([]*models.Visitor, 0)
	for _, v := range r.visitors {
		if v.EventID == eventID {
			out := *v
			visitors = append(visitors, &out)
		}
	}
	sort.SliceStable(visitors, func(i, j int) bool {
		return visitors[i].UpdatedAt.After(visitors[j].UpdatedAt)
	})
	return visitors, nil
}

// Search returns one page of matching visitors, most recently updated first,
// along with the total number of matches
func (r *MemoryVisitorRepository) Search(ctx context.Context, f VisitorFilter) ([]*models.Visitor, int, error) {
	visitors, err := r.GetByEvent(ctx, f.EventID)
	if err != nil {
		return nil, 0, err
	}

	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		filtered := visitors[:0]
		for _, v := range visitors {
			if matchesSearch(v, search) {
				filtered = append(filtered, v)
			}
		}
		visitors = filtered
	}

	total := len(visitors)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return visitors[start:end], total, nil
}

func matchesSearch(v *models.Visitor, search string) bool {
	for _, field := range []string{v.Name, v.LastName, v.Company, v.Email} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// UpdateRegistration marks a visitor registered and stores the asset URLs
func (r *MemoryVisitorRepository) UpdateRegistration(ctx context.Context, ref string, u models.RegistrationUpdate) (*models.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[ref]
	if !ok {
		return nil, fmt.Errorf("failed to update registration of %s: %w", ref, ErrNotFound)
	}

	v.Registered = true
	v.PhotoURL = models.StringPtr(u.PhotoURL)
	if u.BadgeURL != "" {
		v.BadgeURL = models.StringPtr(u.BadgeURL)
	}
	if u.CardURL != "" {
		v.CardURL = models.StringPtr(u.CardURL)
	}
	if u.PrintURL != "" {
		v.PrintURL = models.StringPtr(u.PrintURL)
	}
	v.UpdatedAt = r.touch(v.UpdatedAt)

	out := *v
	return &out, nil
}

// UpdateQRURL stores the hosted QR code image URL
func (r *MemoryVisitorRepository) UpdateQRURL(ctx context.Context, ref, qrURL string) (*models.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[ref]
	if !ok {
		return nil, fmt.Errorf("failed to update qr url of %s: %w", ref, ErrNotFound)
	}
	v.QRURL = models.StringPtr(qrURL)
	v.UpdatedAt = r.touch(v.UpdatedAt)

	out := *v
	return &out, nil
}

// RefExists checks if a reference code is already taken
func (r *MemoryVisitorRepository) RefExists(ctx context.Context, ref string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.visitors[ref]
	return ok, nil
}

// Ping always succeeds
func (r *MemoryVisitorRepository) Ping(ctx context.Context) error {
	return nil
}

// touch returns a timestamp strictly after prev so ordering by updated_at stays total
func (r *MemoryVisitorRepository) touch(prev time.Time) time.Time {
	now := r.now()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}
