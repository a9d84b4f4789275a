package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"badge-kiosk-backend/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no visitor matches the lookup
	ErrNotFound = errors.New("visitor not found")
	// ErrDuplicate is returned when a visitor id or ref already exists
	ErrDuplicate = errors.New("visitor already exists")
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// VisitorFilter selects a page of an event's visitors. Search matches name,
// last name, company and email case-insensitively. Zero Limit means no limit.
type VisitorFilter struct {
	EventID string
	Search  string
	Limit   int
	Offset  int
}

// VisitorStore is the set of visitor record operations the services rely on
type VisitorStore interface {
	Create(ctx context.Context, visitor *models.Visitor) error
	GetByRef(ctx context.Context, ref string) (*models.Visitor, error)
	GetByEvent(ctx context.Context, eventID string) ([]*models.Visitor, error)
	Search(ctx context.Context, filter VisitorFilter) ([]*models.Visitor, int, error)
	UpdateRegistration(ctx context.Context, ref string, update models.RegistrationUpdate) (*models.Visitor, error)
	UpdateQRURL(ctx context.Context, ref, qrURL string) (*models.Visitor, error)
	RefExists(ctx context.Context, ref string) (bool, error)
}

const visitorColumns = `id, ref, name, last_name, company, position, email, phone, event_id,
	registered, photo_url, qr_url, badge_url, card_url, print_url, created_at, updated_at`

// VisitorRepository handles database operations for visitors
type VisitorRepository struct {
	db *pgxpool.Pool
}

// NewVisitorRepository creates a new visitor repository
func NewVisitorRepository(db *pgxpool.Pool) *VisitorRepository {
	return &VisitorRepository{db: db}
}

// Create inserts a new visitor
func (r *VisitorRepository) Create(ctx context.Context, v *models.Visitor) error {
	query := `
		INSERT INTO users (` + visitorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.Exec(ctx, query,
		v.ID, v.Ref, v.Name, v.LastName, v.Company, v.Position, v.Email, v.Phone, v.EventID,
		v.Registered, v.PhotoURL, v.QRURL, v.BadgeURL, v.CardURL, v.PrintURL, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("failed to create visitor %s: %w", v.Ref, ErrDuplicate)
		}
		return fmt.Errorf("failed to create visitor: %w", err)
	}
	return nil
}

// GetByRef retrieves a visitor by reference code
func (r *VisitorRepository) GetByRef(ctx context.Context, ref string) (*models.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM users WHERE ref = $1`
	v, err := scanVisitor(r.db.QueryRow(ctx, query, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to get visitor %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}
	return v, nil
}

// GetByEvent retrieves all visitors of an event, most recently updated first
func (r *VisitorRepository) GetByEvent(ctx context.Context, eventID string) ([]*models.Visitor, error) {
	query := `
		SELECT ` + visitorColumns + `
		FROM users
		WHERE event_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get visitors: %w", err)
	}
	defer rows.Close()

	visitors := make([]*models.Visitor, 0)
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visitors: %w", err)
	}

	return visitors, nil
}

// Search returns one page of matching visitors, most recently updated first,
// along with the total number of matches
func (r *VisitorRepository) Search(ctx context.Context, f VisitorFilter) ([]*models.Visitor, int, error) {
	where := sq.And{sq.Eq{"event_id": f.EventID}}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where = append(where, sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"last_name": pattern},
			sq.ILike{"company": pattern},
			sq.ILike{"email": pattern},
		})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("users").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count visitors: %w", err)
	}

	builder := psql.Select(visitorColumns).
		From("users").
		Where(where).
		OrderBy("updated_at DESC")
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		builder = builder.Offset(uint64(f.Offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search visitors: %w", err)
	}
	defer rows.Close()

	visitors := make([]*models.Visitor, 0)
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan visitor: %w", err)
		}
		visitors = append(visitors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating visitors: %w", err)
	}

	return visitors, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside an ILIKE pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// UpdateRegistration marks a visitor registered and stores the asset URLs.
// Empty badge, card and print URLs leave the stored values untouched.
func (r *VisitorRepository) UpdateRegistration(ctx context.Context, ref string, u models.RegistrationUpdate) (*models.Visitor, error) {
	query := `
		UPDATE users
		SET registered = TRUE,
			photo_url = $2,
			badge_url = COALESCE($3, badge_url),
			card_url = COALESCE($4, card_url),
			print_url = COALESCE($5, print_url),
			updated_at = $6
		WHERE ref = $1
		RETURNING ` + visitorColumns
	row := r.db.QueryRow(ctx, query, ref, u.PhotoURL,
		models.StringPtr(u.BadgeURL), models.StringPtr(u.CardURL), models.StringPtr(u.PrintURL), time.Now().UTC())
	v, err := scanVisitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update registration of %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}
	return v, nil
}

// UpdateQRURL stores the hosted QR code image URL
func (r *VisitorRepository) UpdateQRURL(ctx context.Context, ref, qrURL string) (*models.Visitor, error) {
	query := `
		UPDATE users SET qr_url = $2, updated_at = $3
		WHERE ref = $1
		RETURNING ` + visitorColumns
	v, err := scanVisitor(r.db.QueryRow(ctx, query, ref, qrURL, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update qr url of %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update qr url: %w", err)
	}
	return v, nil
}

// RefExists checks if a reference code is already taken
func (r *VisitorRepository) RefExists(ctx context.Context, ref string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE ref = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, ref).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ref existence: %w", err)
	}
	return exists, nil
}

// Ping checks the database connection
func (r *VisitorRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanVisitor(row pgx.Row) (*models.Visitor, error) {
	var v models.Visitor
	err := row.Scan(
		&v.ID, &v.Ref, &v.Name, &v.LastName, &v.Company, &v.Position, &v.Email, &v.Phone, &v.EventID,
		&v.Registered, &v.PhotoURL, &v.QRURL, &v.BadgeURL, &v.CardURL, &v.PrintURL, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
