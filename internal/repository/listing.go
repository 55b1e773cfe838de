package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/apimarket/marketplace/internal/model"
)

// Common errors for listing repository operations.
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrListingExists   = errors.New("listing already exists")
)

// Unique index names from migrations/000001_listings.up.sql.
const (
	listingNameKey = "listings_name_key"
	listingLinkKey = "listings_link_key"
)

const listingColumns = `id, name, description, category, link, auth, https, cors, is_paid, price, endpoint, COALESCE(user_id, ''), created_at`

// CreateListing inserts a new listing. Name and link uniqueness are enforced
// by the store; a violation of either returns ErrListingExists.
func (r *Repository) CreateListing(ctx context.Context, l *model.Listing) error {
	query := `
		INSERT INTO listings (id, name, description, category, link, auth, https, cors, is_paid, price, endpoint, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13)
	`

	_, err := r.pool.Exec(ctx, query,
		l.ID,
		l.Name,
		l.Description,
		l.Category,
		l.Link,
		l.Auth,
		l.HTTPS,
		l.Cors,
		l.IsPaid,
		l.Price,
		l.Endpoint,
		l.UserID,
		l.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return fmt.Errorf("%w (%s)", ErrListingExists, duplicateField(constraint))
		}
		return fmt.Errorf("failed to create listing: %w", err)
	}

	return nil
}

// GetListingByID retrieves a listing by its identifier.
func (r *Repository) GetListingByID(ctx context.Context, id string) (*model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing by ID: %w", err)
	}
	return l, nil
}

// GetListingByName retrieves a listing whose name equals name exactly.
func (r *Repository) GetListingByName(ctx context.Context, name string) (*model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE name = $1`

	l, err := scanListing(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing by name: %w", err)
	}
	return l, nil
}

// FindListingByNameFold retrieves the oldest listing whose name matches name
// case-insensitively.
func (r *Repository) FindListingByNameFold(ctx context.Context, name string) (*model.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE LOWER(name) = LOWER($1)
		ORDER BY created_at, id
		LIMIT 1
	`

	l, err := scanListing(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing by name: %w", err)
	}
	return l, nil
}

// ListListings returns every listing in insertion order.
func (r *Repository) ListListings(ctx context.Context) ([]*model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at, id`
	return r.queryListings(ctx, query)
}

// ListListingsByUser returns the listings submitted by userID.
func (r *Repository) ListListingsByUser(ctx context.Context, userID string) ([]*model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE user_id = $1 ORDER BY created_at, id`
	return r.queryListings(ctx, query, userID)
}

// CountListings returns the catalog size.
func (r *Repository) CountListings(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return count, nil
}

func (r *Repository) queryListings(ctx context.Context, query string, args ...any) ([]*model.Listing, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]*model.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, nil
}

// scanListing scans a single row into a Listing model.
func scanListing(row pgx.Row) (*model.Listing, error) {
	var l model.Listing
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Description,
		&l.Category,
		&l.Link,
		&l.Auth,
		&l.HTTPS,
		&l.Cors,
		&l.IsPaid,
		&l.Price,
		&l.Endpoint,
		&l.UserID,
		&l.CreatedAt,
	)
	return &l, err
}

func duplicateField(constraint string) string {
	switch constraint {
	case listingNameKey:
		return "name"
	case listingLinkKey:
		return "link"
	default:
		return constraint
	}
}
