package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/apimarket/marketplace/internal/model"
)

// Common errors for account repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
)

// accountColumns selects an account with its entitlements folded into an array.
const accountColumns = `
	a.uid, a.email, a.earnings, a.credits, a.github_link, a.created_at, a.updated_at,
	ARRAY(SELECT p.listing_id::text FROM purchases p WHERE p.buyer_id = a.uid ORDER BY p.created_at, p.listing_id)
`

// EnsureAccount creates the account for uid if it does not exist, with all
// commerce fields zeroed. A non-empty email replaces the stored one.
func (r *Repository) EnsureAccount(ctx context.Context, uid, email string) (*model.Account, error) {
	if err := upsertAccount(ctx, r.pool, uid, email); err != nil {
		return nil, err
	}
	return r.GetAccount(ctx, uid)
}

// GetAccount retrieves an account and its purchased listing ids.
func (r *Repository) GetAccount(ctx context.Context, uid string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.uid = $1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// UpdateProfile stores profile metadata for uid, creating the account when
// it is missing.
func (r *Repository) UpdateProfile(ctx context.Context, uid string, profile model.Profile) (*model.Account, error) {
	query := `
		INSERT INTO accounts (uid, github_link)
		VALUES ($1, $2)
		ON CONFLICT (uid) DO UPDATE
		SET github_link = EXCLUDED.github_link, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, uid, profile.GithubLink); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return r.GetAccount(ctx, uid)
}

func upsertAccount(ctx context.Context, db querier, uid, email string) error {
	query := `
		INSERT INTO accounts (uid, email)
		VALUES ($1, $2)
		ON CONFLICT (uid) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE accounts.email END,
		    updated_at = NOW()
	`

	if _, err := db.Exec(ctx, query, uid, email); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var purchased []string
	err := row.Scan(
		&a.UID,
		&a.Email,
		&a.Earnings,
		&a.Credits,
		&a.GithubLink,
		&a.CreatedAt,
		&a.UpdatedAt,
		pq.Array(&purchased),
	)
	if err != nil {
		return nil, err
	}
	if purchased == nil {
		purchased = []string{}
	}
	a.PurchasedAPIs = purchased
	return &a, nil
}
