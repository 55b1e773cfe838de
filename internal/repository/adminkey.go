package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/apimarket/marketplace/internal/model"
)

// Common errors for admin key operations.
var (
	ErrAdminKeyNotFound = errors.New("admin key not found")
)

// CreateAdminKey inserts a new admin key.
func (r *Repository) CreateAdminKey(ctx context.Context, key *model.AdminKey) error {
	query := `
		INSERT INTO admin_keys (id, name, key_hash, key_prefix, scopes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.Name,
		key.KeyHash,
		key.KeyPrefix,
		pq.Array(key.Scopes),
		key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin key: %w", err)
	}

	return nil
}

// GetAdminKeysByPrefix returns active keys sharing a visible prefix.
// More than one row means a prefix collision; callers verify each hash.
func (r *Repository) GetAdminKeysByPrefix(ctx context.Context, prefix string) ([]*model.AdminKey, error) {
	query := `
		SELECT id, name, key_hash, key_prefix, scopes, revoked_at, last_used_at, created_at
		FROM admin_keys
		WHERE key_prefix = $1 AND revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.AdminKey
	for rows.Next() {
		var k model.AdminKey
		var scopes []string
		if err := rows.Scan(
			&k.ID,
			&k.Name,
			&k.KeyHash,
			&k.KeyPrefix,
			pq.Array(&scopes),
			&k.RevokedAt,
			&k.LastUsedAt,
			&k.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan admin key: %w", err)
		}
		k.Scopes = scopes
		keys = append(keys, &k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admin keys: %w", err)
	}

	return keys, nil
}

// TouchAdminKey records the last time a key authenticated.
func (r *Repository) TouchAdminKey(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE admin_keys SET last_used_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update admin key last_used_at: %w", err)
	}
	return nil
}

// RevokeAdminKey marks a key revoked.
func (r *Repository) RevokeAdminKey(ctx context.Context, id string) error {
	var revokedID string
	err := r.pool.QueryRow(ctx,
		`UPDATE admin_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL RETURNING id`,
		id,
	).Scan(&revokedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAdminKeyNotFound
		}
		return fmt.Errorf("failed to revoke admin key: %w", err)
	}
	return nil
}
