package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/apimarket/marketplace/internal/model"
)

// ErrTransactionNotFound is returned when no receipt exists.
var ErrTransactionNotFound = errors.New("transaction not found")

const transactionColumns = `id, buyer_id, buyer_email, COALESCE(seller_id, ''), listing_id, listing_name, amount, payment_intent_id, created_at`

// ListTransactions returns the newest receipts first.
func (r *Repository) ListTransactions(ctx context.Context, limit int) ([]*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]*model.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// CountTransactions counts receipts for a (buyer, listing) pair.
func (r *Repository) CountTransactions(ctx context.Context, buyerID, listingID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE buyer_id = $1 AND listing_id = $2`,
		buyerID, listingID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(
		&t.ID,
		&t.BuyerID,
		&t.BuyerEmail,
		&t.SellerID,
		&t.APIID,
		&t.APIName,
		&t.Amount,
		&t.PaymentIntentID,
		&t.CreatedAt,
	)
	return &t, err
}
