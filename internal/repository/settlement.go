package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/apimarket/marketplace/internal/model"
)

// SettleParams describes one post-payment reconciliation.
type SettleParams struct {
	BuyerID         string
	BuyerEmail      string
	Listing         *model.Listing
	PaymentIntentID string
	TransactionID   string
	SettledAt       time.Time
}

// Settle grants the buyer an entitlement to the listing, credits the seller
// and records a transaction, all in one database transaction. Only an
// existing seller account is credited; a listing whose owner has no account
// settles with SellerCredited false.
//
// The purchases primary key on (buyer_id, listing_id) is the idempotency key:
// when the row already exists nothing else is written and the result reports
// AlreadySettled. Concurrent callers for the same pair serialize on that key.
func (r *Repository) Settle(ctx context.Context, p SettleParams) (*model.Settlement, error) {
	if p.Listing == nil {
		return nil, ErrListingNotFound
	}

	result := &model.Settlement{}

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := upsertAccount(ctx, tx, p.BuyerID, p.BuyerEmail); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO purchases (buyer_id, listing_id, payment_intent_id, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (buyer_id, listing_id) DO NOTHING
		`, p.BuyerID, p.Listing.ID, p.PaymentIntentID, p.SettledAt)
		if err != nil {
			return fmt.Errorf("failed to record purchase: %w", err)
		}

		if tag.RowsAffected() == 0 {
			result.AlreadySettled = true
			return nil
		}

		if p.Listing.HasSeller() {
			tag, err := tx.Exec(ctx, `
				UPDATE accounts
				SET earnings = earnings + $2, updated_at = NOW()
				WHERE uid = $1
			`, p.Listing.UserID, p.Listing.Price)
			if err != nil {
				return fmt.Errorf("failed to credit seller: %w", err)
			}
			result.SellerCredited = tag.RowsAffected() == 1
		}

		txn := &model.Transaction{
			ID:              p.TransactionID,
			BuyerID:         p.BuyerID,
			BuyerEmail:      p.BuyerEmail,
			SellerID:        p.Listing.UserID,
			APIID:           p.Listing.ID,
			APIName:         p.Listing.Name,
			Amount:          p.Listing.Price,
			PaymentIntentID: p.PaymentIntentID,
			CreatedAt:       p.SettledAt,
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (id, buyer_id, buyer_email, seller_id, listing_id, listing_name, amount, payment_intent_id, created_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		`,
			txn.ID,
			txn.BuyerID,
			txn.BuyerEmail,
			txn.SellerID,
			txn.APIID,
			txn.APIName,
			txn.Amount,
			txn.PaymentIntentID,
			txn.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		result.Transaction = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetTransaction retrieves the receipt for a (buyer, listing) pair.
func (r *Repository) GetTransaction(ctx context.Context, buyerID, listingID string) (*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE buyer_id = $1 AND listing_id = $2
	`

	txn, err := scanTransaction(r.pool.QueryRow(ctx, query, buyerID, listingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}
