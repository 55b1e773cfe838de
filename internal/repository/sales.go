package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/apimarket/marketplace/internal/model"
)

// RecordSales applies sales to the daily aggregates in one transaction and
// returns how many were new. Event ids already in processed_events are
// skipped, so redelivered events never double count.
func (r *Repository) RecordSales(ctx context.Context, sales []*model.Sale) (int, error) {
	if len(sales) == 0 {
		return 0, nil
	}

	recorded := 0
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		recorded = 0
		for _, s := range sales {
			tag, err := tx.Exec(ctx, `
				INSERT INTO processed_events (event_id) VALUES ($1)
				ON CONFLICT (event_id) DO NOTHING
			`, s.EventID)
			if err != nil {
				return fmt.Errorf("failed to mark event %s: %w", s.EventID, err)
			}
			if tag.RowsAffected() == 0 {
				continue
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO sales_daily (listing_id, day, sales, revenue)
				VALUES ($1, $2, 1, $3)
				ON CONFLICT (listing_id, day) DO UPDATE
				SET sales = sales_daily.sales + 1,
				    revenue = sales_daily.revenue + EXCLUDED.revenue
			`, s.ListingID, s.Day(), s.Amount)
			if err != nil {
				return fmt.Errorf("failed to aggregate sale: %w", err)
			}
			recorded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recorded, nil
}

// ListDailySales returns aggregates for days on or after since, newest day
// first and highest revenue first within a day.
func (r *Repository) ListDailySales(ctx context.Context, since time.Time) ([]*model.DailySales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.listing_id, COALESCE(l.name, ''), s.day, s.sales, s.revenue
		FROM sales_daily s
		LEFT JOIN listings l ON l.id = s.listing_id
		WHERE s.day >= $1
		ORDER BY s.day DESC, s.revenue DESC, s.listing_id
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list daily sales: %w", err)
	}
	defer rows.Close()

	out := make([]*model.DailySales, 0)
	for rows.Next() {
		var d model.DailySales
		if err := rows.Scan(&d.ListingID, &d.ListingName, &d.Day, &d.Sales, &d.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan daily sales: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily sales: %w", err)
	}
	return out, nil
}
