package service

import (
	"context"
	"fmt"
	"time"

	"github.com/apimarket/marketplace/internal/model"
)

const (
	// DefaultSalesDays is the report window when none is requested.
	DefaultSalesDays = 30
	// MaxSalesDays caps the report window.
	MaxSalesDays = 365
)

// SalesStore reads the daily sales projection.
type SalesStore interface {
	ListDailySales(ctx context.Context, since time.Time) ([]*model.DailySales, error)
}

// SalesReport is the projection over a window of days ending today (UTC).
type SalesReport struct {
	Days         int                 `json:"days"`
	Since        time.Time           `json:"since"`
	TotalSales   int                 `json:"totalSales"`
	TotalRevenue float64             `json:"totalRevenue"`
	Daily        []*model.DailySales `json:"daily"`
}

// SalesService reports marketplace sales.
type SalesService struct {
	store SalesStore
	now   func() time.Time
}

// NewSalesService creates a new SalesService.
func NewSalesService(store SalesStore) *SalesService {
	return &SalesService{store: store, now: time.Now}
}

// Report returns the last days of sales, today included. days is clamped
// to [1, MaxSalesDays]; zero means DefaultSalesDays.
func (s *SalesService) Report(ctx context.Context, days int) (*SalesReport, error) {
	switch {
	case days == 0:
		days = DefaultSalesDays
	case days < 1:
		days = 1
	case days > MaxSalesDays:
		days = MaxSalesDays
	}

	y, m, d := s.now().UTC().Date()
	since := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	daily, err := s.store.ListDailySales(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	report := &SalesReport{Days: days, Since: since, Daily: daily}
	for _, row := range daily {
		report.TotalSales += row.Sales
		report.TotalRevenue += row.Revenue
	}
	return report, nil
}
