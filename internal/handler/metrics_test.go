package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apimarket/marketplace/internal/metrics"
)

func TestMetricsHandler(t *testing.T) {
	rec := metrics.NewInMemory()
	rec.IncSettlement(metrics.StatusSuccess)
	rec.IncSettlement(metrics.StatusSuccess)
	rec.IncSettlement("already_settled")
	rec.IncScrape("cache_hit")
	rec.ObserveScrapeDuration(1500 * time.Millisecond)

	w := httptest.NewRecorder()
	NewMetricsHandler(rec).Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	for _, line := range []string{
		"# TYPE marketplace_settlements_total counter",
		`marketplace_settlements_total{status="already_settled"} 1`,
		`marketplace_settlements_total{status="success"} 2`,
		`marketplace_scrapes_total{status="cache_hit"} 1`,
		"marketplace_scrape_duration_seconds_count 1",
		"marketplace_scrape_duration_seconds_sum 1.500000",
	} {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("missing %q in:\n%s", line, body)
		}
	}
	if strings.Index(body, `status="already_settled"`) > strings.Index(body, `status="success"} 2`) {
		t.Error("statuses should be sorted")
	}
}

func TestMetricsHandler_NoRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	NewMetricsHandler(nil).Metrics(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
