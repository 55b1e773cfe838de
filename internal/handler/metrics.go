package handler

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/apimarket/marketplace/internal/metrics"
)

// MetricsHandler serves the in-memory counters as Prometheus text.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics handles GET /metrics. Counters are labelled by status only.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(exposition(h.snapshotter.Snapshot())))
}

func exposition(snap metrics.Snapshot) string {
	var b strings.Builder
	for _, name := range snap.Names() {
		byStatus := snap.Counters[name]
		fmt.Fprintf(&b, "# TYPE %s counter\n", name)
		for _, status := range slices.Sorted(maps.Keys(byStatus)) {
			fmt.Fprintf(&b, "%s{status=%q} %d\n", name, status, byStatus[status])
		}
	}

	const scrape = "marketplace_scrape_duration_seconds"
	fmt.Fprintf(&b, "# TYPE %s summary\n", scrape)
	fmt.Fprintf(&b, "%s_count %d\n", scrape, snap.ScrapeDurationCount)
	fmt.Fprintf(&b, "%s_sum %.6f\n", scrape, float64(snap.ScrapeDurationTotalNs)/1e9)
	return b.String()
}
