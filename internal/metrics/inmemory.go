package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Counter names as exposed on /metrics.
const (
	MetricScrapes           = "marketplace_scrapes_total"
	MetricListingsSubmitted = "marketplace_listings_submitted_total"
	MetricListingsImported  = "marketplace_listings_imported_total"
	MetricPaymentIntents    = "marketplace_payment_intents_total"
	MetricSettlements       = "marketplace_settlements_total"
	MetricEventsPublished   = "marketplace_events_published_total"
	MetricEventsConsumed    = "marketplace_events_consumed_total"
	MetricBreachChecks      = "marketplace_breach_checks_total"
	MetricProxyRequests     = "marketplace_proxy_requests_total"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	// Counters maps metric name to status label to count.
	Counters map[string]map[string]uint64

	ScrapeDurationCount   uint64
	ScrapeDurationTotalNs int64
}

// Count returns one labeled counter value.
func (s Snapshot) Count(metric, status string) uint64 {
	return s.Counters[metric][status]
}

// Names returns the counter names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Counters))
	for name := range s.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type labelKey struct {
	metric string
	status string
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	counters sync.Map // labelKey -> *atomic.Uint64

	scrapeDurationCount   atomic.Uint64
	scrapeDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

func (m *InMemoryRecorder) inc(metric, status string) {
	v, _ := m.counters.LoadOrStore(labelKey{metric, status}, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:              make(map[string]map[string]uint64),
		ScrapeDurationCount:   m.scrapeDurationCount.Load(),
		ScrapeDurationTotalNs: m.scrapeDurationTotalNs.Load(),
	}
	m.counters.Range(func(k, v any) bool {
		key := k.(labelKey)
		if snap.Counters[key.metric] == nil {
			snap.Counters[key.metric] = make(map[string]uint64)
		}
		snap.Counters[key.metric][key.status] = v.(*atomic.Uint64).Load()
		return true
	})
	return snap
}

func (m *InMemoryRecorder) IncScrape(status string) { m.inc(MetricScrapes, status) }

func (m *InMemoryRecorder) ObserveScrapeDuration(d time.Duration) {
	m.scrapeDurationCount.Add(1)
	m.scrapeDurationTotalNs.Add(d.Nanoseconds())
}

func (m *InMemoryRecorder) IncListingSubmitted(status string) {
	m.inc(MetricListingsSubmitted, status)
}

func (m *InMemoryRecorder) IncListingImported(status string) {
	m.inc(MetricListingsImported, status)
}

func (m *InMemoryRecorder) IncPaymentIntent(status string) { m.inc(MetricPaymentIntents, status) }
func (m *InMemoryRecorder) IncSettlement(status string) { m.inc(MetricSettlements, status) }
func (m *InMemoryRecorder) IncEventPublished(status string) {
	m.inc(MetricEventsPublished, status)
}
func (m *InMemoryRecorder) IncEventConsumed(status string) {
	m.inc(MetricEventsConsumed, status)
}
func (m *InMemoryRecorder) IncBreachCheck(status string) { m.inc(MetricBreachChecks, status) }
func (m *InMemoryRecorder) IncProxyRequest(status string) { m.inc(MetricProxyRequests, status) }
