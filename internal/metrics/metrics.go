// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels shared by several counters.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Scraper
	IncScrape(status string) // "success", "failed", "cache_hit"
	ObserveScrapeDuration(duration time.Duration)

	// Catalog
	IncListingSubmitted(status string) // "created", "conflict", "invalid", "failed"
	IncListingImported(status string)  // "created", "skipped"

	// Checkout
	IncPaymentIntent(status string) // "created", "rejected", "failed"
	IncSettlement(status string)    // "settled", "duplicate", "failed"
	IncEventPublished(status string)
	IncEventConsumed(status string) // "recorded", "duplicate", "ignored", "dead_lettered", "failed"

	// Tools
	IncBreachCheck(status string)  // "compromised", "safe", "failed"
	IncProxyRequest(status string) // "success", "blocked", "failed"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
