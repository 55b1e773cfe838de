package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncScrape(string) {}
func (n *NoopRecorder) ObserveScrapeDuration(time.Duration) {}
func (n *NoopRecorder) IncListingSubmitted(string) {}
func (n *NoopRecorder) IncListingImported(string) {}
func (n *NoopRecorder) IncPaymentIntent(string) {}
func (n *NoopRecorder) IncSettlement(string) {}
func (n *NoopRecorder) IncEventPublished(string) {}
func (n *NoopRecorder) IncEventConsumed(string) {}
func (n *NoopRecorder) IncBreachCheck(string) {}
func (n *NoopRecorder) IncProxyRequest(string) {}
