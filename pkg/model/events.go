package model

import "time"

// Event types emitted by the aggregation layer.
const (
	EventProviderFailed   = "experiences.provider.failed"
	EventListingRefreshed = "experiences.listing.refreshed"
)

// ProviderFailedEvent is emitted when a source contributes nothing to an
// operation because it failed or timed out.
type ProviderFailedEvent struct {
	Source    string    `json:"source"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ListingRefreshedEvent is emitted after the merged listing for a range is rebuilt.
type ListingRefreshedEvent struct {
	Start      Date           `json:"start"`
	End        Date           `json:"end"`
	Total      int            `json:"total"`
	BySource   map[string]int `json:"by_source"`
	Degraded   bool           `json:"degraded"`
	DurationMS int64          `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
}
