package aggregator

import "time"

const (
	DefaultListCacheTTL    = 30 * time.Minute
	DefaultProviderTimeout = 30 * time.Second
	DefaultListWindowDays  = 14
)

// Config tunes the aggregator. Zero values take the defaults above.
type Config struct {
	// ListCacheTTL is how long a merged listing stays cached.
	ListCacheTTL time.Duration
	// DefaultProviderTimeout bounds calls into adapters that do not declare
	// their own timeout.
	DefaultProviderTimeout time.Duration
	// ListWindowDays is the default listing window starting today.
	ListWindowDays int
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.ListCacheTTL <= 0 {
		c.ListCacheTTL = DefaultListCacheTTL
	}
	if c.DefaultProviderTimeout <= 0 {
		c.DefaultProviderTimeout = DefaultProviderTimeout
	}
	if c.ListWindowDays <= 0 {
		c.ListWindowDays = DefaultListWindowDays
	}
	return c
}
