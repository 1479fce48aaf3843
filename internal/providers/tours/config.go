package tours

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// Defaults for a tours provider.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultCacheTTL    = time.Hour
	DefaultHealthTTL   = 30 * time.Second
	DefaultRetryMax    = 2
	healthProbeTimeout = 5 * time.Second
	nativeIDTTL        = 24 * time.Hour
)

// Config describes one provider speaking the tours wire contract.
type Config struct {
	Name         string // source tag, e.g. "heavenly_tours"
	DisplayName  string // e.g. "Heavenly Tours"
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	CacheTTL     time.Duration
	Enabled      bool
	MockFallback bool
	HealthProbe  bool
	HealthTTL    time.Duration
	RetryMax     int
	Placeholder  string
}

// WithDefaults fills unset durations and counters.
func (c Config) WithDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
	if c.HealthTTL <= 0 {
		c.HealthTTL = DefaultHealthTTL
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Name
	}
	if c.Placeholder == "" {
		c.Placeholder = DefaultPlaceholder
	}
	return c
}

// Validate checks the fields required to build a provider.
func (c Config) Validate() error {
	var errs []error
	switch strings.TrimSpace(c.Name) {
	case "":
		errs = append(errs, errors.New("name is required"))
	case model.SourceLocal:
		errs = append(errs, fmt.Errorf("name %q is reserved", model.SourceLocal))
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("tours provider %q: %w", c.Name, err)
	}
	return nil
}
