package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// Operation names used in logs, metrics and errors.
const (
	OpList         = "list"
	OpDetails      = "details"
	OpAvailability = "availability"
	OpHealth       = "health"
)

// Adapter is the contract every experience source implements, whether it is
// the local catalog or an external provider.
//
// ListExperiences and GetAvailability should degrade rather than fail:
// providers log upstream errors and return an empty (or placeholder) listing
// and Unavailable() respectively. A degraded listing is returned together
// with an error wrapping ErrDegraded so callers serve it without caching it.
// GetDetails returns (nil, nil) when the id is unknown to the source,
// including ids in a format the source never issues.
type Adapter interface {
	Name() string
	IsHealthy(ctx context.Context) bool
	ListExperiences(ctx context.Context, r model.DateRange, f model.Filters) ([]model.Experience, error)
	GetDetails(ctx context.Context, id string) (*model.ExperienceDetails, error)
	GetAvailability(ctx context.Context, id string, date model.Date) (model.Availability, error)
}

// LocalAdapter is the adapter for the system of record. Recognizes reports
// whether id belongs to the local catalog without building the detail view.
type LocalAdapter interface {
	Adapter
	Recognizes(ctx context.Context, id string) (bool, error)
}

// TimeoutAware adapters declare their own per-call deadline.
type TimeoutAware interface {
	Timeout() time.Duration
}

// AdapterError wraps a failure of one source during one operation.
type AdapterError struct {
	Source string
	Op     string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Wrap returns err as an *AdapterError, or nil when err is nil.
func Wrap(src, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AdapterError
	if errors.As(err, &ae) && ae.Source == src && ae.Op == op {
		return err
	}
	return &AdapterError{Source: src, Op: op, Err: err}
}

// ErrTimeout marks a call that exceeded its adapter's deadline.
var ErrTimeout = errors.New("source call timed out")

// ErrPanic marks a call that panicked inside the adapter.
var ErrPanic = errors.New("source call panicked")

// ErrDegraded marks a result served in place of the real upstream answer.
// The accompanying value is usable but must not be cached.
var ErrDegraded = errors.New("source served a degraded result")
