package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// Cache is a keyed read-through cache with per-entry TTL.
// A failed read is reported as a miss; a failed write is dropped.
type Cache[V any] interface {
	Get(ctx context.Context, key Key) (V, bool)
	Put(ctx context.Context, key Key, value V, ttl time.Duration)
	Delete(ctx context.Context, key Key)
}

// Operation names used in cache keys.
const (
	OpListAll      = "list_all"
	OpList         = "list"
	OpDetails      = "details"
	OpAvailability = "availability"
	OpNativeID     = "native_id"
)

// Key identifies one cached value. It is a plain tuple of the operation and
// its arguments; String renders it without any locale- or layout-dependent
// date formatting.
type Key struct {
	Scope string // owner of the entry: "aggregator" or a source name
	Op    string
	Range model.DateRange
	ID    string
	Date  model.Date
}

// ListKey keys a listing by its date range only.
func ListKey(scope, op string, r model.DateRange) Key {
	return Key{Scope: scope, Op: op, Range: r}
}

// IDKey keys a single-entity lookup.
func IDKey(scope, op, id string) Key {
	return Key{Scope: scope, Op: op, ID: id}
}

// IDDateKey keys a lookup by id and calendar date.
func IDDateKey(scope, op, id string, d model.Date) Key {
	return Key{Scope: scope, Op: op, ID: id, Date: d}
}

// String renders the key as colon separated fields. Dates are encoded as
// yyyymmdd integers.
func (k Key) String() string {
	parts := []string{"exp", k.Scope, k.Op}
	if !k.Range.Start.IsZero() || !k.Range.End.IsZero() {
		parts = append(parts, dateToken(k.Range.Start), dateToken(k.Range.End))
	}
	if k.ID != "" {
		parts = append(parts, "id="+k.ID)
	}
	if !k.Date.IsZero() {
		parts = append(parts, dateToken(k.Date))
	}
	return strings.Join(parts, ":")
}

func dateToken(d model.Date) string {
	return strconv.Itoa(d.Year*10000 + int(d.Month)*100 + d.Day)
}
