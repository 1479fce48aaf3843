package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/internal/cache"
	"github.com/Checker-Finance/experiences/internal/events"
	"github.com/Checker-Finance/experiences/internal/metrics"
	"github.com/Checker-Finance/experiences/internal/source"
	"github.com/Checker-Finance/experiences/pkg/model"
)

var (
	// ErrInvalidRange is returned for a missing or inverted date range.
	ErrInvalidRange = model.ErrInvalidRange
	// ErrMissingID is returned when an operation needs an experience id.
	ErrMissingID = errors.New("experience id is required")
	// ErrInvalidDate is returned when an availability date is missing.
	ErrInvalidDate = errors.New("date is required")
)

const cacheScope = "aggregator"

// RelatedLimit caps the related experiences returned with a detail view.
const RelatedLimit = 4

// viewRecorder is implemented by local adapters that count detail views.
type viewRecorder interface {
	RecordView(ctx context.Context, id string)
}

// relatedLister is implemented by local adapters that suggest other
// experiences next to a detail view.
type relatedLister interface {
	Related(ctx context.Context, id string, limit int) ([]model.Experience, error)
}

// Aggregator merges the local catalog and the external providers into one
// view. Provider failures never reach callers; they are logged, counted and
// emitted as events while the provider contributes nothing.
type Aggregator struct {
	registry *source.Registry
	cache    cache.Cache[[]model.Experience]
	cfg      Config
	logger   *zap.Logger
	events   events.Emitter
	now      func() time.Time
}

// New wires an aggregator. A nil emitter discards events.
func New(registry *source.Registry, listCache cache.Cache[[]model.Experience], cfg Config, logger *zap.Logger, emitter events.Emitter) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = events.Nop{}
	}
	if listCache == nil {
		listCache = cache.NewMemory[[]model.Experience](cacheScope + ".list_all")
	}
	return &Aggregator{
		registry: registry,
		cache:    listCache,
		cfg:      cfg.WithDefaults(),
		logger:   logger.Named("aggregator"),
		events:   emitter,
		now:      time.Now,
	}
}

// Config returns the effective configuration.
func (a *Aggregator) Config() Config { return a.cfg }

// DefaultWindow is the listing window used when a caller gives no range.
func (a *Aggregator) DefaultWindow() model.DateRange {
	return model.Window(model.DateOf(a.now()), a.cfg.ListWindowDays)
}

// ─── ListAll ──────────────────────────────────────────────────────────────────

type listResult struct {
	items []model.Experience
	err   error
	ran   bool
}

// ListAll returns the merged listing for r: local items first, then each
// healthy provider's items in registry order. Only a local catalog failure
// is returned as an error. A listing to which every source contributed is
// cached for ListCacheTTL; degraded provider listings are served but keep
// the merge out of the cache.
func (a *Aggregator) ListAll(ctx context.Context, r model.DateRange, f model.Filters) ([]model.Experience, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	key := cache.ListKey(cacheScope, cache.OpListAll, r)
	if items, ok := a.cache.Get(ctx, key); ok {
		return items, nil
	}

	start := a.now()
	local := a.registry.Local()
	providers := a.registry.Providers()
	adapters := make([]source.Adapter, 0, len(providers)+1)
	adapters = append(adapters, local)
	adapters = append(adapters, providers...)

	results := make([]listResult, len(adapters))
	forEach(len(adapters), func(i int) {
		adp := adapters[i]
		if i > 0 && !a.isHealthy(ctx, adp) {
			metrics.IncSourceCall(adp.Name(), source.OpList, "skipped")
			return
		}
		items, err := call(ctx, a, adp, source.OpList, func(ctx context.Context) ([]model.Experience, error) {
			return adp.ListExperiences(ctx, r, f)
		})
		results[i] = listResult{items: items, err: err, ran: true}
	})

	if err := results[0].err; err != nil {
		a.logger.Error("aggregator.local_list_failed", zap.Error(err))
		return nil, err
	}

	var merged []model.Experience
	bySource := make(map[string]int, len(adapters))
	failed := false
	for i, res := range results {
		name := adapters[i].Name()
		if !res.ran {
			continue
		}
		if res.err != nil {
			failed = true
			a.reportFailure(ctx, name, source.OpList, res.err)
			if !errors.Is(res.err, source.ErrDegraded) {
				continue
			}
		}
		for _, item := range res.items {
			if item.Source == "" {
				item.Source = name
			}
			merged = append(merged, item)
		}
		bySource[name] += len(res.items)
	}
	if merged == nil {
		merged = []model.Experience{}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].IsLocal() && !merged[j].IsLocal()
	})

	metrics.MergedListingSize.Observe(float64(len(merged)))
	if failed {
		a.logger.Info("aggregator.list_all.degraded",
			zap.String("start", r.Start.String()),
			zap.String("end", r.End.String()),
			zap.Int("total", len(merged)))
	} else {
		a.cache.Put(ctx, key, merged, a.cfg.ListCacheTTL)
	}

	a.events.Emit(ctx, model.ListingRefreshedEvent{
		Start:      r.Start,
		End:        r.End,
		Total:      len(merged),
		BySource:   bySource,
		Degraded:   failed,
		DurationMS: a.now().Sub(start).Milliseconds(),
		Timestamp:  a.now().UTC(),
	})
	return merged, nil
}

// Invalidate drops the cached merged listing for r.
func (a *Aggregator) Invalidate(ctx context.Context, r model.DateRange) {
	a.cache.Delete(ctx, cache.ListKey(cacheScope, cache.OpListAll, r))
}

// ─── ListBySource ─────────────────────────────────────────────────────────────

// ListBySource lists one source without merging or response caching. An
// unknown or unhealthy provider yields an empty listing.
func (a *Aggregator) ListBySource(ctx context.Context, name string, r model.DateRange, f model.Filters) ([]model.Experience, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	var adp source.Adapter
	if name == model.SourceLocal {
		adp = a.registry.Local()
	} else {
		p, ok := a.registry.Provider(name)
		if !ok || !a.isHealthy(ctx, p) {
			return []model.Experience{}, nil
		}
		adp = p
	}

	items, err := call(ctx, a, adp, source.OpList, func(ctx context.Context) ([]model.Experience, error) {
		return adp.ListExperiences(ctx, r, f)
	})
	if err != nil {
		if name == model.SourceLocal {
			return nil, err
		}
		a.reportFailure(ctx, name, source.OpList, err)
		if !errors.Is(err, source.ErrDegraded) {
			return []model.Experience{}, nil
		}
	}
	out := make([]model.Experience, 0, len(items))
	for _, item := range items {
		if item.Source == "" {
			item.Source = name
		}
		out = append(out, item)
	}
	return out, nil
}

// ─── GetDetails ───────────────────────────────────────────────────────────────

// GetDetails asks the local catalog first, then each healthy provider in
// registry order. The first source that knows id wins; nil means no source
// does.
func (a *Aggregator) GetDetails(ctx context.Context, id string) (*model.ExperienceDetails, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingID
	}

	local := a.registry.Local()
	d, err := call(ctx, a, local, source.OpDetails, func(ctx context.Context) (*model.ExperienceDetails, error) {
		return local.GetDetails(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if d != nil {
		return tagDetails(d, local.Name()), nil
	}

	for _, p := range a.healthyProviders(ctx, source.OpDetails) {
		d, err := call(ctx, a, p, source.OpDetails, func(ctx context.Context) (*model.ExperienceDetails, error) {
			return p.GetDetails(ctx, id)
		})
		if err != nil {
			a.reportFailure(ctx, p.Name(), source.OpDetails, err)
			continue
		}
		if d != nil {
			return tagDetails(d, p.Name()), nil
		}
	}
	return nil, nil
}

// RecordView counts a detail view of a local experience. It does nothing
// when the local adapter does not track views.
func (a *Aggregator) RecordView(ctx context.Context, id string) {
	if vr, ok := a.registry.Local().(viewRecorder); ok {
		vr.RecordView(ctx, id)
	}
}

// Related returns up to RelatedLimit local experiences other than id. It is
// empty when the local adapter does not suggest any.
func (a *Aggregator) Related(ctx context.Context, id string) ([]model.Experience, error) {
	rl, ok := a.registry.Local().(relatedLister)
	if !ok {
		return []model.Experience{}, nil
	}
	items, err := rl.Related(ctx, strings.TrimSpace(id), RelatedLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Experience{}
	}
	return items, nil
}

func tagDetails(d *model.ExperienceDetails, name string) *model.ExperienceDetails {
	if d.Source == "" {
		d.Source = name
	}
	return d
}

// ─── GetAvailability ──────────────────────────────────────────────────────────

// GetAvailability is answered by the local catalog when it recognizes id.
// Otherwise the first healthy provider with prices answers, and an id no
// source prices is unavailable.
func (a *Aggregator) GetAvailability(ctx context.Context, id string, date model.Date) (model.Availability, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Unavailable(), ErrMissingID
	}
	if date.IsZero() {
		return model.Unavailable(), ErrInvalidDate
	}

	local := a.registry.Local()
	known, err := call(ctx, a, local, source.OpAvailability, func(ctx context.Context) (bool, error) {
		return local.Recognizes(ctx, id)
	})
	if err != nil {
		return model.Unavailable(), err
	}
	if known {
		av, err := call(ctx, a, local, source.OpAvailability, func(ctx context.Context) (model.Availability, error) {
			return local.GetAvailability(ctx, id, date)
		})
		if err != nil {
			return model.Unavailable(), err
		}
		return av.Normalize(), nil
	}

	for _, p := range a.healthyProviders(ctx, source.OpAvailability) {
		av, err := call(ctx, a, p, source.OpAvailability, func(ctx context.Context) (model.Availability, error) {
			return p.GetAvailability(ctx, id, date)
		})
		if err != nil {
			a.reportFailure(ctx, p.Name(), source.OpAvailability, err)
			continue
		}
		if av = av.Normalize(); av.HasPrices() {
			return av, nil
		}
	}
	return model.Unavailable(), nil
}

// ─── Providers / Exists ───────────────────────────────────────────────────────

// ListProviderNames returns "local" followed by the healthy providers.
func (a *Aggregator) ListProviderNames(ctx context.Context) []string {
	healthy := a.healthyProviders(ctx, source.OpHealth)
	names := make([]string, 0, len(healthy)+1)
	names = append(names, model.SourceLocal)
	for _, p := range healthy {
		names = append(names, p.Name())
	}
	return names
}

// Exists reports whether any source knows id. The local catalog is asked
// first and the search stops at the first hit.
func (a *Aggregator) Exists(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrMissingID
	}
	local := a.registry.Local()
	known, err := call(ctx, a, local, source.OpDetails, func(ctx context.Context) (bool, error) {
		return local.Recognizes(ctx, id)
	})
	if err != nil {
		return false, err
	}
	if known {
		return true, nil
	}

	for _, p := range a.healthyProviders(ctx, source.OpDetails) {
		d, err := call(ctx, a, p, source.OpDetails, func(ctx context.Context) (*model.ExperienceDetails, error) {
			return p.GetDetails(ctx, id)
		})
		if err != nil {
			a.reportFailure(ctx, p.Name(), source.OpDetails, err)
			continue
		}
		if d != nil {
			return true, nil
		}
	}
	return false, nil
}

func validateRange(r model.DateRange) error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidRange)
	}
	return r.Validate()
}
