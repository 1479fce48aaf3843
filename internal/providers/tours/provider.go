package tours

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Checker-Finance/experiences/internal/cache"
	"github.com/Checker-Finance/experiences/internal/httpclient"
	"github.com/Checker-Finance/experiences/internal/rate"
	"github.com/Checker-Finance/experiences/internal/source"
	"github.com/Checker-Finance/experiences/pkg/model"
)

// Caches are the private caches of one provider.
type Caches struct {
	Listings     cache.Cache[[]model.Experience]
	Details      cache.Cache[model.ExperienceDetails]
	Availability cache.Cache[model.Availability]
	NativeIDs    cache.Cache[string]
}

// NewMemoryCaches builds in-process caches labelled with the provider name.
func NewMemoryCaches(name string) Caches {
	return Caches{
		Listings:     cache.NewMemory[[]model.Experience](name + ".listings"),
		Details:      cache.NewMemory[model.ExperienceDetails](name + ".details"),
		Availability: cache.NewMemory[model.Availability](name + ".availability"),
		NativeIDs:    cache.NewMemory[string](name + ".native_ids"),
	}
}

// Provider adapts one tours API to the source adapter contract.
type Provider struct {
	cfg    Config
	logger *zap.Logger
	client *Client
	mapper *Mapper
	caches Caches

	healthMu  sync.Mutex
	healthy   bool
	checkedAt time.Time
	now       func() time.Time
}

// New constructs a Provider. rateMgr may be nil.
func New(cfg Config, logger *zap.Logger, rateMgr *rate.Manager, caches Caches) (*Provider, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if caches.Listings == nil || caches.Details == nil || caches.Availability == nil || caches.NativeIDs == nil {
		caches = NewMemoryCaches(cfg.Name)
	}
	logger = logger.With(zap.String("provider", cfg.Name))
	return &Provider{
		cfg:    cfg,
		logger: logger,
		client: NewClient(logger, rateMgr, cfg),
		mapper: NewMapper(cfg.Name, cfg.Placeholder),
		caches: caches,
		now:    time.Now,
	}, nil
}

// Name returns the source tag.
func (p *Provider) Name() string { return p.cfg.Name }

// DisplayName returns the human readable provider name.
func (p *Provider) DisplayName() string { return p.cfg.DisplayName }

// Timeout is the per-call deadline the aggregator applies to this provider.
func (p *Provider) Timeout() time.Duration { return p.cfg.Timeout }

// ListExperiences returns the provider's tours for r. Upstream failures are
// logged and answered with the fallback listing and a source.ErrDegraded
// error; the fallback is never cached.
func (p *Provider) ListExperiences(ctx context.Context, r model.DateRange, f model.Filters) ([]model.Experience, error) {
	key := cache.ListKey(p.cfg.Name, cache.OpList, r)
	if items, ok := p.caches.Listings.Get(ctx, key); ok {
		// the listing cache may be shared while the id index is not
		for _, e := range items {
			p.rememberNativeID(ctx, e)
		}
		return items, nil
	}

	raw, err := p.client.ListTours(ctx, r, f)
	if err != nil {
		p.logger.Error("tours.list.upstream_error",
			zap.String("start", r.Start.String()),
			zap.String("end", r.End.String()),
			zap.Bool("fallback", p.cfg.MockFallback),
			zap.Error(err))
		return p.fallback(), fmt.Errorf("%w: %w", source.ErrDegraded, err)
	}

	items := make([]model.Experience, 0, len(raw))
	for i, rec := range raw {
		var t TourRecord
		if err := json.Unmarshal(rec, &t); err != nil {
			p.logger.Warn("tours.list.record_skipped",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		exp, err := p.mapper.ToExperience(t)
		if err != nil {
			p.logger.Warn("tours.list.record_skipped",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		p.rememberNativeID(ctx, exp)
		items = append(items, exp)
	}

	p.caches.Listings.Put(ctx, key, items, p.cfg.CacheTTL)
	p.logger.Debug("tours.list.fetched",
		zap.Int("received", len(raw)),
		zap.Int("kept", len(items)))
	return items, nil
}

// GetDetails returns the detail view of id, or nil when the provider does
// not know it. id may be a canonical id from a listing or a native id.
func (p *Provider) GetDetails(ctx context.Context, id string) (*model.ExperienceDetails, error) {
	native, ok := p.resolveNativeID(ctx, id)
	if !ok {
		return nil, nil
	}

	key := cache.IDKey(p.cfg.Name, cache.OpDetails, native)
	if d, ok := p.caches.Details.Get(ctx, key); ok {
		return &d, nil
	}

	t, err := p.client.GetTour(ctx, native)
	if err != nil {
		if errors.Is(err, httpclient.ErrNotFound) {
			p.logger.Debug("tours.details.not_found", zap.String("native_id", native))
		} else {
			p.logger.Error("tours.details.upstream_error",
				zap.String("native_id", native),
				zap.Error(err))
		}
		return nil, nil
	}

	d, err := p.mapper.ToDetails(*t)
	if err != nil {
		p.logger.Warn("tours.details.malformed",
			zap.String("native_id", native),
			zap.Error(err))
		return nil, nil
	}

	p.rememberNativeID(ctx, d.Experience)
	p.caches.Details.Put(ctx, key, *d, p.cfg.CacheTTL)
	return d, nil
}

// GetAvailability combines the price list and the availability record for
// date. Both upstream calls run concurrently; if either fails the answer is
// Unavailable() and nothing is cached.
func (p *Provider) GetAvailability(ctx context.Context, id string, date model.Date) (model.Availability, error) {
	native, ok := p.resolveNativeID(ctx, id)
	if !ok {
		return model.Unavailable(), nil
	}

	key := cache.IDDateKey(p.cfg.Name, cache.OpAvailability, native, date)
	if a, ok := p.caches.Availability.Get(ctx, key); ok {
		return a, nil
	}

	var (
		rawPrices []json.RawMessage
		avail     *TourAvailability
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rawPrices, err = p.client.TourPrices(gctx, native)
		return err
	})
	g.Go(func() error {
		var err error
		avail, err = p.client.Availability(gctx, native, date)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, httpclient.ErrNotFound) {
			p.logger.Debug("tours.availability.not_found", zap.String("native_id", native))
		} else {
			p.logger.Error("tours.availability.upstream_error",
				zap.String("native_id", native),
				zap.String("date", date.String()),
				zap.Error(err))
		}
		return model.Unavailable(), nil
	}

	prices := make([]TourPrice, 0, len(rawPrices))
	for i, rec := range rawPrices {
		var tp TourPrice
		if err := json.Unmarshal(rec, &tp); err != nil {
			p.logger.Warn("tours.availability.price_skipped",
				zap.String("native_id", native),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		prices = append(prices, tp)
	}

	result, skipped := p.mapper.ToAvailability(prices, *avail, native, date)
	if skipped > 0 {
		p.logger.Warn("tours.availability.unparsable_prices",
			zap.String("native_id", native),
			zap.Int("skipped", skipped))
	}

	p.caches.Availability.Put(ctx, key, result, p.cfg.CacheTTL)
	return result, nil
}

func (p *Provider) fallback() []model.Experience {
	if !p.cfg.MockFallback {
		return []model.Experience{}
	}
	return p.mapper.Fallback()
}

// rememberNativeID records canonical id → native id so listing ids can be
// used for details and availability lookups.
func (p *Provider) rememberNativeID(ctx context.Context, e model.Experience) {
	if e.ProviderID == nil {
		return
	}
	key := cache.IDKey(p.cfg.Name, cache.OpNativeID, strconv.FormatInt(e.ID, 10))
	p.caches.NativeIDs.Put(ctx, key, *e.ProviderID, nativeIDTTL)
}

// resolveNativeID maps a canonical id from a listing to the upstream id.
// Any id missing from the index, numeric ones included, is taken as a
// native id; the upstream answers 404 for ids it never issued.
func (p *Provider) resolveNativeID(ctx context.Context, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	if native, ok := p.caches.NativeIDs.Get(ctx, cache.IDKey(p.cfg.Name, cache.OpNativeID, id)); ok {
		return native, true
	}
	return id, true
}
