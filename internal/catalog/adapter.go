package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// Adapter exposes the local catalog through the source adapter contract.
// Its ids are the catalog primary keys; anything that is not a positive
// integer is not a local id.
type Adapter struct {
	store    Store
	logger   *zap.Logger
	currency string
}

// NewAdapter builds the local adapter. currency is the ISO code of catalog
// prices.
func NewAdapter(store Store, logger *zap.Logger, currency string) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return &Adapter{store: store, logger: logger, currency: currency}
}

// Name is always model.SourceLocal.
func (a *Adapter) Name() string { return model.SourceLocal }

// IsHealthy is always true: the local catalog is never skipped.
func (a *Adapter) IsHealthy(context.Context) bool { return true }

// Ping checks the backing store.
func (a *Adapter) Ping(ctx context.Context) error { return a.store.Ping(ctx) }

// ListExperiences returns active experiences bookable in r. Filters are not
// applied; callers paginate the merged result.
func (a *Adapter) ListExperiences(ctx context.Context, r model.DateRange, _ model.Filters) ([]model.Experience, error) {
	recs, err := a.store.ListByDateRange(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("local catalog list: %w", err)
	}
	out := make([]model.Experience, 0, len(recs))
	for _, rec := range recs {
		out = append(out, a.toExperience(rec))
	}
	return out, nil
}

// Recognizes reports whether id is an experience in the catalog.
func (a *Adapter) Recognizes(ctx context.Context, id string) (bool, error) {
	rec, err := a.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// GetDetails returns the detail view, or nil when id is not local.
func (a *Adapter) GetDetails(ctx context.Context, id string) (*model.ExperienceDetails, error) {
	rec, err := a.lookup(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}

	urls := rec.Images
	if len(urls) == 0 && rec.Thumbnail != "" {
		urls = []string{rec.Thumbnail}
	}
	categories := rec.Categories
	if categories == nil {
		categories = []model.Category{}
	}
	return &model.ExperienceDetails{
		Experience:  a.toExperience(*rec),
		Description: rec.Description,
		Images:      model.ImagesFromURLs(urls),
		Categories:  categories,
	}, nil
}

// GetAvailability lists the slots of id on date. An id that is not local
// is unavailable.
func (a *Adapter) GetAvailability(ctx context.Context, id string, date model.Date) (model.Availability, error) {
	n, ok := parseID(id)
	if !ok {
		return model.Unavailable(), nil
	}
	slots, err := a.store.Slots(ctx, n, date)
	if err != nil {
		return model.Unavailable(), fmt.Errorf("local catalog slots: %w", err)
	}
	if len(slots) == 0 {
		return model.Unavailable(), nil
	}

	prices := make([]model.PriceSlot, 0, len(slots))
	for _, sl := range slots {
		prices = append(prices, model.PriceSlot{
			StartTime: sl.Start.UTC().Format(model.SlotTimeLayout),
			EndTime:   sl.End.UTC().Format(model.SlotTimeLayout),
			SellPrice: sl.SellPrice,
			Currency:  a.currency,
		})
	}
	return model.Availability{Available: true, Prices: prices}, nil
}

// Related lists up to limit other active local experiences. id need not be
// local; a foreign id excludes nothing.
func (a *Adapter) Related(ctx context.Context, id string, limit int) ([]model.Experience, error) {
	exclude, _ := parseID(id)
	recs, err := a.store.Related(ctx, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("local catalog related: %w", err)
	}
	out := make([]model.Experience, 0, len(recs))
	for _, rec := range recs {
		out = append(out, a.toExperience(rec))
	}
	return out, nil
}

// RecordView increments the view counter of a local experience. Failures
// are logged and not returned.
func (a *Adapter) RecordView(ctx context.Context, id string) {
	n, ok := parseID(id)
	if !ok {
		return
	}
	if err := a.store.IncrementViews(ctx, n); err != nil {
		a.logger.Warn("catalog.views.increment_failed",
			zap.Int64("id", n),
			zap.Error(err))
	}
}

func (a *Adapter) lookup(ctx context.Context, id string) (*Record, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	rec, err := a.store.Get(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("local catalog get: %w", err)
	}
	return rec, nil
}

func (a *Adapter) toExperience(rec Record) model.Experience {
	language := rec.Language
	if language == "" {
		language = "en"
	}
	return model.Experience{
		ID:               rec.ID,
		Source:           model.SourceLocal,
		Slug:             rec.Slug,
		Title:            rec.Title,
		ShortDescription: rec.ShortDescription,
		Thumbnail:        rec.Thumbnail,
		SellPrice:        model.Money{Amount: rec.FromSellPrice, Currency: a.currency},
		BuyPrice:         model.Money{Amount: rec.FromBuyPrice, Currency: a.currency},
		City:             rec.City,
		CountryCode:      rec.CountryCode,
		Language:         language,
		Latitude:         rec.Latitude,
		Longitude:        rec.Longitude,
		Rating:           rec.Rating,
	}
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
