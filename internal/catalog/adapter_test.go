package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/pkg/model"
)

func ptr[T any](v T) *T { return &v }

func slotAt(day time.Time, startHour, endHour int, sell, buy string) Slot {
	return Slot{
		Start:     day.Add(time.Duration(startHour) * time.Hour),
		End:       day.Add(time.Duration(endHour) * time.Hour),
		SellPrice: decimal.RequireFromString(sell),
		BuyPrice:  decimal.RequireFromString(buy),
	}
}

var march3 = time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)

func newSeededAdapter(t *testing.T) (*Adapter, *MemoryStore) {
	t.Helper()
	st := NewMemoryStore()
	st.Put(Record{
		ID:               501,
		Slug:             "new-york-city-tour",
		Title:            "New York City Walking Tour",
		ShortDescription: "Explore the Big Apple on foot",
		Description:      "Discover the hidden gems of New York City.",
		Thumbnail:        "https://picsum.photos/300/200?random=1",
		City:             "New York",
		CountryCode:      ptr("US"),
		Latitude:         ptr(40.7580),
		Longitude:        ptr(-73.9855),
		Rating:           ptr(4.8),
		Views:            1250,
		Active:           true,
		Images:           []string{"https://img/ny-1.jpg", "https://img/ny-2.jpg"},
		Categories:       []model.Category{{ID: ptr(int64(4)), Name: "City Tours", Slug: "city-tours"}},
	},
		slotAt(march3, 18, 21, "109.99", "89.99"),
		slotAt(march3, 9, 12, "99.99", "79.99"),
		slotAt(march3.AddDate(0, 0, 1), 14, 17, "89.99", "69.99"),
	)
	st.Put(Record{ID: 502, Slug: "inactive", Title: "Inactive", Active: false},
		slotAt(march3, 9, 12, "10", "5"))
	st.Put(Record{ID: 503, Slug: "no-slots", Title: "No Slots", Active: true})
	return NewAdapter(st, zap.NewNop(), "usd"), st
}

func marchRange(startDay, endDay int) model.DateRange {
	return model.DateRange{
		Start: model.Date{Year: 2026, Month: time.March, Day: startDay},
		End:   model.Date{Year: 2026, Month: time.March, Day: endDay},
	}
}

// ─── ListExperiences ──────────────────────────────────────────────────────────

func TestAdapter_ListExperiences(t *testing.T) {
	a, _ := newSeededAdapter(t)

	items, err := a.ListExperiences(context.Background(), marchRange(1, 15), model.Filters{})
	require.NoError(t, err)
	require.Len(t, items, 1, "inactive and slot-less experiences are not listed")

	e := items[0]
	assert.Equal(t, int64(501), e.ID)
	assert.Equal(t, model.SourceLocal, e.Source)
	assert.Nil(t, e.ProviderID)
	assert.Equal(t, "new-york-city-tour", e.Slug)
	assert.Equal(t, "89.99 USD", e.SellPrice.String(), "lowest slot price in range")
	assert.Equal(t, "69.99 USD", e.BuyPrice.String())
	assert.Equal(t, "en", e.Language)
	assert.NoError(t, e.Validate())
}

func TestAdapter_ListExperiencesRangeBounds(t *testing.T) {
	a, _ := newSeededAdapter(t)
	ctx := context.Background()

	items, err := a.ListExperiences(ctx, marchRange(3, 3), model.Filters{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "99.99 USD", items[0].SellPrice.String(), "only slots of March 3")

	items, err = a.ListExperiences(ctx, marchRange(5, 10), model.Filters{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAdapter_ListExperiencesStoreError(t *testing.T) {
	a, st := newSeededAdapter(t)
	st.FailWith(errors.New("connection reset"))

	_, err := a.ListExperiences(context.Background(), marchRange(1, 15), model.Filters{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

// ─── GetDetails / Recognizes ──────────────────────────────────────────────────

func TestAdapter_GetDetails(t *testing.T) {
	a, _ := newSeededAdapter(t)

	d, err := a.GetDetails(context.Background(), "501")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Discover the hidden gems of New York City.", d.Description)
	require.Len(t, d.Images, 2)
	assert.Equal(t, model.ImageThumbnail, d.Images[0].Role)
	require.Len(t, d.Categories, 1)
	assert.Equal(t, "city-tours", d.Categories[0].Slug)
}

func TestAdapter_GetDetailsPriceMatchesListing(t *testing.T) {
	a, st := newSeededAdapter(t)
	ctx := context.Background()
	st.now = func() time.Time { return march3 }

	items, err := a.ListExperiences(ctx, marchRange(1, 15), model.Filters{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	d, err := a.GetDetails(ctx, "501")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, items[0].SellPrice, d.SellPrice)
	assert.Equal(t, items[0].BuyPrice, d.BuyPrice)
	assert.Equal(t, "89.99 USD", d.SellPrice.String())
}

func TestAdapter_GetDetailsPriceFromUpcomingSlots(t *testing.T) {
	a, st := newSeededAdapter(t)
	ctx := context.Background()

	// after the 09:00 slot of March 3 only the later ones count
	st.now = func() time.Time { return march3.Add(13 * time.Hour) }
	st.Put(Record{ID: 600, Title: "Harbour", Active: true},
		slotAt(march3, 9, 12, "10", "5"),
		slotAt(march3, 18, 21, "50", "40"))
	d, err := a.GetDetails(ctx, "600")
	require.NoError(t, err)
	assert.Equal(t, "50.00 USD", d.SellPrice.String())
	assert.Equal(t, "40.00 USD", d.BuyPrice.String())

	// nothing upcoming: every slot counts
	st.now = func() time.Time { return march3.AddDate(0, 1, 0) }
	d, err = a.GetDetails(ctx, "600")
	require.NoError(t, err)
	assert.Equal(t, "10.00 USD", d.SellPrice.String())

	d, err = a.GetDetails(ctx, "503")
	require.NoError(t, err)
	assert.True(t, d.SellPrice.Amount.IsZero(), "no slots, no price")
}

func TestAdapter_Related(t *testing.T) {
	a, st := newSeededAdapter(t)
	ctx := context.Background()
	for id := int64(510); id < 516; id++ {
		st.Put(Record{ID: id, Title: "Extra", Active: true}, slotAt(march3, 9, 12, "20", "15"))
	}

	items, err := a.Related(ctx, "501", 4)
	require.NoError(t, err)
	require.Len(t, items, 4)
	ids := []int64{items[0].ID, items[1].ID, items[2].ID, items[3].ID}
	assert.Equal(t, []int64{503, 510, 511, 512}, ids, "inactive and requested ids excluded")
	assert.Equal(t, "20.00 USD", items[1].SellPrice.String())
	assert.Equal(t, model.SourceLocal, items[1].Source)

	items, err = a.Related(ctx, "mock-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(501), items[0].ID)

	st.FailWith(errors.New("down"))
	_, err = a.Related(ctx, "501", 4)
	assert.ErrorContains(t, err, "down")
}

func TestAdapter_GetDetailsFallsBackToThumbnailImage(t *testing.T) {
	st := NewMemoryStore()
	st.Put(Record{ID: 9, Title: "Solo", Thumbnail: "https://img/solo.jpg", Active: true})
	a := NewAdapter(st, nil, "")

	d, err := a.GetDetails(context.Background(), "9")
	require.NoError(t, err)
	require.Len(t, d.Images, 1)
	assert.Equal(t, "https://img/solo.jpg", d.Images[0].URL)
	assert.NotNil(t, d.Categories)
	assert.Equal(t, "USD", d.SellPrice.Currency)
}

func TestAdapter_UnknownAndForeignIDs(t *testing.T) {
	a, st := newSeededAdapter(t)
	ctx := context.Background()
	st.FailWith(errors.New("must not be called"))

	for _, id := range []string{"mock-1", "", "-4", "0", "12abc", "t-100"} {
		d, err := a.GetDetails(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, d, id)

		ok, err := a.Recognizes(ctx, id)
		require.NoError(t, err, id)
		assert.False(t, ok, id)
	}
}

func TestAdapter_Recognizes(t *testing.T) {
	a, _ := newSeededAdapter(t)
	ctx := context.Background()

	ok, err := a.Recognizes(ctx, "501")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Recognizes(ctx, "999")
	require.NoError(t, err)
	assert.False(t, ok)
}

// ─── GetAvailability ──────────────────────────────────────────────────────────

func TestAdapter_GetAvailability(t *testing.T) {
	a, _ := newSeededAdapter(t)
	ctx := context.Background()

	av, err := a.GetAvailability(ctx, "501", model.Date{Year: 2026, Month: time.March, Day: 3})
	require.NoError(t, err)
	assert.True(t, av.Available)
	require.Len(t, av.Prices, 2)
	assert.Equal(t, "2026-03-03 09:00:00", av.Prices[0].StartTime)
	assert.Equal(t, "2026-03-03 12:00:00", av.Prices[0].EndTime)
	assert.Equal(t, "USD", av.Prices[0].Currency)
	assert.True(t, av.Prices[0].SellPrice.Equal(decimal.RequireFromString("99.99")))

	av, err = a.GetAvailability(ctx, "501", model.Date{Year: 2026, Month: time.March, Day: 20})
	require.NoError(t, err)
	assert.Equal(t, model.Unavailable(), av)

	av, err = a.GetAvailability(ctx, "mock-1", model.Date{Year: 2026, Month: time.March, Day: 3})
	require.NoError(t, err)
	assert.False(t, av.Available)
}

// ─── Views ────────────────────────────────────────────────────────────────────

func TestAdapter_RecordView(t *testing.T) {
	a, st := newSeededAdapter(t)
	ctx := context.Background()

	a.RecordView(ctx, "501")
	a.RecordView(ctx, "not-local")

	rec, err := st.Get(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, int64(1251), rec.Views)

	st.FailWith(errors.New("read only"))
	assert.NotPanics(t, func() { a.RecordView(ctx, "501") })
}

func TestAdapter_Basics(t *testing.T) {
	a, st := newSeededAdapter(t)
	assert.Equal(t, "local", a.Name())
	assert.True(t, a.IsHealthy(context.Background()))
	assert.NoError(t, a.Ping(context.Background()))

	st.FailWith(errors.New("down"))
	assert.Error(t, a.Ping(context.Background()))
	assert.True(t, a.IsHealthy(context.Background()), "local is never skipped")
}
