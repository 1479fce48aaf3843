package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Mock Experience 1":          "mock-experience-1",
		"New York City Walking Tour": "new-york-city-walking-tour",
		"Paris -- Food & Wine!":      "paris-food-wine",
		"  Tokyo   Cultural  ":       "tokyo-cultural",
		"Café au lait":               "caf-au-lait",
		"already-slugged":            "already-slugged",
		"":                           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestCanonicalID_Deterministic(t *testing.T) {
	a := CanonicalID("tour-abc-123")
	b := CanonicalID("tour-abc-123")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, CanonicalID("tour-abc-124"))
	assert.Positive(t, a)
	assert.LessOrEqual(t, CanonicalID("mock-1"), int64(^uint32(0)))
}

func TestExperience_Validate(t *testing.T) {
	ok := Experience{
		ID:        1,
		Source:    SourceLocal,
		Title:     "City Tour",
		SellPrice: NewMoney("10.00", "usd"),
	}
	require.NoError(t, ok.Validate())
	assert.Equal(t, "USD", ok.SellPrice.Currency)

	bad := Experience{SellPrice: Money{Amount: decimal.NewFromInt(-1)}}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source is required")
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "sell_price must not be negative")
	assert.Contains(t, err.Error(), "sell_price is missing a currency")

	native := "x"
	localWithProvider := Experience{Source: SourceLocal, Title: "t", ProviderID: &native}
	assert.Error(t, localWithProvider.Validate())
}

func TestAvailability_Normalize(t *testing.T) {
	a := Availability{Available: false, Prices: []PriceSlot{{Currency: "USD"}}}.Normalize()
	assert.False(t, a.Available)
	assert.NotNil(t, a.Prices)
	assert.Empty(t, a.Prices)

	b := Availability{Available: true}.Normalize()
	assert.True(t, b.Available)
	assert.NotNil(t, b.Prices)

	raw, err := json.Marshal(Unavailable())
	require.NoError(t, err)
	assert.JSONEq(t, `{"available":false,"prices":[]}`, string(raw))
}

func TestImagesFromURLs(t *testing.T) {
	images := ImagesFromURLs([]string{"a.jpg", "b.jpg", "c.jpg"})
	require.Len(t, images, 3)
	assert.Equal(t, ImageThumbnail, images[0].Role)
	assert.Equal(t, ImageGallery, images[1].Role)
	assert.Equal(t, ImageGallery, images[2].Role)
	assert.Empty(t, ImagesFromURLs(nil))
}

func TestCategory_UnmarshalJSON(t *testing.T) {
	var cats []Category
	require.NoError(t, json.Unmarshal([]byte(`["City Tours", {"id": 4, "name": "Food Tours"}]`), &cats))
	require.Len(t, cats, 2)
	assert.Equal(t, "City Tours", cats[0].Name)
	assert.Equal(t, "city-tours", cats[0].Slug)
	assert.Nil(t, cats[0].ID)
	require.NotNil(t, cats[1].ID)
	assert.Equal(t, int64(4), *cats[1].ID)
	assert.Equal(t, "food-tours", cats[1].Slug)

	var c Category
	assert.Error(t, json.Unmarshal([]byte(`42`), &c))
}

func TestDateRange(t *testing.T) {
	start := DateOf(time.Date(2025, 12, 30, 23, 0, 0, 0, time.UTC))
	r := Window(start, 14)
	assert.Equal(t, Date{Year: 2026, Month: time.January, Day: 13}, r.End)
	require.NoError(t, r.Validate())
	assert.True(t, r.Contains(start))
	assert.True(t, r.Contains(r.End))
	assert.False(t, r.Contains(start.AddDays(-1)))

	inverted := DateRange{Start: r.End, End: r.Start}
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidRange)

	same := DateRange{Start: start, End: start}
	assert.NoError(t, same.Validate())
}

func TestDate_ParseAndText(t *testing.T) {
	d, err := ParseDate("2026-03-07")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-07", d.String())

	_, err = ParseDate("07/03/2026")
	assert.Error(t, err)

	raw, err := json.Marshal(struct {
		D Date `json:"d"`
	}{D: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2026-03-07"}`, string(raw))

	var back struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back.D)
}

func TestFilters_WithDefaults(t *testing.T) {
	f := Filters{}.WithDefaults()
	assert.Equal(t, DefaultUpstreamLimit, f.Limit)
	assert.Equal(t, DefaultPage, f.Page)

	g := Filters{Limit: 5, Page: 3, Hints: map[string]string{"city": "Paris"}}.WithDefaults()
	assert.Equal(t, 5, g.Limit)
	assert.Equal(t, 3, g.Page)
	v, ok := g.Hint("city")
	assert.True(t, ok)
	assert.Equal(t, "Paris", v)
}
