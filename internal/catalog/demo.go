package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// demoSlots are the daily slots of every demo experience:
// start hour, end hour, sell price, buy price.
var demoSlots = []struct {
	start, end int
	sell, buy  string
}{
	{9, 12, "99.99", "79.99"},
	{14, 17, "89.99", "69.99"},
	{18, 21, "109.99", "89.99"},
}

// SeedDemo fills st with three demo experiences (ids 501-503) bookable
// for days days starting at from. It backs offline runs of the service.
func SeedDemo(st *MemoryStore, from model.Date, days int) {
	f := func(v float64) *float64 { return &v }
	s := func(v string) *string { return &v }
	catID := func(v int64) *int64 { return &v }

	recs := []Record{
		{
			ID:               501,
			Slug:             "new-york-city-tour",
			Title:            "New York City Walking Tour",
			ShortDescription: "Explore the Big Apple on foot with our expert guides",
			Description:      "Discover the hidden gems of New York City with our comprehensive walking tour.",
			Thumbnail:        "https://picsum.photos/300/200?random=1",
			City:             "New York",
			CountryCode:      s("US"),
			Language:         "en",
			Latitude:         f(40.7580),
			Longitude:        f(-73.9855),
			Rating:           f(4.8),
			Views:            1250,
			Active:           true,
			Categories:       []model.Category{{ID: catID(4), Name: "City Tours", Slug: "city-tours"}},
		},
		{
			ID:               502,
			Slug:             "paris-food-tour",
			Title:            "Paris Food & Wine Tour",
			ShortDescription: "Taste the best of French cuisine in the City of Light",
			Description:      "Embark on a culinary journey through Paris, sampling authentic French cuisine and fine wines.",
			Thumbnail:        "https://picsum.photos/300/200?random=2",
			City:             "Paris",
			CountryCode:      s("FR"),
			Language:         "en",
			Latitude:         f(48.8566),
			Longitude:        f(2.3522),
			Rating:           f(4.9),
			Views:            890,
			Active:           true,
			Categories:       []model.Category{{ID: catID(3), Name: "Food Tours", Slug: "food-tours"}},
		},
		{
			ID:               503,
			Slug:             "tokyo-culture-tour",
			Title:            "Tokyo Cultural Experience",
			ShortDescription: "Immerse yourself in Japanese culture and traditions",
			Description:      "Experience the blend of ancient traditions and modern innovation in Tokyo.",
			Thumbnail:        "https://picsum.photos/300/200?random=3",
			City:             "Tokyo",
			CountryCode:      s("JP"),
			Language:         "en",
			Latitude:         f(35.6762),
			Longitude:        f(139.6503),
			Rating:           f(4.7),
			Views:            650,
			Active:           true,
			Categories:       []model.Category{{ID: catID(2), Name: "Cultural Tours", Slug: "cultural-tours"}},
		},
	}

	for _, rec := range recs {
		var slots []Slot
		for d := 0; d < days; d++ {
			day := from.AddDays(d).Time()
			for _, ds := range demoSlots {
				slots = append(slots, Slot{
					Start:     day.Add(time.Duration(ds.start) * time.Hour),
					End:       day.Add(time.Duration(ds.end) * time.Hour),
					SellPrice: decimal.RequireFromString(ds.sell),
					BuyPrice:  decimal.RequireFromString(ds.buy),
				})
			}
		}
		st.Put(rec, slots...)
	}
}
