package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// Record is one row of the local catalog, with the data needed for both the
// list and the detail views.
type Record struct {
	ID               int64
	Slug             string
	Title            string
	ShortDescription string
	Description      string
	Thumbnail        string
	City             string
	CountryCode      *string
	Language         string
	Latitude         *float64
	Longitude        *float64
	Rating           *float64
	Views            int64
	Active           bool

	// FromSellPrice and FromBuyPrice are the lowest slot prices. Listings use
	// the slots in the queried range; Get and Related use the upcoming slots,
	// or every slot when none is upcoming. Zero when there are no slots.
	FromSellPrice decimal.Decimal
	FromBuyPrice  decimal.Decimal

	Images     []string
	Categories []model.Category
}

// Slot is one bookable availability row.
type Slot struct {
	Start     time.Time
	End       time.Time
	SellPrice decimal.Decimal
	BuyPrice  decimal.Decimal
}

// Store is the system of record for local experiences.
type Store interface {
	// ListByDateRange returns active experiences with at least one slot
	// starting within r (both ends inclusive), ordered by id.
	ListByDateRange(ctx context.Context, r model.DateRange) ([]Record, error)
	// Get returns the experience with id, or nil, nil when it does not exist.
	Get(ctx context.Context, id int64) (*Record, error)
	// Related returns up to limit active experiences other than excludeID,
	// ordered by id, without images or categories.
	Related(ctx context.Context, excludeID int64, limit int) ([]Record, error)
	// Slots returns the slots of id starting on date, ordered by start time.
	Slots(ctx context.Context, id int64, date model.Date) ([]Slot, error)
	IncrementViews(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// lowestPrices returns the lowest sell and buy prices of the slots starting
// at or after now, or of all slots when none does.
func lowestPrices(slots []Slot, now time.Time) (sell, buy decimal.Decimal) {
	pick := slots[:0:0]
	for _, sl := range slots {
		if !sl.Start.Before(now) {
			pick = append(pick, sl)
		}
	}
	if len(pick) == 0 {
		pick = slots
	}
	for i, sl := range pick {
		if i == 0 || sl.SellPrice.LessThan(sell) {
			sell = sl.SellPrice
		}
		if i == 0 || sl.BuyPrice.LessThan(buy) {
			buy = sl.BuyPrice
		}
	}
	return sell, buy
}
