package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

//
// ────────────────────────────────────────────────
//   Canonical Experience model
// ────────────────────────────────────────────────
//

// SourceLocal tags items produced by the local catalog.
const SourceLocal = "local"

// Money is an amount with its ISO-4217 currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney builds Money from a decimal string such as "99.99".
// It panics on malformed input and is intended for constants.
func NewMoney(amount, currency string) Money {
	return Money{Amount: decimal.RequireFromString(amount), Currency: strings.ToUpper(currency)}
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

// Experience is a normalized listing, regardless of which source produced it.
type Experience struct {
	ID               int64    `json:"id"`
	Source           string   `json:"source"`
	ProviderID       *string  `json:"provider_id"`
	Slug             string   `json:"slug"`
	Title            string   `json:"title"`
	ShortDescription string   `json:"short_description"`
	Thumbnail        string   `json:"thumbnail"`
	SellPrice        Money    `json:"sell_price"`
	BuyPrice         Money    `json:"buy_price"`
	City             string   `json:"city"`
	CountryCode      *string  `json:"country_code"`
	Language         string   `json:"language"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Rating           *float64 `json:"rating"`
}

// IsLocal reports whether the experience comes from the local catalog.
func (e Experience) IsLocal() bool {
	return e.Source == SourceLocal
}

// Validate checks the invariants every adapter output must hold.
func (e Experience) Validate() error {
	var errs []error
	if e.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if strings.TrimSpace(e.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if e.IsLocal() && e.ProviderID != nil {
		errs = append(errs, errors.New("local experiences carry no provider_id"))
	}
	for name, p := range map[string]Money{"sell_price": e.SellPrice, "buy_price": e.BuyPrice} {
		if p.Amount.IsNegative() {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
		if !p.Amount.IsZero() && p.Currency == "" {
			errs = append(errs, fmt.Errorf("%s is missing a currency", name))
		}
	}
	return errors.Join(errs...)
}

// ImageRole distinguishes the listing thumbnail from gallery images.
type ImageRole string

const (
	ImageThumbnail ImageRole = "thumbnail"
	ImageGallery   ImageRole = "gallery"
)

// Image is one picture of an experience.
type Image struct {
	URL  string    `json:"url"`
	Role ImageRole `json:"type"`
}

// ImagesFromURLs assigns the thumbnail role to the first URL and gallery to the rest.
func ImagesFromURLs(urls []string) []Image {
	images := make([]Image, 0, len(urls))
	for i, u := range urls {
		role := ImageGallery
		if i == 0 {
			role = ImageThumbnail
		}
		images = append(images, Image{URL: u, Role: role})
	}
	return images
}

// Category references a category an experience belongs to.
type Category struct {
	ID   *int64 `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// UnmarshalJSON accepts either a bare category name or an object.
func (c *Category) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*c = Category{Name: name, Slug: Slugify(name)}
		return nil
	}
	type plain Category
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	*c = Category(p)
	return nil
}

// ExperienceDetails is the detail view of an experience.
type ExperienceDetails struct {
	Experience
	Description string     `json:"description"`
	Images      []Image    `json:"images"`
	Categories  []Category `json:"categories"`
}

//
// ────────────────────────────────────────────────
//   Availability
// ────────────────────────────────────────────────
//

// PriceSlot is one bookable time slot with its price.
type PriceSlot struct {
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Currency  string          `json:"currency"`
}

// SlotTimeLayout is the layout used for slot start/end times.
const SlotTimeLayout = "2006-01-02 15:04:05"

// Availability describes one experience on one calendar date.
type Availability struct {
	Available bool        `json:"available"`
	Prices    []PriceSlot `json:"prices"`
}

// Unavailable returns the negative availability record.
func Unavailable() Availability {
	return Availability{Available: false, Prices: []PriceSlot{}}
}

// Normalize enforces that an unavailable record has no prices and that
// Prices is never nil.
func (a Availability) Normalize() Availability {
	if !a.Available {
		return Unavailable()
	}
	if a.Prices == nil {
		a.Prices = []PriceSlot{}
	}
	return a
}

// HasPrices reports whether the record carries at least one price slot.
func (a Availability) HasPrices() bool {
	return len(a.Prices) > 0
}

//
// ────────────────────────────────────────────────
//   Query filters
// ────────────────────────────────────────────────
//

const (
	DefaultUpstreamLimit = 50
	DefaultPage          = 1
)

// Filters are optional listing hints. Adapters may ignore any of them.
type Filters struct {
	Limit int
	Page  int
	Hints map[string]string
}

// WithDefaults fills unset pagination with upstream defaults.
func (f Filters) WithDefaults() Filters {
	if f.Limit <= 0 {
		f.Limit = DefaultUpstreamLimit
	}
	if f.Page <= 0 {
		f.Page = DefaultPage
	}
	return f
}

// Hint returns a free-form hint value.
func (f Filters) Hint(key string) (string, bool) {
	v, ok := f.Hints[key]
	return v, ok
}
