package tours

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/experiences/pkg/model"
)

// DefaultPlaceholder is the thumbnail used when a tour has no photos.
const DefaultPlaceholder = "https://picsum.photos/300/200"

// slotLength is the duration of every priced slot.
const slotLength = 2 * time.Hour

const defaultLanguage = "en"

// The listing payload carries no price, so every tour is listed at this price.
var defaultPrice = model.NewMoney("99.99", "USD")

var (
	errMissingID    = errors.New("tour record has no id")
	errMissingTitle = errors.New("tour record has no title")
	errBadPrice     = errors.New("unparsable price")
)

var countryCodes = map[string]string{
	"united states":  "US",
	"canada":         "CA",
	"united kingdom": "GB",
	"germany":        "DE",
	"france":         "FR",
	"italy":          "IT",
	"spain":          "ES",
	"turkey":         "TR",
}

//
// ────────────────────────────────────────────────
//   Mapper – Converts between tour payloads and Canonical
// ────────────────────────────────────────────────
//

// Mapper translates tour payloads into canonical experiences.
type Mapper struct {
	source      string
	placeholder string
}

// NewMapper constructs a Mapper that tags items with source.
func NewMapper(source, placeholder string) *Mapper {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Mapper{source: source, placeholder: placeholder}
}

// ToExperience normalizes a tour into the list shape.
func (m *Mapper) ToExperience(t TourRecord) (model.Experience, error) {
	native := strings.TrimSpace(string(t.ID))
	if native == "" {
		return model.Experience{}, errMissingID
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return model.Experience{}, fmt.Errorf("%w (id=%s)", errMissingTitle, native)
	}

	return model.Experience{
		ID:               model.CanonicalID(native),
		Source:           m.source,
		ProviderID:       &native,
		Slug:             model.Slugify(title),
		Title:            title,
		ShortDescription: t.Excerpt,
		Thumbnail:        m.firstPhoto(t.Photos),
		SellPrice:        defaultPrice,
		BuyPrice:         defaultPrice,
		City:             t.City,
		CountryCode:      CountryCode(t.Country),
		Language:         defaultLanguage,
	}, nil
}

// ToDetails normalizes a tour into the detail shape.
func (m *Mapper) ToDetails(t TourRecord) (*model.ExperienceDetails, error) {
	exp, err := m.ToExperience(t)
	if err != nil {
		return nil, err
	}
	categories := t.Categories
	if categories == nil {
		categories = []model.Category{}
	}
	return &model.ExperienceDetails{
		Experience:  exp,
		Description: t.Description,
		Images:      model.ImagesFromURLs(t.Photos),
		Categories:  categories,
	}, nil
}

// ToAvailability combines the price list and the availability record for
// one date. Prices belonging to other tours are dropped. It returns the
// number of price records skipped because their price did not parse.
func (m *Mapper) ToAvailability(prices []TourPrice, avail TourAvailability, nativeID string, date model.Date) (model.Availability, int) {
	if !bool(avail.Available) {
		return model.Unavailable(), 0
	}

	tourID := strings.TrimSpace(string(avail.TourID))
	if tourID == "" {
		tourID = nativeID
	}

	start := date.Time()
	end := start.Add(slotLength)
	slots := make([]model.PriceSlot, 0, len(prices))
	skipped := 0
	for _, p := range prices {
		if strings.TrimSpace(string(p.TourID)) != tourID {
			continue
		}
		amount, currency, err := ParsePrice(p.Price)
		if err != nil {
			skipped++
			continue
		}
		slots = append(slots, model.PriceSlot{
			StartTime: start.Format(model.SlotTimeLayout),
			EndTime:   end.Format(model.SlotTimeLayout),
			SellPrice: amount,
			Currency:  currency,
		})
	}

	return model.Availability{Available: true, Prices: slots}.Normalize(), skipped
}

func (m *Mapper) firstPhoto(photos []string) string {
	for _, p := range photos {
		if strings.TrimSpace(p) != "" {
			return p
		}
	}
	return m.placeholder
}

// Fallback returns the fixed placeholder listing served when the upstream
// listing fails and mock fallback is enabled.
func (m *Mapper) Fallback() []model.Experience {
	us := "US"
	out := make([]model.Experience, 0, 2)
	for i, price := range []string{"100.00", "200.00"} {
		native := fmt.Sprintf("mock-%d", i+1)
		title := fmt.Sprintf("Mock Experience %d", i+1)
		amount := model.NewMoney(price, "USD")
		out = append(out, model.Experience{
			ID:               model.CanonicalID(native),
			Source:           m.source,
			ProviderID:       &native,
			Slug:             model.Slugify(title),
			Title:            title,
			ShortDescription: "Short description for " + title,
			Thumbnail:        m.placeholder,
			SellPrice:        amount,
			BuyPrice:         amount,
			City:             "Mock City",
			CountryCode:      &us,
			Language:         defaultLanguage,
		})
	}
	return out
}

//
// ────────────────────────────────────────────────
//   Field helpers
// ────────────────────────────────────────────────
//

// CountryCode maps a country name to its ISO-3166 alpha-2 code. Two-letter
// input is taken as a code already. Unknown names yield nil.
func CountryCode(country string) *string {
	c := strings.TrimSpace(country)
	if c == "" {
		return nil
	}
	if code, ok := countryCodes[strings.ToLower(c)]; ok {
		return &code
	}
	if len(c) == 2 && isASCIILetters(c) {
		code := strings.ToUpper(c)
		return &code
	}
	return nil
}

func isASCIILetters(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i] | 0x20
		if ch < 'a' || ch > 'z' {
			return false
		}
	}
	return true
}

var (
	amountRegex     = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	codeBeforeRegex = regexp.MustCompile(`([A-Za-z]{3})\s*$`)
	codeAfterRegex  = regexp.MustCompile(`^\s*([A-Za-z]{3})\b`)
)

var currencySymbols = map[rune]string{
	'$': "USD",
	'€': "EUR",
	'£': "GBP",
	'₺': "TRY",
	'¥': "JPY",
}

// isoCurrencies are the codes accepted next to an amount.
var isoCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "TRY": true, "JPY": true,
	"CHF": true, "CAD": true, "AUD": true, "NZD": true, "AED": true,
	"SAR": true, "INR": true, "CNY": true, "HKD": true, "SGD": true,
	"THB": true, "MXN": true, "BRL": true, "ZAR": true, "SEK": true,
	"NOK": true, "DKK": true, "PLN": true, "CZK": true, "HUF": true,
	"EGP": true, "MAD": true, "ILS": true, "KRW": true, "IDR": true,
}

// ParsePrice reads strings like "$120.50", "120.50 EUR" or "EUR 1,200" into
// an amount and an ISO currency code. A currency symbol wins over a code; a
// code counts only when it is a known ISO code directly before or after the
// amount. The currency defaults to USD.
func ParsePrice(s string) (decimal.Decimal, string, error) {
	raw := strings.TrimSpace(s)
	loc := amountRegex.FindStringIndex(raw)
	if loc == nil {
		return decimal.Zero, "", fmt.Errorf("%w: %q", errBadPrice, s)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(raw[loc[0]:loc[1]], ",", ""))
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("%w: %q", errBadPrice, s)
	}

	for _, r := range raw {
		if code, ok := currencySymbols[r]; ok {
			return amount, code, nil
		}
	}
	for _, m := range [][]string{
		codeBeforeRegex.FindStringSubmatch(raw[:loc[0]]),
		codeAfterRegex.FindStringSubmatch(raw[loc[1]:]),
	} {
		if len(m) == 2 {
			if code := strings.ToUpper(m[1]); isoCurrencies[code] {
				return amount, code, nil
			}
		}
	}
	return amount, "USD", nil
}
