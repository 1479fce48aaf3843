package tours

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Checker-Finance/experiences/pkg/model"
)

//
// ────────────────────────────────────────────────
//   Upstream wire types
// ────────────────────────────────────────────────
//

// TourRecord is one tour as returned by /api/tours and /api/tours/{id}.
type TourRecord struct {
	ID          flexString       `json:"id"`
	Title       string           `json:"title"`
	Excerpt     string           `json:"excerpt"`
	Description string           `json:"description"`
	Photos      []string         `json:"photos"`
	City        string           `json:"city"`
	Country     string           `json:"country"`
	Categories  []model.Category `json:"categories"`
}

// tourListResponse wraps the listing payload. Records are kept raw so that
// one malformed element does not fail the batch.
type tourListResponse struct {
	Data []json.RawMessage `json:"data"`
}

// TourPrice is one element of /api/tour-prices.
type TourPrice struct {
	TourID flexString `json:"tourId"`
	Price  string     `json:"price"`
}

// TourAvailability is the payload of /api/tours/{id}/availability.
type TourAvailability struct {
	TourID    flexString `json:"tourId"`
	Available flexBool   `json:"available"`
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

// flexBool accepts true/false, 0/1 and their string forms.
type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "null", "":
		*v = false
		return nil
	case "true":
		*v = true
		return nil
	case "false":
		*v = false
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		s = string(b)
	}
	parsed, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("expected boolean, got %s", b)
	}
	*v = flexBool(parsed)
	return nil
}
