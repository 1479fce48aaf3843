package api

import "github.com/Checker-Finance/experiences/pkg/model"

// Location is the coordinate pair of a list item.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// ExperienceItem is the list view of an experience.
type ExperienceItem struct {
	ID               int64       `json:"id"`
	Slug             string      `json:"slug"`
	Title            string      `json:"title"`
	Thumbnail        string      `json:"thumbnail"`
	ShortDescription string      `json:"short_description"`
	Price            model.Money `json:"price"`
	Rating           *float64    `json:"rating"`
	Language         string      `json:"language"`
	Location         Location    `json:"location"`
	Source           string      `json:"source"`
}

// Meta describes the page of a list response. Total counts the whole
// merged listing.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ListResponse is the paginated list envelope.
type ListResponse struct {
	Data []ExperienceItem `json:"data"`
	Meta Meta             `json:"meta"`
}

// DetailsResponse wraps one experience detail view and its related local
// experiences in list form.
type DetailsResponse struct {
	Experience *model.ExperienceDetails `json:"experience"`
	Related    []ExperienceItem         `json:"related"`
}

// ProvidersResponse lists the sources currently consulted.
type ProvidersResponse struct {
	AvailableProviders []string `json:"available_providers"`
	TotalProviders     int      `json:"total_providers"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toItem(e model.Experience) ExperienceItem {
	language := e.Language
	if language == "" {
		language = "en"
	}
	source := e.Source
	if source == "" {
		source = model.SourceLocal
	}
	return ExperienceItem{
		ID:               e.ID,
		Slug:             e.Slug,
		Title:            e.Title,
		Thumbnail:        e.Thumbnail,
		ShortDescription: e.ShortDescription,
		Price:            e.SellPrice,
		Rating:           e.Rating,
		Language:         language,
		Location:         Location{Latitude: e.Latitude, Longitude: e.Longitude},
		Source:           source,
	}
}

// paginate returns page (1-based) of items with limit entries.
func paginate(items []model.Experience, page, limit int) []ExperienceItem {
	out := []ExperienceItem{}
	if page < 1 || limit < 1 {
		return out
	}
	// Compare page counts before multiplying so a huge page cannot overflow.
	if page-1 >= (len(items)+limit-1)/limit {
		return out
	}
	from := (page - 1) * limit
	to := from + limit
	if to > len(items) {
		to = len(items)
	}
	for _, e := range items[from:to] {
		out = append(out, toItem(e))
	}
	return out
}
