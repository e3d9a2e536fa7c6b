package entities

import "strings"

// SortBy selects the ordering of discovery results
type SortBy string

const (
	SortByRating    SortBy = "rating"
	SortByNewest    SortBy = "newest"
	SortByPriceLow  SortBy = "price_low"
	SortByPriceHigh SortBy = "price_high"
	// SortByFeatured orders by the manually assigned priority score, then recency.
	SortByFeatured SortBy = "featured"
)

// ParseSortBy maps a raw value onto a known sort. Unknown values fall back to rating.
func ParseSortBy(raw string) SortBy {
	switch s := SortBy(strings.ToLower(strings.TrimSpace(raw))); s {
	case SortByRating, SortByNewest, SortByPriceLow, SortByPriceHigh, SortByFeatured:
		return s
	}
	return SortByRating
}

// SearchFilters is an immutable discovery request. A nil field means "no
// constraint"; it never means "match empty".
type SearchFilters struct {
	Query     *string
	Gender    *Gender
	Country   *string
	City      *string
	Category  *string
	MinRating *float64
	Verified  *bool
	SortBy    SortBy
}

// FilterOption configures SearchFilters
type FilterOption func(*SearchFilters)

// NewSearchFilters builds a SearchFilters value from options
func NewSearchFilters(opts ...FilterOption) SearchFilters {
	f := SearchFilters{SortBy: SortByRating}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithQuery sets the free-text query. Blank queries are ignored.
func WithQuery(q string) FilterOption {
	return func(f *SearchFilters) {
		f.Query = optionalString(q)
	}
}

// WithGender constrains the gender facet
func WithGender(g Gender) FilterOption {
	return func(f *SearchFilters) {
		f.Gender = &g
	}
}

// WithCountry constrains the country facet
func WithCountry(country string) FilterOption {
	return func(f *SearchFilters) {
		f.Country = optionalString(country)
	}
}

// WithCity constrains the city facet
func WithCity(city string) FilterOption {
	return func(f *SearchFilters) {
		f.City = optionalString(city)
	}
}

// WithCategory constrains the category facet
func WithCategory(category string) FilterOption {
	return func(f *SearchFilters) {
		f.Category = optionalString(category)
	}
}

// WithMinRating sets an inclusive lower bound on the average rating
func WithMinRating(min float64) FilterOption {
	return func(f *SearchFilters) {
		f.MinRating = &min
	}
}

// WithVerified constrains the verification flag
func WithVerified(verified bool) FilterOption {
	return func(f *SearchFilters) {
		f.Verified = &verified
	}
}

// WithSort sets the ordering
func WithSort(s SortBy) FilterOption {
	return func(f *SearchFilters) {
		f.SortBy = s
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
