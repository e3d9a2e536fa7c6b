package filters

import (
	"errors"
	"math"
	"net/url"
	"strings"

	"github.com/gorilla/schema"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

// AnyValue is the sentinel a client sends to clear a facet
const AnyValue = "all"

// Params is the query-string form of a discovery request
type Params struct {
	Query     string   `schema:"q"`
	Gender    string   `schema:"gender"`
	Country   string   `schema:"country"`
	City      string   `schema:"city"`
	Category  string   `schema:"category"`
	MinRating *float64 `schema:"min_rating"`
	Verified  *bool    `schema:"verified"`
	Sort      string   `schema:"sort"`
	Page      int      `schema:"page"`
	PageSize  int      `schema:"page_size"`
}

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// ParseValues decodes query parameters into filters and a page request.
// Typed parameters that fail to parse are a validation error; unknown enum
// values and the "all" sentinel mean no constraint.
func ParseValues(values url.Values) (entities.SearchFilters, Params, error) {
	var p Params
	if err := decoder.Decode(&p, values); err != nil {
		return entities.SearchFilters{}, p, apperrors.NewValidationError(describeDecodeError(err))
	}

	if p.MinRating != nil && (math.IsNaN(*p.MinRating) || math.IsInf(*p.MinRating, 0)) {
		return entities.SearchFilters{}, p, apperrors.NewValidationError("min_rating must be a finite number")
	}
	if p.Page < 0 || p.PageSize < 0 {
		return entities.SearchFilters{}, p, apperrors.NewValidationError("page and page_size must not be negative")
	}

	opts := []entities.FilterOption{
		entities.WithQuery(p.Query),
		entities.WithSort(entities.ParseSortBy(p.Sort)),
	}
	if g, ok := entities.ParseGender(p.Gender); ok {
		opts = append(opts, entities.WithGender(g))
	}
	if v, ok := facet(p.Country); ok {
		opts = append(opts, entities.WithCountry(v))
	}
	if v, ok := facet(p.City); ok {
		opts = append(opts, entities.WithCity(v))
	}
	if v, ok := facet(p.Category); ok {
		opts = append(opts, entities.WithCategory(v))
	}
	if p.MinRating != nil {
		opts = append(opts, entities.WithMinRating(*p.MinRating))
	}
	if p.Verified != nil {
		opts = append(opts, entities.WithVerified(*p.Verified))
	}

	return entities.NewSearchFilters(opts...), p, nil
}

func facet(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, AnyValue) {
		return "", false
	}
	return v, true
}

func describeDecodeError(err error) string {
	var multi schema.MultiError
	if errors.As(err, &multi) {
		for key := range multi {
			return "invalid value for parameter " + key
		}
	}
	return "invalid query parameters"
}

type pageParams struct {
	Page     int `schema:"page"`
	PageSize int `schema:"page_size"`
}

// ParsePage decodes only the page and page_size parameters
func ParsePage(values url.Values) (page, pageSize int, err error) {
	var p pageParams
	if err := decoder.Decode(&p, values); err != nil {
		return 0, 0, apperrors.NewValidationError(describeDecodeError(err))
	}
	if p.Page < 0 || p.PageSize < 0 {
		return 0, 0, apperrors.NewValidationError("page and page_size must not be negative")
	}
	return p.Page, p.PageSize, nil
}
