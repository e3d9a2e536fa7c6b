// Package filters compiles discovery filters into store-agnostic provider
// predicates and orderings.
package filters

import (
	"strings"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
)

// TextSearchFields are the provider fields matched by the free-text query
var TextSearchFields = []repositories.Field{
	repositories.FieldBio,
	repositories.FieldCategory,
	repositories.FieldCountry,
	repositories.FieldCity,
	repositories.FieldDisplayName,
}

// Query is a compiled predicate plus comparator
type Query struct {
	Criteria repositories.Criteria
	Sort     []repositories.SortKey
}

// Compiler turns SearchFilters into a Query
type Compiler struct {
	categories map[string]string
}

// NewCompiler creates a compiler that accepts the given category catalog.
// Category values outside the catalog compile to "no constraint".
func NewCompiler(categories []string) *Compiler {
	catalog := make(map[string]string, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		catalog[strings.ToLower(c)] = c
	}
	return &Compiler{categories: catalog}
}

// Compile builds the predicate and comparator for f. It never fails: unknown
// enum values and sorts degrade to their permissive defaults.
func (c *Compiler) Compile(f entities.SearchFilters) Query {
	criteria := repositories.ApprovedOnly()

	if f.Query != nil {
		if q := strings.TrimSpace(*f.Query); q != "" {
			criteria = criteria.And(repositories.ContainsAny(q, TextSearchFields...))
		}
	}

	if f.Gender != nil {
		if g, ok := entities.ParseGender(string(*f.Gender)); ok {
			criteria = criteria.And(repositories.Equals(repositories.FieldGender, string(g)))
		}
	}

	if v, ok := present(f.Country); ok {
		criteria = criteria.And(repositories.Equals(repositories.FieldCountry, v))
	}

	if v, ok := present(f.City); ok {
		criteria = criteria.And(repositories.Equals(repositories.FieldCity, v))
	}

	if v, ok := present(f.Category); ok {
		if canonical, known := c.categories[strings.ToLower(v)]; known {
			criteria = criteria.And(repositories.Equals(repositories.FieldCategory, canonical))
		}
	}

	if f.MinRating != nil && *f.MinRating > 0 {
		criteria = criteria.And(repositories.AtLeast(repositories.FieldAverageRating, *f.MinRating))
	}

	if f.Verified != nil {
		verified := string(entities.VerificationVerified)
		if *f.Verified {
			criteria = criteria.And(repositories.Equals(repositories.FieldVerificationStatus, verified))
		} else {
			criteria = criteria.And(repositories.NotEquals(repositories.FieldVerificationStatus, verified))
		}
	}

	return Query{
		Criteria: criteria,
		Sort:     SortKeys(f.SortBy),
	}
}

// Featured is the query behind the default listing
func Featured() Query {
	return Query{
		Criteria: repositories.ApprovedOnly(),
		Sort:     SortKeys(entities.SortByFeatured),
	}
}

// SortKeys returns the comparator for s. Every ordering ends in an id
// tie-break so that an unchanged data set always sorts identically.
func SortKeys(s entities.SortBy) []repositories.SortKey {
	idAsc := repositories.SortKey{Field: repositories.FieldID}

	switch entities.ParseSortBy(string(s)) {
	case entities.SortByNewest:
		return []repositories.SortKey{
			{Field: repositories.FieldCreatedAt, Descending: true},
			idAsc,
		}
	case entities.SortByPriceLow:
		return []repositories.SortKey{
			{Field: repositories.FieldHourlyRate},
			idAsc,
		}
	case entities.SortByPriceHigh:
		return []repositories.SortKey{
			{Field: repositories.FieldHourlyRate, Descending: true},
			idAsc,
		}
	case entities.SortByFeatured:
		return []repositories.SortKey{
			{Field: repositories.FieldPriorityScore, Descending: true},
			{Field: repositories.FieldCreatedAt, Descending: true},
			idAsc,
		}
	default:
		return []repositories.SortKey{
			{Field: repositories.FieldAverageRating, Descending: true},
			{Field: repositories.FieldReviewCount, Descending: true},
			idAsc,
		}
	}
}

func present(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}
