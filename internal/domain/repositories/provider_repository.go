package repositories

import (
	"context"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
)

// ProviderRepository defines the interface for provider data operations
type ProviderRepository interface {
	// Create creates a new provider
	Create(ctx context.Context, provider *entities.Provider) error

	// GetByID retrieves a provider by ID regardless of status
	GetByID(ctx context.Context, id string) (*entities.Provider, error)

	// GetBySlug retrieves a provider by slug regardless of status
	GetBySlug(ctx context.Context, slug string) (*entities.Provider, error)

	// Update writes facet, lifecycle and ranking fields. Rating fields are never written.
	Update(ctx context.Context, provider *entities.Provider) error

	// UpdateRating writes the aggregate rating fields as a single update
	UpdateRating(ctx context.Context, summary entities.RatingSummary) error

	// Count returns the number of providers matching criteria
	Count(ctx context.Context, criteria Criteria) (int, error)

	// Find returns the providers matching the query, ordered and windowed
	Find(ctx context.Context, query ProviderQuery) ([]*entities.Provider, error)

	// Neighbors returns the approved providers immediately before and after id
	// in ascending (created_at, id) order. Both are nil when id is missing or
	// not approved.
	Neighbors(ctx context.Context, id string) (prev, next *entities.Provider, err error)

	// DistinctValues returns the distinct non-empty values of field among the
	// providers matching criteria, in byte order.
	DistinctValues(ctx context.Context, field Field, criteria Criteria) ([]string, error)
}

// RatingRecomputer is implemented by stores that can recompute and persist a
// provider's aggregate rating in one atomic statement.
type RatingRecomputer interface {
	RecomputeRating(ctx context.Context, providerID string) (entities.RatingSummary, error)
}

// Field names a provider column usable in criteria and sort keys
type Field string

const (
	FieldID                 Field = "id"
	FieldSlug               Field = "slug"
	FieldDisplayName        Field = "display_name"
	FieldBio                Field = "bio"
	FieldCategory           Field = "category"
	FieldCountry            Field = "country"
	FieldCity               Field = "city"
	FieldGender             Field = "gender"
	FieldHourlyRate         Field = "hourly_rate"
	FieldStatus             Field = "status"
	FieldVerificationStatus Field = "verification_status"
	FieldPriorityScore      Field = "priority_score"
	FieldAverageRating      Field = "average_rating"
	FieldReviewCount        Field = "review_count"
	FieldCreatedAt          Field = "created_at"
)

// ConditionKind is the closed set of constraint kinds a filter can compile to
type ConditionKind int

const (
	// ConditionEquals matches Fields[0] = Value (or <> when Negate is set)
	ConditionEquals ConditionKind = iota
	// ConditionAtLeast matches Fields[0] >= Value
	ConditionAtLeast
	// ConditionContains matches when any of Fields contains Value as a
	// case-insensitive substring
	ConditionContains
)

// Condition is a single conjunct of a provider predicate
type Condition struct {
	Kind   ConditionKind
	Fields []Field
	Value  interface{}
	Negate bool
}

// Criteria is a conjunction of conditions
type Criteria []Condition

// And returns a new Criteria with c appended
func (c Criteria) And(cond Condition) Criteria {
	out := make(Criteria, 0, len(c)+1)
	out = append(out, c...)
	return append(out, cond)
}

// Equals builds an equality condition
func Equals(field Field, value interface{}) Condition {
	return Condition{Kind: ConditionEquals, Fields: []Field{field}, Value: value}
}

// NotEquals builds an inequality condition
func NotEquals(field Field, value interface{}) Condition {
	return Condition{Kind: ConditionEquals, Fields: []Field{field}, Value: value, Negate: true}
}

// AtLeast builds an inclusive lower bound condition
func AtLeast(field Field, value interface{}) Condition {
	return Condition{Kind: ConditionAtLeast, Fields: []Field{field}, Value: value}
}

// ContainsAny builds a case-insensitive substring disjunction over fields
func ContainsAny(value string, fields ...Field) Condition {
	return Condition{Kind: ConditionContains, Fields: fields, Value: value}
}

// ApprovedOnly is the base criteria of every discovery query
func ApprovedOnly() Criteria {
	return Criteria{Equals(FieldStatus, string(entities.ProviderStatusApproved))}
}

// SortKey orders results by one field
type SortKey struct {
	Field      Field
	Descending bool
}

// ProviderQuery is a compiled discovery query against the provider store
type ProviderQuery struct {
	Criteria Criteria
	Sort     []SortKey
	Limit    int
	Offset   int
}
