package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

const providersTable = "providers"

var providerColumns = []interface{}{
	"id", "slug", "display_name", "bio", "category", "country", "city", "gender",
	"hourly_rate", "currency", "status", "verification_status", "priority_score",
	"average_rating", "review_count", "created_at", "updated_at",
}

// ProviderAdapter implements the ProviderRepository interface on Postgres
type ProviderAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProviderAdapter creates a new provider adapter
func NewProviderAdapter(client *postgres.Client) *ProviderAdapter {
	return &ProviderAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new provider
func (a *ProviderAdapter) Create(ctx context.Context, provider *entities.Provider) error {
	record := goqu.Record{
		"id":                  provider.ID,
		"slug":                provider.Slug,
		"display_name":        provider.DisplayName,
		"bio":                 sql.NullString{String: provider.Bio, Valid: provider.Bio != ""},
		"category":            provider.Category,
		"country":             provider.Country,
		"city":                provider.City,
		"gender":              string(provider.Gender),
		"hourly_rate":         provider.HourlyRate,
		"currency":            provider.Currency,
		"status":              string(provider.Status),
		"verification_status": string(provider.VerificationStatus),
		"priority_score":      provider.PriorityScore,
		"average_rating":      0,
		"review_count":        0,
		"created_at":          provider.CreatedAt,
		"updated_at":          provider.UpdatedAt,
	}

	query, args, err := a.db.Insert(providersTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build provider insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return classify("failed to create provider", "provider slug already taken", err)
	}
	return nil
}

// GetByID retrieves a provider by ID
func (a *ProviderAdapter) GetByID(ctx context.Context, id string) (*entities.Provider, error) {
	return a.getOne(ctx, goqu.C("id").Eq(id), fmt.Sprintf("provider with id %s not found", id))
}

// GetBySlug retrieves a provider by slug
func (a *ProviderAdapter) GetBySlug(ctx context.Context, slug string) (*entities.Provider, error) {
	return a.getOne(ctx, goqu.C("slug").Eq(slug), fmt.Sprintf("provider with slug %s not found", slug))
}

func (a *ProviderAdapter) getOne(ctx context.Context, where exp.Expression, notFound string) (*entities.Provider, error) {
	query, args, err := a.selectProviders().Where(where).Limit(1).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build provider query", err)
	}

	provider, err := scanProvider(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, classify("failed to get provider", "", err)
	}
	return provider, nil
}

// Update writes facet, lifecycle and ranking fields
func (a *ProviderAdapter) Update(ctx context.Context, provider *entities.Provider) error {
	provider.UpdatedAt = time.Now().UTC()

	record := goqu.Record{
		"display_name":        provider.DisplayName,
		"bio":                 sql.NullString{String: provider.Bio, Valid: provider.Bio != ""},
		"category":            provider.Category,
		"country":             provider.Country,
		"city":                provider.City,
		"gender":              string(provider.Gender),
		"hourly_rate":         provider.HourlyRate,
		"currency":            provider.Currency,
		"status":              string(provider.Status),
		"verification_status": string(provider.VerificationStatus),
		"priority_score":      provider.PriorityScore,
		"updated_at":          provider.UpdatedAt,
	}

	query, args, err := a.db.Update(providersTable).Prepared(true).
		Set(record).
		Where(goqu.C("id").Eq(provider.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build provider update query", err)
	}

	return a.execOne(ctx, query, args, "failed to update provider", provider.ID)
}

// UpdateRating writes the aggregate rating fields in one statement
func (a *ProviderAdapter) UpdateRating(ctx context.Context, summary entities.RatingSummary) error {
	query, args, err := a.db.Update(providersTable).Prepared(true).
		Set(goqu.Record{
			"average_rating": summary.AverageRating,
			"review_count":   summary.ReviewCount,
			"updated_at":     time.Now().UTC(),
		}).
		Where(goqu.C("id").Eq(summary.ProviderID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build rating update query", err)
	}

	return a.execOne(ctx, query, args, "failed to update provider rating", summary.ProviderID)
}

const lockProviderSQL = `SELECT id FROM providers WHERE id = $1 FOR UPDATE`

const recomputeRatingSQL = `
	UPDATE providers AS p SET
		average_rating = agg.average_rating,
		review_count = agg.review_count,
		updated_at = NOW()
	FROM (
		SELECT
			COALESCE(ROUND(AVG(rating)::numeric, 1), 0)::float8 AS average_rating,
			COUNT(*)::int AS review_count
		FROM reviews
		WHERE provider_id = $1
	) AS agg
	WHERE p.id = $1
	RETURNING p.average_rating, p.review_count
`

// RecomputeRating derives the rating aggregate from the reviews table and
// writes it back inside one transaction. The provider row lock is taken
// before the aggregate is read so concurrent recomputes for the same
// provider serialize, and the later one always sees the earlier one's reviews.
func (a *ProviderAdapter) RecomputeRating(ctx context.Context, providerID string) (entities.RatingSummary, error) {
	summary := entities.RatingSummary{ProviderID: providerID}

	var txErr error
	err := a.client.WithTx(ctx, func(tx *sql.Tx) error {
		var locked string
		if err := tx.QueryRowContext(ctx, lockProviderSQL, providerID).Scan(&locked); err != nil {
			if err == sql.ErrNoRows {
				txErr = apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", providerID))
			} else {
				txErr = classify("failed to lock provider", "", err)
			}
			return txErr
		}

		if err := tx.QueryRowContext(ctx, recomputeRatingSQL, providerID).Scan(&summary.AverageRating, &summary.ReviewCount); err != nil {
			txErr = classify("failed to recompute provider rating", "", err)
			return txErr
		}
		return nil
	})
	switch {
	case txErr != nil:
		return summary, txErr
	case err != nil:
		return summary, classify("failed to run rating transaction", "", err)
	}
	return summary, nil
}

// Count returns the number of providers matching criteria
func (a *ProviderAdapter) Count(ctx context.Context, criteria repositories.Criteria) (int, error) {
	query, args, err := a.db.From(providersTable).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(whereClause(criteria)).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build provider count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, classify("failed to count providers", "", err)
	}
	return count, nil
}

// Find returns the providers matching the query, ordered and windowed
func (a *ProviderAdapter) Find(ctx context.Context, q repositories.ProviderQuery) ([]*entities.Provider, error) {
	ds := a.selectProviders().
		Where(whereClause(q.Criteria)).
		Order(orderClause(q.Sort)...)
	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}
	if q.Offset > 0 {
		ds = ds.Offset(uint(q.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build provider search query", err)
	}

	return a.queryProviders(ctx, query, args)
}

// Neighbors walks the (status, created_at) index one row in each direction.
// id is the final tie-break so providers created in the same instant still
// have a total order.
func (a *ProviderAdapter) Neighbors(ctx context.Context, id string) (*entities.Provider, *entities.Provider, error) {
	target, err := a.GetByID(ctx, id)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !target.IsApproved() {
		return nil, nil, nil
	}

	approved := goqu.C("status").Eq(string(entities.ProviderStatusApproved))

	prev, err := a.neighbor(ctx, approved,
		goqu.L("(created_at, id) < (?, ?)", target.CreatedAt, target.ID),
		goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if err != nil {
		return nil, nil, err
	}

	next, err := a.neighbor(ctx, approved,
		goqu.L("(created_at, id) > (?, ?)", target.CreatedAt, target.ID),
		goqu.C("created_at").Asc(), goqu.C("id").Asc())
	if err != nil {
		return nil, nil, err
	}

	return prev, next, nil
}

func (a *ProviderAdapter) neighbor(ctx context.Context, approved, bound exp.Expression, order ...exp.OrderedExpression) (*entities.Provider, error) {
	query, args, err := a.selectProviders().
		Where(approved, bound).
		Order(order...).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build adjacent provider query", err)
	}

	provider, err := scanProvider(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("failed to get adjacent provider", "", err)
	}
	return provider, nil
}

// DistinctValues returns the distinct non-empty values of field
func (a *ProviderAdapter) DistinctValues(ctx context.Context, field repositories.Field, criteria repositories.Criteria) ([]string, error) {
	col := goqu.C(string(field))
	query, args, err := a.db.From(providersTable).Prepared(true).
		SelectDistinct(col).
		Where(whereClause(criteria), col.IsNotNull(), col.Neq("")).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build facet query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to list facet values", "", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperrors.NewInternalError("failed to scan facet value", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("error iterating facet values", "", err)
	}

	// Collation order differs between databases; callers get byte order.
	sort.Strings(values)
	return values, nil
}

func (a *ProviderAdapter) selectProviders() *goqu.SelectDataset {
	return a.db.From(providersTable).Prepared(true).Select(providerColumns...)
}

func (a *ProviderAdapter) execOne(ctx context.Context, query string, args []interface{}, message, id string) error {
	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return classify(message, "", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
	}
	return nil
}

func (a *ProviderAdapter) queryProviders(ctx context.Context, query string, args []interface{}) ([]*entities.Provider, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to search providers", "", err)
	}
	defer rows.Close()

	providers := []*entities.Provider{}
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan provider", err)
		}
		providers = append(providers, provider)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("error iterating providers", "", err)
	}
	return providers, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProvider(row rowScanner) (*entities.Provider, error) {
	var (
		p                            entities.Provider
		bio, currency                sql.NullString
		gender, status, verification string
	)

	err := row.Scan(
		&p.ID,
		&p.Slug,
		&p.DisplayName,
		&bio,
		&p.Category,
		&p.Country,
		&p.City,
		&gender,
		&p.HourlyRate,
		&currency,
		&status,
		&verification,
		&p.PriorityScore,
		&p.AverageRating,
		&p.ReviewCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Bio = bio.String
	p.Currency = currency.String
	p.Gender = entities.Gender(gender)
	p.Status = entities.ProviderStatus(status)
	p.VerificationStatus = entities.VerificationStatus(verification)
	return &p, nil
}

// whereClause translates criteria into a goqu conjunction
func whereClause(criteria repositories.Criteria) exp.Expression {
	exprs := make([]exp.Expression, 0, len(criteria))
	for _, cond := range criteria {
		if e := conditionExpression(cond); e != nil {
			exprs = append(exprs, e)
		}
	}
	return goqu.And(exprs...)
}

func conditionExpression(cond repositories.Condition) exp.Expression {
	if len(cond.Fields) == 0 {
		return nil
	}

	switch cond.Kind {
	case repositories.ConditionEquals:
		col := goqu.C(string(cond.Fields[0]))
		if cond.Negate {
			return col.Neq(cond.Value)
		}
		return col.Eq(cond.Value)
	case repositories.ConditionAtLeast:
		return goqu.C(string(cond.Fields[0])).Gte(cond.Value)
	case repositories.ConditionContains:
		pattern := "%" + escapeLike(fmt.Sprint(cond.Value)) + "%"
		ors := make([]exp.Expression, 0, len(cond.Fields))
		for _, f := range cond.Fields {
			ors = append(ors, goqu.C(string(f)).ILike(pattern))
		}
		return goqu.Or(ors...)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside an ILIKE pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func orderClause(keys []repositories.SortKey) []exp.OrderedExpression {
	order := make([]exp.OrderedExpression, 0, len(keys))
	for _, k := range keys {
		col := goqu.C(string(k.Field))
		if k.Descending {
			order = append(order, col.Desc())
		} else {
			order = append(order, col.Asc())
		}
	}
	return order
}
