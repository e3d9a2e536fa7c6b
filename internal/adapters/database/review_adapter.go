package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
	"github.com/zatekoja/provider-directory/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

const reviewsTable = "reviews"

// ReviewAlreadyExistsMessage is the conflict message for a second review by the same reviewer
const ReviewAlreadyExistsMessage = "reviewer has already reviewed this provider"

var reviewColumns = []interface{}{
	"id", "provider_id", "reviewer_id", "rating", "comment", "created_at", "updated_at",
}

// ReviewAdapter implements review persistence in Postgres.
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReviewAdapter creates a new review adapter.
func NewReviewAdapter(client *postgres.Client) repositories.ReviewRepository {
	return &ReviewAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a review record.
func (a *ReviewAdapter) Create(ctx context.Context, review *entities.Review) error {
	if review == nil {
		return apperrors.NewInternalError("review is nil", fmt.Errorf("review is nil"))
	}

	record := goqu.Record{
		"id":          review.ID,
		"provider_id": review.ProviderID,
		"reviewer_id": review.ReviewerID,
		"rating":      review.Rating,
		"comment":     sql.NullString{String: review.Comment, Valid: review.Comment != ""},
		"created_at":  review.CreatedAt,
		"updated_at":  review.UpdatedAt,
	}

	query, args, err := a.db.Insert(reviewsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build review insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return classify("failed to create review", ReviewAlreadyExistsMessage, err)
	}

	return nil
}

// GetByID retrieves a review by ID
func (a *ReviewAdapter) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	query, args, err := a.db.From(reviewsTable).Prepared(true).
		Select(reviewColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build review query", err)
	}

	review, err := scanReview(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", id))
	}
	if err != nil {
		return nil, classify("failed to get review", "", err)
	}
	return review, nil
}

// Update rewrites the rating and comment of a review
func (a *ReviewAdapter) Update(ctx context.Context, review *entities.Review) error {
	if review.UpdatedAt.IsZero() {
		review.UpdatedAt = time.Now().UTC()
	}

	query, args, err := a.db.Update(reviewsTable).Prepared(true).
		Set(goqu.Record{
			"rating":     review.Rating,
			"comment":    sql.NullString{String: review.Comment, Valid: review.Comment != ""},
			"updated_at": review.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(review.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build review update query", err)
	}

	return a.execOne(ctx, query, args, "failed to update review", review.ID)
}

// Delete removes a review
func (a *ReviewAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(reviewsTable).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build review delete query", err)
	}

	return a.execOne(ctx, query, args, "failed to delete review", id)
}

// ListByProvider returns a provider's reviews, newest first
func (a *ReviewAdapter) ListByProvider(ctx context.Context, providerID string, limit, offset int) ([]*entities.Review, error) {
	ds := a.db.From(reviewsTable).Prepared(true).
		Select(reviewColumns...).
		Where(goqu.C("provider_id").Eq(providerID)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build review list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to list reviews", "", err)
	}
	defer rows.Close()

	reviews := []*entities.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan review", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("error iterating reviews", "", err)
	}
	return reviews, nil
}

// CountByProvider returns the number of reviews of a provider
func (a *ReviewAdapter) CountByProvider(ctx context.Context, providerID string) (int, error) {
	query, args, err := a.db.From(reviewsTable).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(goqu.C("provider_id").Eq(providerID)).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build review count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, classify("failed to count reviews", "", err)
	}
	return count, nil
}

// RatingsByProvider returns every rating held by a provider
func (a *ReviewAdapter) RatingsByProvider(ctx context.Context, providerID string) ([]int, error) {
	query, args, err := a.db.From(reviewsTable).Prepared(true).
		Select("rating").
		Where(goqu.C("provider_id").Eq(providerID)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build ratings query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to load ratings", "", err)
	}
	defer rows.Close()

	ratings := []int{}
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return nil, apperrors.NewInternalError("failed to scan rating", err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("error iterating ratings", "", err)
	}
	return ratings, nil
}

func (a *ReviewAdapter) execOne(ctx context.Context, query string, args []interface{}, message, id string) error {
	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return classify(message, "", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", id))
	}
	return nil
}

func scanReview(row rowScanner) (*entities.Review, error) {
	var (
		r       entities.Review
		comment sql.NullString
	)
	if err := row.Scan(&r.ID, &r.ProviderID, &r.ReviewerID, &r.Rating, &comment, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Comment = comment.String
	return &r, nil
}
