package entities

import "time"

const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// Review is a single reviewer's rating of a provider. A reviewer holds at most
// one review per provider.
type Review struct {
	ID         string    `json:"id" db:"id"`
	ProviderID string    `json:"provider_id" db:"provider_id"`
	ReviewerID string    `json:"reviewer_id" db:"reviewer_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ComputeRating derives the provider reputation from a full set of ratings.
// The mean is rounded half away from zero to one decimal place in integer tenths
// so that e.g. 4.25 always yields 4.3.
func ComputeRating(ratings []int) (average float64, count int) {
	count = len(ratings)
	if count == 0 {
		return 0, 0
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}

	tenths := (sum*20 + count) / (count * 2)
	return float64(tenths) / 10, count
}
