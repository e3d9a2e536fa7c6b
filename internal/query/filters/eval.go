package filters

import (
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/provider-directory/internal/domain/entities"
	"github.com/zatekoja/provider-directory/internal/domain/repositories"
)

// Matches evaluates criteria against a provider in memory
func Matches(criteria repositories.Criteria, p *entities.Provider) bool {
	for _, cond := range criteria {
		if !matchCondition(cond, p) {
			return false
		}
	}
	return true
}

func matchCondition(cond repositories.Condition, p *entities.Provider) bool {
	switch cond.Kind {
	case repositories.ConditionEquals:
		if len(cond.Fields) == 0 {
			return false
		}
		eq := compareValues(FieldValue(p, cond.Fields[0]), cond.Value) == 0
		return eq != cond.Negate
	case repositories.ConditionAtLeast:
		if len(cond.Fields) == 0 {
			return false
		}
		return compareValues(FieldValue(p, cond.Fields[0]), cond.Value) >= 0
	case repositories.ConditionContains:
		needle := strings.ToLower(fmt.Sprint(cond.Value))
		for _, f := range cond.Fields {
			if strings.Contains(strings.ToLower(fmt.Sprint(FieldValue(p, f))), needle) {
				return true
			}
		}
		return false
	}
	return false
}

// Compare orders a and b by keys, returning -1, 0 or 1
func Compare(keys []repositories.SortKey, a, b *entities.Provider) int {
	for _, k := range keys {
		c := compareValues(FieldValue(a, k.Field), FieldValue(b, k.Field))
		if c == 0 {
			continue
		}
		if k.Descending {
			return -c
		}
		return c
	}
	return 0
}

// FieldValue returns the value of field on p using the same types the SQL
// adapter binds: string, float64, int or time.Time.
func FieldValue(p *entities.Provider, field repositories.Field) interface{} {
	switch field {
	case repositories.FieldID:
		return p.ID
	case repositories.FieldSlug:
		return p.Slug
	case repositories.FieldDisplayName:
		return p.DisplayName
	case repositories.FieldBio:
		return p.Bio
	case repositories.FieldCategory:
		return p.Category
	case repositories.FieldCountry:
		return p.Country
	case repositories.FieldCity:
		return p.City
	case repositories.FieldGender:
		return string(p.Gender)
	case repositories.FieldHourlyRate:
		return p.HourlyRate
	case repositories.FieldStatus:
		return string(p.Status)
	case repositories.FieldVerificationStatus:
		return string(p.VerificationStatus)
	case repositories.FieldPriorityScore:
		return p.PriorityScore
	case repositories.FieldAverageRating:
		return p.AverageRating
	case repositories.FieldReviewCount:
		return p.ReviewCount
	case repositories.FieldCreatedAt:
		return p.CreatedAt
	}
	return nil
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		bv := fmt.Sprint(b)
		return strings.Compare(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0
		}
		return av.Compare(bv)
	default:
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok || !bok {
			return 0
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
