package entities

import (
	"strings"
	"time"
)

// ProviderStatus is the lifecycle state of a provider listing
type ProviderStatus string

const (
	ProviderStatusPending   ProviderStatus = "pending"
	ProviderStatusApproved  ProviderStatus = "approved"
	ProviderStatusRejected  ProviderStatus = "rejected"
	ProviderStatusSuspended ProviderStatus = "suspended"
)

// Valid reports whether s is a known status
func (s ProviderStatus) Valid() bool {
	switch s {
	case ProviderStatusPending, ProviderStatusApproved, ProviderStatusRejected, ProviderStatusSuspended:
		return true
	}
	return false
}

// VerificationStatus tracks identity verification of a provider
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
)

// Valid reports whether v is a known verification status
func (v VerificationStatus) Valid() bool {
	switch v {
	case VerificationUnverified, VerificationPending, VerificationVerified:
		return true
	}
	return false
}

// Gender is the self-declared gender facet of a provider
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender normalises a raw value. The second return is false for unknown values.
func ParseGender(raw string) (Gender, bool) {
	g := Gender(strings.ToLower(strings.TrimSpace(raw)))
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return g, true
	}
	return "", false
}

// Provider represents a listed service provider.
//
// AverageRating and ReviewCount are derived from the provider's reviews and are
// only ever written by the rating aggregator.
type Provider struct {
	ID                 string             `json:"id" db:"id"`
	Slug               string             `json:"slug" db:"slug"`
	DisplayName        string             `json:"display_name" db:"display_name"`
	Bio                string             `json:"bio" db:"bio"`
	Category           string             `json:"category" db:"category"`
	Country            string             `json:"country" db:"country"`
	City               string             `json:"city" db:"city"`
	Gender             Gender             `json:"gender" db:"gender"`
	HourlyRate         float64            `json:"hourly_rate" db:"hourly_rate"`
	Currency           string             `json:"currency" db:"currency"`
	Status             ProviderStatus     `json:"status" db:"status"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	PriorityScore      int                `json:"priority_score" db:"priority_score"`
	AverageRating      float64            `json:"average_rating" db:"average_rating"`
	ReviewCount        int                `json:"review_count" db:"review_count"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// IsApproved reports whether the provider is publicly discoverable
func (p *Provider) IsApproved() bool {
	return p != nil && p.Status == ProviderStatusApproved
}

// IsVerified reports whether the provider completed verification
func (p *Provider) IsVerified() bool {
	return p.VerificationStatus == VerificationVerified
}

// Clone returns a copy that does not share memory with p
func (p *Provider) Clone() *Provider {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// ProviderFacets holds the owner-editable facet fields of a provider.
// Nil fields are left unchanged.
type ProviderFacets struct {
	DisplayName *string
	Bio         *string
	Category    *string
	Country     *string
	City        *string
	Gender      *Gender
	HourlyRate  *float64
	Currency    *string
}

// Apply copies the set fields onto p
func (f ProviderFacets) Apply(p *Provider) {
	if f.DisplayName != nil {
		p.DisplayName = *f.DisplayName
	}
	if f.Bio != nil {
		p.Bio = *f.Bio
	}
	if f.Category != nil {
		p.Category = *f.Category
	}
	if f.Country != nil {
		p.Country = *f.Country
	}
	if f.City != nil {
		p.City = *f.City
	}
	if f.Gender != nil {
		p.Gender = *f.Gender
	}
	if f.HourlyRate != nil {
		p.HourlyRate = *f.HourlyRate
	}
	if f.Currency != nil {
		p.Currency = *f.Currency
	}
}

// RatingSummary is the materialized reputation of a provider
type RatingSummary struct {
	ProviderID    string  `json:"provider_id"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// AdjacentProviders holds the neighbours of a provider in creation order
type AdjacentProviders struct {
	Previous *Provider `json:"previous"`
	Next     *Provider `json:"next"`
}
