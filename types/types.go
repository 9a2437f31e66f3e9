// Package types defines the data structures used by the link registry.
package types

import "time"

// ExpiryUnit is the unit of a relative expiration.
type ExpiryUnit string

const (
	Minutes ExpiryUnit = "minutes"
	Hours   ExpiryUnit = "hours"
	Days    ExpiryUnit = "days"
)

// LinkRecord is the persisted unit of the registry.
// A record is written once and never mutated.
type LinkRecord struct {
	Code      string     `json:"code"`
	TargetURL string     `json:"target_url"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil means the link never expires
	IsCustom  bool       `json:"is_custom"`
}

// RelativeExpiry is an expiration expressed as value + unit, e.g. 7 days.
type RelativeExpiry struct {
	Value int
	Unit  ExpiryUnit
}

// CreateOptions carries the optional parts of a create request.
type CreateOptions struct {
	// CustomCode is the caller-chosen code. Empty means "generate one".
	CustomCode string

	// ExpiresAt is an absolute expiry already resolved by the caller.
	ExpiresAt *time.Time

	// ExpiresIn lets the engine resolve the expiry instead of the caller.
	// It cannot be combined with ExpiresAt.
	ExpiresIn *RelativeExpiry
}
