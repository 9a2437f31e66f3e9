// Package expiry converts relative durations into absolute expiry instants
// and decides whether a stored link is still live.
package expiry

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go-link-registry/types"
)

// ErrInvalidDuration is returned for non-positive values, unknown units
// and durations that do not fit into a time.Duration.
var ErrInvalidDuration = errors.New("invalid expiration duration")

// Clock returns the current instant.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

var unitDurations = map[types.ExpiryUnit]time.Duration{
	types.Minutes: time.Minute,
	types.Hours:   time.Hour,
	types.Days:    24 * time.Hour,
}

// ParseUnit maps a unit name (case-insensitive) to an ExpiryUnit.
func ParseUnit(s string) (types.ExpiryUnit, error) {
	unit := types.ExpiryUnit(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := unitDurations[unit]; !ok {
		return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidDuration, s)
	}
	return unit, nil
}

// ComputeExpiry returns now + value*unit.
func ComputeExpiry(now time.Time, value int, unit types.ExpiryUnit) (time.Time, error) {
	step, ok := unitDurations[unit]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidDuration, unit)
	}
	if value <= 0 {
		return time.Time{}, fmt.Errorf("%w: value must be positive, got %d", ErrInvalidDuration, value)
	}
	if int64(value) > math.MaxInt64/int64(step) {
		return time.Time{}, fmt.Errorf("%w: %d %s is too long", ErrInvalidDuration, value, unit)
	}
	return now.Add(time.Duration(value) * step), nil
}

// IsLive reports whether the record has no expiry or expires after now.
func IsLive(record types.LinkRecord, now time.Time) bool {
	return record.ExpiresAt == nil || record.ExpiresAt.After(now)
}

// Remaining returns how long the record stays live. The second result is
// false for records that never expire.
func Remaining(record types.LinkRecord, now time.Time) (time.Duration, bool) {
	if record.ExpiresAt == nil {
		return 0, false
	}
	return record.ExpiresAt.Sub(now), true
}
