// Package license implements key issuance, activation and the authorization
// check that gates payload delivery.
package license

import (
	"time"
)

// LicenseKey is a single issued key and everything bound to it.
type LicenseKey struct {
	ID string

	Activated bool

	// OwnerID is the identity that redeemed the key. Empty until activation.
	OwnerID string

	// Fingerprint is the device binding. Empty until the first granted
	// authorization that presented one; never changes afterwards.
	Fingerprint string

	DurationDays int

	CreatedAt   time.Time
	ActivatedAt *time.Time

	// ExpiresAt is ActivatedAt + DurationDays. Only meaningful when Activated.
	ExpiresAt *time.Time
}

// ExpiredAt reports whether the key is past its expiry at t.
// Keys that were never activated do not expire.
func (k LicenseKey) ExpiredAt(t time.Time) bool {
	if !k.Activated || k.ExpiresAt == nil {
		return false
	}
	return t.After(*k.ExpiresAt)
}

func (k LicenseKey) clone() LicenseKey {
	out := k
	if k.ActivatedAt != nil {
		t := *k.ActivatedAt
		out.ActivatedAt = &t
	}
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}

func sameKey(a, b LicenseKey) bool {
	return a.ID == b.ID &&
		a.Activated == b.Activated &&
		a.OwnerID == b.OwnerID &&
		a.Fingerprint == b.Fingerprint &&
		a.DurationDays == b.DurationDays &&
		a.CreatedAt.Equal(b.CreatedAt) &&
		sameTime(a.ActivatedAt, b.ActivatedAt) &&
		sameTime(a.ExpiresAt, b.ExpiresAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Clock returns the current time. Injected so tests can move time.
type Clock func() time.Time

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
