// Package ratelimit implements the attempt limiter used by the login form,
// the public check-in form and the admin token generator.
package ratelimit

import (
	"errors"
	"time"
)

// Policy bounds how often a key may act: at most MaxAttempts inside Window,
// after which the key is blocked for BlockDuration.
type Policy struct {
	Name          string
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

var (
	// PresetLogin guards admin sign-in.
	PresetLogin = Policy{Name: "login", MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute}
	// PresetAttendance guards public check-in submissions.
	PresetAttendance = Policy{Name: "attendance", MaxAttempts: 3, Window: 5 * time.Minute, BlockDuration: 10 * time.Minute}
	// PresetTokenGeneration guards attendance link generation.
	PresetTokenGeneration = Policy{Name: "token_generation", MaxAttempts: 10, Window: time.Minute, BlockDuration: 5 * time.Minute}
	// PresetSite is the per-IP limit applied to every public route.
	PresetSite = Policy{Name: "site", MaxAttempts: 60, Window: time.Minute, BlockDuration: 5 * time.Minute}
)

// ErrInvalidPolicy is returned by Validate for non-positive limits.
var ErrInvalidPolicy = errors.New("ratelimit: max attempts, window and block duration must be positive")

// Validate reports whether every limit is positive.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 || p.Window <= 0 || p.BlockDuration <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// AttemptRecord is the per-key state kept by a Store.
type AttemptRecord struct {
	Count        int        `json:"count"`
	FirstAttempt time.Time  `json:"firstAttempt"`
	BlockedUntil *time.Time `json:"blockedUntil,omitempty"`
}

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed bool
	// Remaining is how long the key stays blocked; zero when allowed.
	Remaining time.Duration
	// AttemptsLeft is only meaningful when Allowed.
	AttemptsLeft int
}
