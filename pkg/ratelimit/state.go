// Package ratelimit implements the marketplace rate-limit cooldown guard.
// The gateway signals rate limiting with HTTP 429 or a call-limited error
// envelope; after such a signal the guard blocks outbound calls for an
// exponentially growing cooldown window so the account is not banned for
// hammering a throttled API.
package ratelimit

import (
	"time"
)

// RedisKeyCooldown is where the active cooldown window is mirrored so that
// replicas sharing one app key back off together.
const RedisKeyCooldown = "affiliate:rate_limit:cooldown"

// Cooldown defaults.
const (
	// DefaultInitialCooldown is the window started by the first trip.
	DefaultInitialCooldown = 5 * time.Second

	// DefaultMaxCooldown caps the exponential growth of consecutive trips.
	DefaultMaxCooldown = 5 * time.Minute
)

// CooldownState is the shared view of an active cooldown window.
type CooldownState struct {
	// TrippedAt is when the remote last rate-limited us.
	TrippedAt time.Time `json:"tripped_at"`

	// Until is when outbound calls may resume.
	Until time.Time `json:"until"`

	// Consecutive counts trips without an intervening successful call.
	// Drives the exponential cooldown growth; process-local semantics.
	Consecutive int `json:"consecutive"`
}

// Active returns true while the cooldown window is still open.
func (s CooldownState) Active(now time.Time) bool {
	return now.Before(s.Until)
}

// Remaining returns the time left in the cooldown window.
// Returns 0 once the window has passed.
func (s CooldownState) Remaining(now time.Time) time.Duration {
	d := s.Until.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
