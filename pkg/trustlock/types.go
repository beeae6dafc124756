package trustlock

import (
	"errors"
	"time"
)

// ErrUnlockQuotaExceeded is returned when a manual unlock is requested after
// the daily quota for the current UTC date is already consumed.
var ErrUnlockQuotaExceeded = errors.New("manual unlock quota exceeded for today")

// ErrNotLocked is returned when an unlock is requested while the lock is not
// engaged.
var ErrNotLocked = errors.New("trust lock is not engaged")

// ErrOverrideDisabled is returned when an emergency override is requested
// but no override credential is configured.
var ErrOverrideDisabled = errors.New("emergency override is not configured")

// State is the mutable trust-lock singleton. It is created lazily on the
// first breach, persists across ticks, and is only ever transitioned, never
// deleted.
type State struct {
	// Locked reports whether the lock is currently engaged.
	Locked bool `json:"locked"`

	// Reason is the breaching reason, present iff Locked.
	Reason string `json:"reason,omitempty"`

	// LockedAt is the UTC time the lock engaged.
	LockedAt time.Time `json:"locked_at,omitempty"`

	// AutoUnlockEligibleAt is LockedAt plus the lock window.
	AutoUnlockEligibleAt time.Time `json:"auto_unlock_eligible_at,omitempty"`

	// ManualUnlocksToday counts manual unlocks consumed on the current
	// UTC date.
	ManualUnlocksToday int `json:"manual_unlocks_today"`

	// ManualUnlocksLastReset is the UTC date (2006-01-02) the counter was
	// last reset.
	ManualUnlocksLastReset string `json:"manual_unlocks_last_reset,omitempty"`
}

// resetQuotaIfNewDay zeroes the daily counter when the UTC date has changed
// since the last reset. The counter resets exactly once per date change no
// matter how many ticks run within the day.
func (s *State) resetQuotaIfNewDay(now time.Time) bool {
	today := now.UTC().Format(time.DateOnly)
	if s.ManualUnlocksLastReset == today {
		return false
	}
	s.ManualUnlocksToday = 0
	s.ManualUnlocksLastReset = today
	return true
}
