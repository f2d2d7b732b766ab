// Package throttle tracks invalid command attempts and the global command cooldown.
//
// The tracker is channel-wide, not per user. It is not safe for concurrent use; the
// engine serializes calls.
package throttle

import "time"

const (
	// InvalidWindow is how long an invalid attempt counts towards the strike limit.
	InvalidWindow = 10 * time.Second
	// StrikeLimit is the number of invalid attempts that triggers the stronger notice.
	StrikeLimit = 3
)

// Tracker holds throttle state.
type Tracker struct {
	cooldown time.Duration
	now      func() time.Time

	invalidCount int
	lastInvalid  time.Time
	lastAccepted time.Time
}

// New returns a Tracker with the given cooldown between accepted commands. A zero
// cooldown disables the gate.
func New(cooldown time.Duration) *Tracker {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Tracker{cooldown: cooldown, now: time.Now}
}

// SetClock replaces the time source. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// RecordInvalid counts one invalid attempt and reports whether it reached the strike
// limit. The count starts over when more than InvalidWindow has passed since the
// previous invalid attempt, and after a strike.
func (t *Tracker) RecordInvalid() (strike bool) {
	now := t.now()
	if !t.lastInvalid.IsZero() && now.Sub(t.lastInvalid) > InvalidWindow {
		t.invalidCount = 0
	}
	t.invalidCount++
	t.lastInvalid = now
	if t.invalidCount >= StrikeLimit {
		t.invalidCount = 0
		return true
	}
	return false
}

// RecordAccepted clears the invalid count and starts the cooldown.
func (t *Tracker) RecordAccepted() {
	t.invalidCount = 0
	t.lastAccepted = t.now()
}

// InCooldown reports whether a new command would arrive inside the cooldown.
func (t *Tracker) InCooldown() bool {
	if t.cooldown == 0 || t.lastAccepted.IsZero() {
		return false
	}
	return t.now().Sub(t.lastAccepted) < t.cooldown
}

// Remaining returns how much of the cooldown is left.
func (t *Tracker) Remaining() time.Duration {
	if !t.InCooldown() {
		return 0
	}
	return t.cooldown - t.now().Sub(t.lastAccepted)
}

// InvalidCount returns the current invalid-attempt count.
func (t *Tracker) InvalidCount() int { return t.invalidCount }
