package auth

import "fmt"

// Security constants. Fixed values, shared with every deployed client; not
// configurable.
const (
	MaxLoginAttempts = 5
	LockDuration     = 10 * 60 * 1000       // ms
	SessionTTL       = 24 * 60 * 60 * 1000  // ms
	ResetTokenTTL    = 60 * 60 * 1000       // ms
)

// LockState is the outcome of a lock check on one account.
type LockState struct {
	Locked          bool
	RemainingMillis int64
	// CounterReset reports that an expired lock was cleared in memory. The
	// storage write for the reset rides on the outcome write of the attempt
	// that follows, so each login attempt still persists exactly once.
	CounterReset bool
}

// CheckLock decides whether an account may attempt a password check at the
// given time. A lock is never stored explicitly: it is derived from the
// failure counter and the last failure timestamp, and cleared lazily here
// once LockDuration has elapsed.
func CheckLock(user *User, now int64) LockState {
	if user.FailedAttempts < MaxLoginAttempts {
		return LockState{}
	}

	elapsed := now - user.LastFailedAt
	if elapsed < LockDuration {
		return LockState{Locked: true, RemainingMillis: LockDuration - elapsed}
	}

	user.FailedAttempts = 0
	return LockState{CounterReset: true}
}

// FormatRemaining renders a remaining lock time as minutes and seconds for
// user-facing messages.
func FormatRemaining(remainingMillis int64) string {
	minutes := remainingMillis / (60 * 1000)
	seconds := (remainingMillis % (60 * 1000)) / 1000
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
