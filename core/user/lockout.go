package user

import "time"

// IsLocked reports whether logins are refused at `now`.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// UnlocksIn returns the time left before the lock expires.
func (u *User) UnlocksIn(now time.Time) time.Duration {
	if !u.IsLocked(now) {
		return 0
	}
	return u.LockUntil.Sub(now)
}

// RegisterFailedLogin counts a failed attempt within a sliding `window` started by the first failure.
// Reaching `threshold` locks the account for `window` and returns true.
func (u *User) RegisterFailedLogin(now time.Time, threshold int, window time.Duration) bool {
	if u.FirstFailedLoginAt == nil || now.Sub(*u.FirstFailedLoginAt) > window {
		first := now
		u.FirstFailedLoginAt = &first
		u.FailedLoginAttempts = 0
	}
	u.FailedLoginAttempts++

	if threshold > 0 && u.FailedLoginAttempts >= threshold {
		until := now.Add(window)
		u.LockUntil = &until
		u.FailedLoginAttempts = 0
		u.FirstFailedLoginAt = nil
		return true
	}
	return false
}

// ResetLockout clears every failed login counter.
func (u *User) ResetLockout() {
	u.FailedLoginAttempts = 0
	u.FirstFailedLoginAt = nil
	u.LockUntil = nil
}
