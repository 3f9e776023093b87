package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegisterFailedLogin(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	window := 15 * time.Minute

	t.Run("locks at threshold", func(t *testing.T) {
		var usr User
		for i := 1; i < 5; i++ {
			locked := usr.RegisterFailedLogin(now.Add(time.Duration(i)*time.Second), 5, window)
			assert.False(t, locked)
			assert.Equal(t, i, usr.FailedLoginAttempts)
		}
		at := now.Add(5 * time.Second)
		assert.True(t, usr.RegisterFailedLogin(at, 5, window))
		assert.True(t, usr.IsLocked(at))
		assert.Equal(t, window, usr.UnlocksIn(at))
		assert.Equal(t, 0, usr.FailedLoginAttempts)

		assert.False(t, usr.IsLocked(at.Add(window)))
		assert.Equal(t, time.Duration(0), usr.UnlocksIn(at.Add(window)))
	})

	t.Run("window restarts after expiry", func(t *testing.T) {
		var usr User
		for i := 0; i < 4; i++ {
			usr.RegisterFailedLogin(now, 5, window)
		}
		locked := usr.RegisterFailedLogin(now.Add(window+time.Second), 5, window)
		assert.False(t, locked)
		assert.Equal(t, 1, usr.FailedLoginAttempts)
		assert.False(t, usr.IsLocked(now.Add(window+time.Second)))
	})

	t.Run("reset", func(t *testing.T) {
		var usr User
		for i := 0; i < 5; i++ {
			usr.RegisterFailedLogin(now, 5, window)
		}
		assert.True(t, usr.IsLocked(now))
		usr.ResetLockout()
		assert.False(t, usr.IsLocked(now))
		assert.Nil(t, usr.FirstFailedLoginAt)
		assert.Equal(t, 0, usr.FailedLoginAttempts)
	})
}
