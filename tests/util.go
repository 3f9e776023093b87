package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
	logsvc "github.com/coffeehubnepal/api/services/logger"
)

// NewLogger returns a Logger that discards everything and never reports to Rollbar.
func NewLogger() *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(zap.NewNop(), core.NewTestConfig())
}

type UserOpt func(*user.User)

func WithRole(role string) UserOpt {
	return func(u *user.User) { u.Role = role }
}

func Verified() UserOpt {
	return func(u *user.User) {
		u.Verified = true
		u.VerificationStatus = user.StatusVerified
	}
}

func CreatedAt(ts time.Time) UserOpt {
	return func(u *user.User) {
		u.CreatedAt = ts.UTC()
		u.UpdatedAt = ts.UTC()
	}
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, opts ...UserOpt) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	usr := user.User{
		Name:               name,
		Email:              email,
		Role:               user.RoleFarmer,
		VerificationStatus: user.StatusNone,
		RoleChangeStatus:   user.StatusNone,
		CreatedAt:          tstamp,
		UpdatedAt:          tstamp,
	}
	for _, opt := range opts {
		opt(&usr)
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}
