package user_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeehubnepal/api/assets"
	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
	emailsvc "github.com/coffeehubnepal/api/services/email"
	inmemdb "github.com/coffeehubnepal/api/storage/database/inmem"
	testutil "github.com/coffeehubnepal/api/tests"
)

const pwd = "Str0ngPass"

type verifierStub struct {
	verified map[string]bool
	links    map[string]string // token: email
	cleaned  []string
}

func (v *verifierStub) HasVerified(_ context.Context, email string) (bool, error) {
	return v.verified[email], nil
}

func (v *verifierStub) Check(_ context.Context, token string) (string, error) {
	if email, ok := v.links[token]; ok {
		return email, nil
	}
	return "", core.NewAppError(core.KindInvalid, "INVALID_TOKEN", "invalid")
}

func (v *verifierStub) Cleanup(_ context.Context, email string) error {
	v.cleaned = append(v.cleaned, email)
	return nil
}

type fixture struct {
	svc      *user.Service
	repo     user.Repository
	verifier *verifierStub
}

func setup(t *testing.T) fixture {
	t.Helper()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(assets.Templates(), logger)
	emailsvc.ResetSentMessages()

	conf := core.NewTestConfig()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	verifier := &verifierStub{verified: map[string]bool{}, links: map[string]string{}}
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	return fixture{
		svc:      user.NewService(repo, verifier, verifier, mailSvc, conf, logger),
		repo:     repo,
		verifier: verifier,
	}
}

func errCode(err error) string {
	if ae, ok := core.AsAppError(err); ok {
		return ae.Code
	}
	return ""
}

func TestService_Signup(t *testing.T) {
	ctx := context.Background()

	tcs := []struct {
		name     string
		nu       user.NewUser
		prepare  func(fx fixture)
		wantCode string
	}{
		{
			name:     "email not verified",
			nu:       user.NewUser{Email: "new@test.com", Password: pwd},
			wantCode: "OTP_NOT_VERIFIED",
		},
		{
			name:     "weak password",
			nu:       user.NewUser{Email: "new@test.com", Password: "password"},
			wantCode: "WEAK_PASSWORD",
		},
		{
			name: "email in use",
			nu:   user.NewUser{Email: "Taken@Test.com", Password: pwd},
			prepare: func(fx fixture) {
				testutil.CreateUser(t, fx.repo, "Taken", "taken@test.com", pwd)
			},
			wantCode: "EMAIL_IN_USE",
		},
		{
			name: "link for another email",
			nu:   user.NewUser{Email: "new@test.com", Password: pwd, VerificationToken: "tok"},
			prepare: func(fx fixture) {
				fx.verifier.links["tok"] = "other@test.com"
			},
			wantCode: "OTP_NOT_VERIFIED",
		},
		{
			name: "verified otp",
			nu:   user.NewUser{Email: " New@Test.com", Password: pwd},
			prepare: func(fx fixture) {
				fx.verifier.verified["new@test.com"] = true
			},
		},
		{
			name: "verification link",
			nu:   user.NewUser{Email: "new@test.com", Password: pwd, Name: "Sita", Role: user.RoleRoaster, VerificationToken: "tok"},
			prepare: func(fx fixture) {
				fx.verifier.links["tok"] = "new@test.com"
			},
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			fx := setup(t)
			if tc.prepare != nil {
				tc.prepare(fx)
			}

			usr, err := fx.svc.Signup(ctx, tc.nu)
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, errCode(err), "err: %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "new@test.com", usr.Email)
			assert.NotEmpty(t, usr.ID)
			assert.NoError(t, usr.CheckPassword(pwd))
			assert.Equal(t, []string{"new@test.com", "new@test.com"}, fx.verifier.cleaned)
			if tc.nu.Role == "" {
				assert.Equal(t, user.RoleFarmer, usr.Role)
				assert.Equal(t, "new", usr.Name)
			} else {
				assert.Equal(t, tc.nu.Role, usr.Role)
				assert.Equal(t, tc.nu.Name, usr.Name)
			}
		})
	}
}

func TestService_Login_Lockout(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	usr := testutil.CreateUser(t, fx.repo, "Hari", "hari@test.com", pwd)

	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time { return now }
	defer func() { user.NowFunc = time.Now }()

	_, err := fx.svc.Login(ctx, "nobody@test.com", pwd)
	assert.Equal(t, "INVALID_CREDENTIALS", errCode(err))

	for i := 1; i < 5; i++ {
		_, err = fx.svc.Login(ctx, usr.Email, "Wrong1234")
		assert.Equal(t, "INVALID_CREDENTIALS", errCode(err), "attempt %d", i)
	}
	_, err = fx.svc.Login(ctx, usr.Email, "Wrong1234")
	require.Equal(t, "ACCOUNT_LOCKED", errCode(err))
	ae, _ := core.AsAppError(err)
	assert.Equal(t, (15 * time.Minute).Milliseconds(), ae.Data["unlocksInMs"])

	// the right password does not help while locked
	now = now.Add(5 * time.Minute)
	_, err = fx.svc.Login(ctx, usr.Email, pwd)
	assert.Equal(t, "ACCOUNT_LOCKED", errCode(err))

	now = now.Add(11 * time.Minute)
	got, err := fx.svc.Login(ctx, " HARI@test.com ", pwd)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.Equal(t, now, *got.LastLogin)
	assert.Zero(t, got.FailedLoginAttempts)
	assert.Nil(t, got.LockUntil)
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	usr := testutil.CreateUser(t, fx.repo, "Gita", "gita@test.com", pwd)

	require.NoError(t, fx.svc.RequestPasswordReset(ctx, "unknown@test.com"))
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent, "unknown addresses get no mail")

	require.NoError(t, fx.svc.RequestPasswordReset(ctx, "gita@test.com"))
	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent)
	link := msg.TemplateData.(map[string]interface{})["Link"].(string)
	assert.True(t, strings.HasPrefix(link, "http://localhost:5173/reset-password?token="))
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")

	_, err = fx.svc.ResetPassword(ctx, "garbage", "N3wPassword")
	assert.Equal(t, "INVALID_TOKEN", errCode(err))

	_, err = fx.svc.ResetPassword(ctx, token, "weak")
	assert.Equal(t, "WEAK_PASSWORD", errCode(err))

	got, err := fx.svc.ResetPassword(ctx, token, "N3wPassword")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.NoError(t, got.CheckPassword("N3wPassword"))

	// the token dies with the old password
	_, err = fx.svc.ResetPassword(ctx, token, "An0therPass")
	assert.Equal(t, "INVALID_TOKEN", errCode(err))
}

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	plain := testutil.CreateUser(t, fx.repo, "Ram", "ram@test.com", pwd)
	verified := testutil.CreateUser(t, fx.repo, "Shyam", "shyam@test.com", pwd, testutil.Verified())
	mod := testutil.CreateUser(t, fx.repo, "Mod", "mod@test.com", pwd, testutil.Verified(), testutil.WithRole(user.RoleModerator))

	got, err := fx.svc.UpdateProfile(ctx, plain.ID, user.UpdateProfile{
		Name:     core.StringPtr("Ram <b>Bahadur</b>"),
		Location: core.StringPtr("Kaski"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ram Bahadur", got.Name)
	assert.Equal(t, "Kaski", got.Location)

	_, err = fx.svc.UpdateProfile(ctx, verified.ID, user.UpdateProfile{Name: core.StringPtr("Other")})
	assert.Equal(t, "NAME_UPDATE_RESTRICTED", errCode(err))

	// same name and other fields are fine
	got, err = fx.svc.UpdateProfile(ctx, verified.ID, user.UpdateProfile{Name: core.StringPtr("Shyam"), Phone: core.StringPtr("9800000000")})
	require.NoError(t, err)
	assert.Equal(t, "9800000000", got.Phone)

	_, err = fx.svc.UpdateProfile(ctx, mod.ID, user.UpdateProfile{Name: core.StringPtr("Moderator")})
	assert.NoError(t, err)

	_, err = fx.svc.UpdateProfile(ctx, plain.ID, user.UpdateProfile{Avatar: core.StringPtr(strings.Repeat("a", 550001))})
	assert.Equal(t, "AVATAR_TOO_LARGE", errCode(err))

	_, err = fx.svc.UpdateProfile(ctx, "nope", user.UpdateProfile{})
	assert.ErrorIs(t, err, core.ErrInvalidID)
}

func TestService_Moderation(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	admin := testutil.CreateUser(t, fx.repo, "Admin", "admin@test.com", pwd, testutil.Verified(), testutil.WithRole(user.RoleAdmin))
	mod := testutil.CreateUser(t, fx.repo, "Mod", "mod@test.com", pwd, testutil.Verified(), testutil.WithRole(user.RoleModerator))
	mod2 := testutil.CreateUser(t, fx.repo, "Mod2", "mod2@test.com", pwd, testutil.Verified(), testutil.WithRole(user.RoleModerator))
	farmer := testutil.CreateUser(t, fx.repo, "Farmer", "farmer@test.com", pwd)

	t.Run("role changes", func(t *testing.T) {
		_, err := fx.svc.UpdateRole(ctx, farmer, mod.ID, user.RoleTrader)
		assert.ErrorIs(t, err, core.ErrPermissionDenied)

		_, err = fx.svc.UpdateRole(ctx, mod, mod2.ID, user.RoleTrader)
		assert.Equal(t, "PERMISSION_DENIED", errCode(err))

		_, err = fx.svc.UpdateRole(ctx, mod, farmer.ID, user.RoleAdmin)
		assert.Equal(t, "PERMISSION_DENIED", errCode(err))

		_, err = fx.svc.RejectRoleChange(ctx, mod, farmer.ID)
		assert.Equal(t, "NO_PENDING_REQUEST", errCode(err))

		_, err = fx.svc.RequestRoleChange(ctx, farmer.ID, user.RoleChangeRequest{Role: user.RoleFarmer})
		assert.Equal(t, "SAME_ROLE", errCode(err))

		got, err := fx.svc.RequestRoleChange(ctx, farmer.ID, user.RoleChangeRequest{Role: user.RoleExporter, Reason: "I export"})
		require.NoError(t, err)
		assert.Equal(t, user.StatusPending, got.RoleChangeStatus)

		pending, info, err := fx.svc.PendingRoleChanges(ctx, core.Pagination{Page: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, farmer.ID, pending[0].ID)
		assert.EqualValues(t, 1, info.Total)

		got, err = fx.svc.UpdateRole(ctx, mod, farmer.ID, user.RoleExporter)
		require.NoError(t, err)
		assert.Equal(t, user.RoleExporter, got.Role)
		assert.Equal(t, user.StatusApproved, got.RoleChangeStatus)

		got, err = fx.svc.UpdateRole(ctx, admin, mod2.ID, user.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, got.Role)
	})

	t.Run("verification", func(t *testing.T) {
		_, err := fx.svc.RequestVerification(ctx, admin.ID, user.VerificationRequest{Documents: []string{"doc"}})
		assert.Equal(t, "ALREADY_VERIFIED", errCode(err))

		got, err := fx.svc.RequestVerification(ctx, farmer.ID, user.VerificationRequest{Documents: []string{" https://docs/1.pdf "}})
		require.NoError(t, err)
		assert.Equal(t, user.StatusPending, got.VerificationStatus)
		assert.Equal(t, []string{"https://docs/1.pdf"}, got.VerificationDocuments)

		got, err = fx.svc.RejectVerification(ctx, mod, farmer.ID, "blurry <i>scan</i>")
		require.NoError(t, err)
		assert.Equal(t, user.StatusRejected, got.VerificationStatus)
		assert.Equal(t, "blurry scan", got.RejectionReason)

		got, err = fx.svc.Verify(ctx, mod, farmer.ID)
		require.NoError(t, err)
		assert.True(t, got.Verified)
		assert.Equal(t, mod.ID, got.VerifiedBy)

		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		assert.Equal(t, "verification_result", msg.TemplateName)
	})

	t.Run("delete", func(t *testing.T) {
		err := fx.svc.Delete(ctx, mod, farmer.ID)
		assert.Equal(t, "PERMISSION_DENIED", errCode(err))

		err = fx.svc.Delete(ctx, admin, admin.ID)
		assert.Equal(t, "CANNOT_DELETE_SELF", errCode(err))

		err = fx.svc.Delete(ctx, admin, mod2.ID) // promoted above
		assert.Equal(t, "CANNOT_DELETE_ADMIN", errCode(err))

		require.NoError(t, fx.svc.Delete(ctx, admin, farmer.ID))
		_, err = fx.svc.GetByID(ctx, farmer.ID)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	old := time.Now().Add(-60 * 24 * time.Hour)
	testutil.CreateUser(t, fx.repo, "A", "a@test.com", pwd, testutil.WithRole(user.RoleAdmin), testutil.Verified(), testutil.CreatedAt(old))
	testutil.CreateUser(t, fx.repo, "B", "b@test.com", pwd, testutil.Verified())
	testutil.CreateUser(t, fx.repo, "C", "c@test.com", pwd, testutil.WithRole(user.RoleTrader))
	testutil.CreateUser(t, fx.repo, "D", "d@test.com", pwd)

	stats, err := fx.svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalUsers)
	assert.EqualValues(t, 2, stats.VerifiedUsers)
	assert.EqualValues(t, 2, stats.UnverifiedUsers)
	assert.EqualValues(t, 3, stats.NewUsersLast30Days)
	assert.EqualValues(t, 2, stats.UsersByRole[user.RoleFarmer])
	assert.EqualValues(t, 1, stats.UsersByRole[user.RoleTrader])
	assert.EqualValues(t, 1, stats.UsersByRole[user.RoleAdmin])
	assert.EqualValues(t, 0, stats.UsersByRole[user.RoleExpert])
}

func TestService_CreateStaff(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	_, err := fx.svc.CreateStaff(ctx, "root@test.com", "", user.RoleFarmer, pwd)
	assert.Error(t, err)

	usr, err := fx.svc.CreateStaff(ctx, " Root@Test.com", "", user.RoleAdmin, pwd)
	require.NoError(t, err)
	assert.Equal(t, "root@test.com", usr.Email)
	assert.Equal(t, "Admin", usr.Name)
	assert.True(t, usr.Verified)

	_, err = fx.svc.CreateStaff(ctx, "root@test.com", "", user.RoleAdmin, pwd)
	assert.ErrorIs(t, err, user.ErrEmailInUse)
}
