package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeehubnepal/api/assets"
	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/otp"
	emailsvc "github.com/coffeehubnepal/api/services/email"
	inmemdb "github.com/coffeehubnepal/api/storage/database/inmem"
	testutil "github.com/coffeehubnepal/api/tests"
)

type fixture struct {
	svc     *otp.Service
	mailSvc interface{ Fail(bool) }
	now     *time.Time
}

func setup(t *testing.T) fixture {
	t.Helper()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(assets.Templates(), logger)
	emailsvc.ResetSentMessages()

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	testutil.CreateUser(t, usrRepo, "Existing", "taken@test.com", "Secret123")

	mailSvc := emailsvc.NewConsoleServiceMock(core.NewTestConfig(), logger)
	now := time.Date(2024, time.May, 10, 8, 0, 0, 0, time.UTC)
	otp.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { otp.NowFunc = time.Now })

	return fixture{
		svc:     otp.NewService(inmemdb.NewOTPRepository(db), usrRepo, mailSvc, logger),
		mailSvc: mailSvc,
		now:     &now,
	}
}

func sentCode(t *testing.T) string {
	t.Helper()
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no email sent")
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	return data["Code"].(string)
}

func appErr(t *testing.T, err error) *core.AppError {
	t.Helper()
	ae, ok := core.AsAppError(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	return ae
}

func TestService_Send(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	res, err := fx.svc.Send(ctx, "  Farmer@Test.com ")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 600, res.ExpiresIn)
	assert.Len(t, sentCode(t), 6)

	// cooldown
	*fx.now = fx.now.Add(20 * time.Second)
	_, err = fx.svc.Resend(ctx, "farmer@test.com")
	assert.ErrorIs(t, err, otp.ErrTooManyRequests)
	assert.Equal(t, 40, appErr(t, err).Data["waitTime"])

	*fx.now = fx.now.Add(41 * time.Second)
	_, err = fx.svc.Resend(ctx, "farmer@test.com")
	assert.NoError(t, err)

	_, err = fx.svc.Send(ctx, "taken@test.com")
	assert.Equal(t, "EMAIL_IN_USE", appErr(t, err).Code)
}

func TestService_Send_MailFailure(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	fx.mailSvc.Fail(true)

	_, err := fx.svc.Send(ctx, "farmer@test.com")
	assert.ErrorIs(t, err, otp.ErrSendFailed)

	// the unsent code was dropped, so no cooldown applies either
	_, err = fx.svc.Verify(ctx, "farmer@test.com", "123456")
	assert.ErrorIs(t, err, otp.ErrNotFound)

	fx.mailSvc.Fail(false)
	_, err = fx.svc.Send(ctx, "farmer@test.com")
	assert.NoError(t, err)
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()
	email := "farmer@test.com"

	t.Run("valid code", func(t *testing.T) {
		fx := setup(t)
		_, err := fx.svc.Send(ctx, email)
		require.NoError(t, err)

		ok, err := fx.svc.HasVerified(ctx, email)
		require.NoError(t, err)
		assert.False(t, ok)

		res, err := fx.svc.Verify(ctx, email, sentCode(t))
		require.NoError(t, err)
		assert.True(t, res.Success)

		ok, err = fx.svc.HasVerified(ctx, email)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, fx.svc.Cleanup(ctx, email))
		ok, _ = fx.svc.HasVerified(ctx, email)
		assert.False(t, ok)
	})

	t.Run("wrong codes until max attempts", func(t *testing.T) {
		fx := setup(t)
		_, err := fx.svc.Send(ctx, email)
		require.NoError(t, err)
		wrong := "000000"
		if sentCode(t) == wrong {
			wrong = "111111"
		}

		for remaining := otp.MaxAttempts - 1; remaining > 0; remaining-- {
			_, err = fx.svc.Verify(ctx, email, wrong)
			assert.ErrorIs(t, err, otp.ErrInvalidCode)
			assert.Equal(t, remaining, appErr(t, err).Data["remainingAttempts"])
		}
		_, err = fx.svc.Verify(ctx, email, wrong)
		assert.ErrorIs(t, err, otp.ErrMaxAttempts)

		// the record is gone
		_, err = fx.svc.Verify(ctx, email, sentCode(t))
		assert.ErrorIs(t, err, otp.ErrNotFound)
	})

	t.Run("expired code", func(t *testing.T) {
		fx := setup(t)
		_, err := fx.svc.Send(ctx, email)
		require.NoError(t, err)

		*fx.now = fx.now.Add(otp.Expiry + time.Second)
		_, err = fx.svc.Verify(ctx, email, sentCode(t))
		assert.ErrorIs(t, err, otp.ErrExpired)
	})

	t.Run("no code", func(t *testing.T) {
		fx := setup(t)
		_, err := fx.svc.Verify(ctx, "nobody@test.com", "123456")
		assert.ErrorIs(t, err, otp.ErrNotFound)
	})
}
