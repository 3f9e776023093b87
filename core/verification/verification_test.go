package verification_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeehubnepal/api/assets"
	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/verification"
	emailsvc "github.com/coffeehubnepal/api/services/email"
	inmemdb "github.com/coffeehubnepal/api/storage/database/inmem"
	testutil "github.com/coffeehubnepal/api/tests"
)

func newService(t *testing.T, conf *core.Config) *verification.Service {
	t.Helper()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(assets.Templates(), logger)
	emailsvc.ResetSentMessages()
	repo := inmemdb.NewTokenRepository(inmemdb.Open())
	return verification.NewService(repo, emailsvc.NewConsoleServiceMock(conf, logger), conf, logger)
}

func sentToken(t *testing.T) (link string, token string) {
	t.Helper()
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no email sent")
	link = msg.TemplateData.(map[string]interface{})["Link"].(string)
	u, err := url.Parse(link)
	require.NoError(t, err)
	return link, u.Query().Get("token")
}

func TestService_RequestAndValidate(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	conf.ClientOrigin = "coffeehubnepal.com"
	svc := newService(t, conf)

	res, err := svc.Request(ctx, "Roaster@Test.com")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1800, res.ExpiresIn)

	link, token := sentToken(t)
	assert.Contains(t, link, "https://coffeehubnepal.com/complete-signup?token=")
	assert.Len(t, token, 64)

	ok, err := svc.HasValid(ctx, "roaster@test.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Validate(ctx, "not-the-token")
	assert.ErrorIs(t, err, verification.ErrInvalidToken)

	// checking leaves the token usable
	email, err := svc.Check(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "roaster@test.com", email)

	email, err = svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "roaster@test.com", email)

	// single use
	_, err = svc.Validate(ctx, token)
	assert.ErrorIs(t, err, verification.ErrInvalidToken)

	ok, _ = svc.HasValid(ctx, "roaster@test.com")
	assert.False(t, ok)
}

func TestService_Validate_Expired(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, core.NewTestConfig())

	start := time.Now()
	verification.NowFunc = func() time.Time { return start }
	defer func() { verification.NowFunc = time.Now }()

	_, err := svc.Request(ctx, "trader@test.com")
	require.NoError(t, err)
	_, token := sentToken(t)

	verification.NowFunc = func() time.Time { return start.Add(verification.Expiry + time.Minute) }
	_, err = svc.Validate(ctx, token)
	assert.ErrorIs(t, err, verification.ErrInvalidToken)
}

func TestService_Request_Cooldown(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	conf.Env = "PROD"
	svc := newService(t, conf)

	_, err := svc.Request(ctx, "expert@test.com")
	require.NoError(t, err)

	_, err = svc.Request(ctx, "expert@test.com")
	assert.ErrorIs(t, err, verification.ErrTooManyRequests)

	// other addresses are not affected
	_, err = svc.Request(ctx, "other@test.com")
	assert.NoError(t, err)
}
