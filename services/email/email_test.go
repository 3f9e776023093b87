package emailsvc

import (
	"context"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeehubnepal/api/assets"
	"github.com/coffeehubnepal/api/core"
	testutil "github.com/coffeehubnepal/api/tests"
)

func TestSMTPService_Send(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Email.SMTPHost = "smtp.test"
	conf.Email.SMTPPort = 587
	conf.Email.SMTPUser = "user"
	conf.Email.SMTPPass = "pass"
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(assets.Templates(), logger)

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	sendMailFunc = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}
	defer func() { sendMailFunc = smtp.SendMail }()

	svc := NewSMTPService(conf, logger)
	err := svc.Send(context.Background(), &core.EmailMessage{
		To:           []mail.Address{{Address: "farmer@test.com"}},
		Bcc:          []mail.Address{{Address: "audit@test.com"}},
		Subject:      "Your verification code",
		TemplateName: "signup_otp",
		TemplateData: map[string]interface{}{"Code": "123456", "ExpiresInMinutes": 10},
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.test:587", gotAddr)
	assert.Equal(t, []string{"farmer@test.com", "audit@test.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [CoffeeHubNepal] Your verification code")
	assert.Contains(t, gotMsg, "123456")
	assert.Contains(t, gotMsg, "text/html")
	assert.False(t, strings.Contains(gotMsg, "audit@test.com"), "bcc must not leak into headers")
}

func TestSMTPService_NotConfigured(t *testing.T) {
	svc := NewSMTPService(core.NewTestConfig(), testutil.NewLogger())
	err := svc.Send(context.Background(), &core.EmailMessage{
		To:      []mail.Address{{Address: "farmer@test.com"}},
		BodyStr: "hello",
	})
	assert.Equal(t, errSMTPNotConfigured, err)
}

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(assets.Templates(), logger)
	ResetSentMessages()

	svc := NewConsoleServiceMock(conf, logger)
	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: "Ram", Address: "ram@test.com"}},
		Subject:      "Reset your password",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "Ram", "Link": "http://x/reset", "ExpiresInHours": 1},
	})

	msg, ok := LastSentMessage()
	require.True(t, ok)
	assert.Contains(t, msg.TextContent, "http://x/reset")
	assert.Contains(t, msg.HTMLContent, "http://x/reset")

	svc.Fail(true)
	err := svc.Send(context.Background(), &core.EmailMessage{To: msg.To, BodyStr: "x"})
	assert.Error(t, err)

	err = NewConsoleServiceMock(conf, logger).Send(context.Background(), &core.EmailMessage{BodyStr: "x"})
	assert.Equal(t, errNoRecipients, err)
}
