package emailsvc

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
)

var errSMTPNotConfigured = errors.New("smtp not configured")

// sendMailFunc is mockable.
var sendMailFunc = smtp.SendMail

type smtpService struct {
	addr       string
	auth       smtp.Auth
	appName    string
	from       mail.Address
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config, logger core.Logger) core.EmailService {
	ec := conf.Email
	svc := &smtpService{
		appName:    conf.AppName,
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
	if ec.SMTPHost != "" {
		svc.addr = ec.SMTPHost + ":" + strconv.Itoa(ec.SMTPPort)
		if ec.SMTPUser != "" {
			svc.auth = smtp.PlainAuth("", ec.SMTPUser, ec.SMTPPass, ec.SMTPHost)
		}
	}
	return svc
}

// New returns the EmailService selected by conf.Email.Backend (console by default).
func New(conf *core.Config, logger core.Logger) core.EmailService {
	switch conf.Email.Backend {
	case "smtp":
		return NewSMTPService(conf, logger)
	case "sendgrid":
		return NewSendgridService(conf, logger)
	default:
		return NewConsoleService(conf, logger)
	}
}

func (svc smtpService) Send(_ context.Context, msg *core.EmailMessage) error {
	if svc.addr == "" {
		return errSMTPNotConfigured
	}
	if err := msg.Render(svc.appName); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() {
		return errNoRecipients
	}
	if !msg.HasContent() {
		return nil
	}
	if err := sendMailFunc(svc.addr, svc.auth, svc.from.Address, msg.Recipients(), svc.build(*msg)); err != nil {
		return errors.Wrap(err, "sending email")
	}
	return nil
}

func (svc smtpService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.Send(context.Background(), msg); err != nil {
				svc.logger.Error(fmt.Sprintf("emailsvc.smtp: %v", err), err)
			}
		}()
	}
}

// build writes a multipart/alternative message; Bcc recipients stay out of the headers.
func (svc smtpService) build(msg core.EmailMessage) []byte {
	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "Cc: %s\r\n", joinAddresses(msg.Cc))
	}
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")

	altW := multipart.NewWriter(body)
	_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())
	if w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}}); err == nil {
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)
	}
	if msg.HTMLContent != "" {
		if w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}}); err == nil {
			_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
		}
	}
	_ = altW.Close()
	return []byte(body.String())
}
