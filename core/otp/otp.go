package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net/mail"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

const (
	PurposeSignup = "signup"

	codeMin        = 100000
	codeMax        = 999999
	Expiry         = 10 * time.Minute
	MaxAttempts    = 5
	ResendCooldown = 60 * time.Second
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound        = core.NewAppError(core.KindNotFound, "OTP_NOT_FOUND", "No verification code found. Please request a new one.")
	ErrExpired         = core.NewAppError(core.KindInvalid, "OTP_EXPIRED", "Verification code has expired. Please request a new one.")
	ErrMaxAttempts     = core.NewAppError(core.KindTooManyRequests, "MAX_ATTEMPTS_EXCEEDED", "Too many incorrect attempts. Please request a new verification code.")
	ErrInvalidCode     = core.NewAppError(core.KindInvalid, "INVALID_OTP", "Invalid verification code.")
	ErrTooManyRequests = core.NewAppError(core.KindTooManyRequests, "TOO_MANY_REQUESTS", "Please wait before requesting another code.")
	ErrSendFailed      = core.NewAppError(core.KindInternal, "FAILED_TO_SEND_OTP", "Failed to send verification code. Please try again.")
)

type (
	OTP struct {
		ID        string    `json:"id" bson:"_id"`
		Email     string    `json:"email" bson:"email"`
		Code      string    `json:"-" bson:"otp"`
		Purpose   string    `json:"purpose" bson:"purpose"`
		ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
		Attempts  int       `json:"attempts" bson:"attempts"`
		Verified  bool      `json:"verified" bson:"verified"`
		CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	}

	// Filter selects OTPs; zero values are ignored.
	Filter struct {
		Email        string
		Purpose      string
		Verified     *bool
		CreatedAfter time.Time
		ExpiresAfter time.Time
	}

	Repository interface {
		CreateOTP(ctx context.Context, o OTP) (OTP, error)
		// FindOTP returns the most recent OTP matching filter, or ErrNotFound.
		FindOTP(ctx context.Context, filter Filter) (OTP, error)
		UpdateOTP(ctx context.Context, o OTP) (OTP, error)
		DeleteOTP(ctx context.Context, id string) error
		DeleteOTPs(ctx context.Context, email, purpose string) error
	}

	// Users looks up existing accounts.
	Users interface {
		GetUser(ctx context.Context, filter user.GetFilter) (user.User, error)
	}

	SendRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	VerifyRequest struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"otp" validate:"required,len=6,numeric"`
	}

	SendResult struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		ExpiresIn int    `json:"expiresIn"` // seconds
	}

	VerifyResult struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	Service struct {
		repo    Repository
		users   Users
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, users Users, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, mailSvc: mailSvc, logger: logger}
}

func now() time.Time { return NowFunc().UTC() }

// generateCode returns a random 6 digits code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// Send issues a new signup OTP for email and mails it.
func (svc *Service) Send(ctx context.Context, email string) (SendResult, error) {
	email = core.CleanString(email, true /* lower */)

	if _, err := svc.users.GetUser(ctx, user.GetFilter{Email: email}); err == nil {
		return SendResult{}, user.ErrEmailInUse.WithMessage("This email is already registered. Please log in instead.")
	} else if !errors.Is(err, user.ErrNotFound) {
		return SendResult{}, err
	}

	ts := now()
	recent, err := svc.repo.FindOTP(ctx, Filter{Email: email, Purpose: PurposeSignup, CreatedAfter: ts.Add(-ResendCooldown)})
	switch {
	case err == nil:
		wait := waitSeconds(recent.CreatedAt.Add(ResendCooldown).Sub(ts))
		return SendResult{}, ErrTooManyRequests.
			WithMessage(fmt.Sprintf("Please wait %d seconds before requesting another OTP.", wait)).
			WithData("waitTime", wait)
	case !errors.Is(err, ErrNotFound):
		return SendResult{}, err
	}

	if err := svc.repo.DeleteOTPs(ctx, email, PurposeSignup); err != nil {
		return SendResult{}, err
	}

	code, err := generateCode()
	if err != nil {
		return SendResult{}, errors.Wrap(err, "generating otp")
	}
	rec, err := svc.repo.CreateOTP(ctx, OTP{
		Email:     email,
		Code:      code,
		Purpose:   PurposeSignup,
		ExpiresAt: ts.Add(Expiry),
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		return SendResult{}, err
	}

	err = svc.mailSvc.Send(ctx, &core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Your verification code",
		TemplateName: "signup_otp",
		TemplateData: map[string]interface{}{
			"Code":             code,
			"ExpiresInMinutes": int(Expiry / time.Minute),
		},
	})
	if err != nil {
		svc.logger.Error("otp.Service.Send: sending mail to "+email, err)
		if err := svc.repo.DeleteOTP(ctx, rec.ID); err != nil {
			svc.logger.Error("otp.Service.Send: deleting unsent otp", err)
		}
		return SendResult{}, ErrSendFailed
	}

	return SendResult{
		Success:   true,
		Message:   "OTP sent successfully",
		ExpiresIn: int(Expiry / time.Second),
	}, nil
}

// Resend issues a fresh code, under the same cooldown as Send.
func (svc *Service) Resend(ctx context.Context, email string) (SendResult, error) {
	return svc.Send(ctx, email)
}

// Verify checks code against the pending signup OTP of email.
func (svc *Service) Verify(ctx context.Context, email, code string) (VerifyResult, error) {
	email = core.CleanString(email, true /* lower */)
	pending := false
	rec, err := svc.repo.FindOTP(ctx, Filter{Email: email, Purpose: PurposeSignup, Verified: &pending})
	if err != nil {
		return VerifyResult{}, err
	}

	if rec.ExpiresAt.Before(now()) {
		svc.delete(ctx, rec)
		return VerifyResult{}, ErrExpired
	}
	if rec.Attempts >= MaxAttempts {
		svc.delete(ctx, rec)
		return VerifyResult{}, ErrMaxAttempts
	}

	rec.Attempts++
	rec.UpdatedAt = now()
	if rec, err = svc.repo.UpdateOTP(ctx, rec); err != nil {
		return VerifyResult{}, err
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(core.CleanString(code))) == 0 {
		remaining := MaxAttempts - rec.Attempts
		if remaining <= 0 {
			svc.delete(ctx, rec)
			return VerifyResult{}, ErrMaxAttempts
		}
		return VerifyResult{}, ErrInvalidCode.
			WithMessage(fmt.Sprintf("Invalid verification code. %d attempts remaining.", remaining)).
			WithData("remainingAttempts", remaining)
	}

	rec.Verified = true
	if _, err := svc.repo.UpdateOTP(ctx, rec); err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Success: true, Message: "OTP verified successfully"}, nil
}

func (svc *Service) delete(ctx context.Context, rec OTP) {
	if err := svc.repo.DeleteOTP(ctx, rec.ID); err != nil {
		svc.logger.Error("otp.Service: deleting otp", err)
	}
}

// HasVerified reports whether email holds a verified, unexpired signup OTP.
func (svc *Service) HasVerified(ctx context.Context, email string) (bool, error) {
	verified := true
	_, err := svc.repo.FindOTP(ctx, Filter{
		Email:        core.CleanString(email, true /* lower */),
		Purpose:      PurposeSignup,
		Verified:     &verified,
		ExpiresAfter: now(),
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Cleanup removes every signup OTP of email.
func (svc *Service) Cleanup(ctx context.Context, email string) error {
	return svc.repo.DeleteOTPs(ctx, core.CleanString(email, true /* lower */), PurposeSignup)
}

func waitSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
