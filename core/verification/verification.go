// Package verification issues single use email verification links for signup.
package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/coffeehubnepal/api/core"
)

const (
	TypeVerificationToken = "verification-token"

	tokenBytes = 32
	Expiry     = 30 * time.Minute
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrInvalidToken    = core.NewAppError(core.KindInvalid, "INVALID_TOKEN", "Invalid or expired verification link.")
	ErrTooManyRequests = core.NewAppError(core.KindTooManyRequests, "TOO_MANY_REQUESTS", "Please wait before requesting another link.")
	ErrSendFailed      = core.NewAppError(core.KindInternal, "FAILED_TO_SEND_EMAIL", "Failed to send verification email. Please try again.")
	ErrNotFound        = core.NewAppError(core.KindNotFound, "TOKEN_NOT_FOUND", "Verification token not found.")
)

type (
	Token struct {
		ID        string     `json:"id" bson:"_id"`
		Email     string     `json:"email" bson:"email"`
		TokenHash []byte     `json:"-" bson:"tokenHash"`
		Type      string     `json:"type" bson:"type"`
		ExpiresAt time.Time  `json:"expiresAt" bson:"expiresAt"`
		UsedAt    *time.Time `json:"usedAt,omitempty" bson:"usedAt"`
		CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	}

	// Filter selects tokens of TypeVerificationToken; zero values are ignored.
	Filter struct {
		Email        string
		Unused       bool
		ExpiresAfter time.Time
		CreatedAfter time.Time
	}

	Repository interface {
		CreateToken(ctx context.Context, t Token) (Token, error)
		// FindTokens returns matching tokens, newest first.
		FindTokens(ctx context.Context, filter Filter) ([]Token, error)
		// MarkTokenUsed sets UsedAt unless already set; ErrNotFound otherwise.
		MarkTokenUsed(ctx context.Context, id string, at time.Time) error
		DeleteToken(ctx context.Context, id string) error
		// DeleteTokens removes the tokens of email; only unused ones when unusedOnly.
		DeleteTokens(ctx context.Context, email string, unusedOnly bool) error
	}

	LinkRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	ValidateRequest struct {
		Token string `json:"token" validate:"required"`
	}

	SendResult struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		ExpiresIn int    `json:"expiresIn"` // seconds
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		conf     *core.Config
		logger   core.Logger
		cooldown time.Duration
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	var cooldown time.Duration
	if conf.IsProduction() {
		cooldown = 60 * time.Second
	}
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf, logger: logger, cooldown: cooldown}
}

func now() time.Time { return NowFunc().UTC() }

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Request mails a verification link to email. The reply does not depend on the address being registered.
func (svc *Service) Request(ctx context.Context, email string) (SendResult, error) {
	email = core.CleanString(email, true /* lower */)
	ts := now()

	if svc.cooldown > 0 {
		recent, err := svc.repo.FindTokens(ctx, Filter{
			Email:        email,
			Unused:       true,
			ExpiresAfter: ts,
			CreatedAfter: ts.Add(-svc.cooldown),
		})
		if err != nil {
			return SendResult{}, err
		}
		if len(recent) > 0 {
			d := recent[0].CreatedAt.Add(svc.cooldown).Sub(ts)
			wait := int((d + time.Second - 1) / time.Second)
			if wait < 1 {
				wait = 1
			}
			return SendResult{}, ErrTooManyRequests.
				WithMessage(fmt.Sprintf("Please wait %d seconds before requesting another link.", wait)).
				WithData("waitTime", wait)
		}
	}

	if err := svc.repo.DeleteTokens(ctx, email, true /* unusedOnly */); err != nil {
		return SendResult{}, err
	}

	plain, err := generateToken()
	if err != nil {
		return SendResult{}, errors.Wrap(err, "generating token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return SendResult{}, errors.Wrap(err, "hashing token")
	}
	rec, err := svc.repo.CreateToken(ctx, Token{
		Email:     email,
		TokenHash: hash,
		Type:      TypeVerificationToken,
		ExpiresAt: ts.Add(Expiry),
		CreatedAt: ts,
	})
	if err != nil {
		return SendResult{}, err
	}

	err = svc.mailSvc.Send(ctx, &core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Complete your signup",
		TemplateName: "verification_link",
		TemplateData: map[string]interface{}{
			"Link":             svc.conf.FrontendBaseURL() + "/complete-signup?token=" + plain,
			"ExpiresInMinutes": int(Expiry / time.Minute),
		},
	})
	if err != nil {
		svc.logger.Error("verification.Service.Request: sending mail to "+email, err)
		if err := svc.repo.DeleteToken(ctx, rec.ID); err != nil {
			svc.logger.Error("verification.Service.Request: deleting unsent token", err)
		}
		return SendResult{}, ErrSendFailed
	}

	return SendResult{
		Success:   true,
		Message:   "Verification link sent successfully",
		ExpiresIn: int(Expiry / time.Second),
	}, nil
}

// Check returns the email token was issued for, leaving the token usable.
func (svc *Service) Check(ctx context.Context, token string) (string, error) {
	t, err := svc.find(ctx, token, now())
	if err != nil {
		return "", err
	}
	return t.Email, nil
}

// Validate consumes token and returns the email it was issued for.
func (svc *Service) Validate(ctx context.Context, token string) (string, error) {
	ts := now()
	t, err := svc.find(ctx, token, ts)
	if err != nil {
		return "", err
	}
	if err := svc.repo.MarkTokenUsed(ctx, t.ID, ts); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return t.Email, nil
}

// find returns the unused, unexpired token matching the plain value.
func (svc *Service) find(ctx context.Context, token string, ts time.Time) (Token, error) {
	token = core.CleanString(token)
	if token == "" {
		return Token{}, ErrInvalidToken
	}
	tokens, err := svc.repo.FindTokens(ctx, Filter{Unused: true, ExpiresAfter: ts})
	if err != nil {
		return Token{}, err
	}
	for _, t := range tokens {
		if bcrypt.CompareHashAndPassword(t.TokenHash, []byte(token)) == nil {
			return t, nil
		}
	}
	return Token{}, ErrInvalidToken
}

// HasValid reports whether email holds an unused, unexpired token.
func (svc *Service) HasValid(ctx context.Context, email string) (bool, error) {
	tokens, err := svc.repo.FindTokens(ctx, Filter{
		Email:        core.CleanString(email, true /* lower */),
		Unused:       true,
		ExpiresAfter: now(),
	})
	if err != nil {
		return false, err
	}
	return len(tokens) > 0, nil
}

// Cleanup removes every token of email.
func (svc *Service) Cleanup(ctx context.Context, email string) error {
	return svc.repo.DeleteTokens(ctx, core.CleanString(email, true /* lower */), false)
}
