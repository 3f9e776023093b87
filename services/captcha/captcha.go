// Package captcha verifies reCAPTCHA tokens against Google's siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
)

const (
	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

	// DisabledToken is accepted without a round trip to the provider.
	DisabledToken = "captcha-disabled"
)

var (
	ErrRequired = core.NewAppError(core.KindInvalid, "CAPTCHA_REQUIRED", "CAPTCHA verification is required.")
	ErrInvalid  = core.NewAppError(core.KindInvalid, "CAPTCHA_INVALID", "CAPTCHA verification failed. Please try again.")
	ErrFailed   = core.NewAppError(core.KindInternal, "CAPTCHA_VERIFICATION_FAILED", "Failed to verify CAPTCHA. Please try again.")
)

type (
	Verifier struct {
		secret    string
		verifyURL string
		client    *http.Client
		logger    core.Logger
	}

	siteVerifyResponse struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
)

func NewVerifier(secret string, logger core.Logger) *Verifier {
	return &Verifier{
		secret:    secret,
		verifyURL: DefaultVerifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// Enabled reports whether a secret is configured; without one every request passes.
func (v *Verifier) Enabled() bool {
	return v != nil && v.secret != ""
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return ErrRequired
	}
	if token == DisabledToken {
		return nil
	}

	form := url.Values{"secret": {v.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "building captcha request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := v.client.Do(req)
	if err != nil {
		v.logger.Error("captcha: siteverify request failed", err)
		return ErrFailed
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		v.logger.Error("captcha: siteverify returned " + res.Status)
		return ErrFailed
	}

	var body siteVerifyResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		v.logger.Error("captcha: decoding siteverify response", err)
		return ErrFailed
	}
	if !body.Success {
		v.logger.Warn("captcha: verification failed", map[string]interface{}{"errorCodes": body.ErrorCodes})
		return ErrInvalid.WithMessage(invalidMessage(body.ErrorCodes))
	}
	return nil
}

func invalidMessage(codes []string) string {
	has := func(code string) bool {
		for _, c := range codes {
			if c == code {
				return true
			}
		}
		return false
	}
	switch {
	case has("invalid-input-secret"):
		return "CAPTCHA configuration error. Please contact support."
	case has("timeout-or-duplicate"):
		return "CAPTCHA token expired or already used. Please verify again."
	case has("bad-request"):
		return "Invalid CAPTCHA request. Please try again."
	default:
		return ErrInvalid.Message
	}
}
