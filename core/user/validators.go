package user

import (
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/coffeehubnepal/api/core"
)

var (
	signupRoleTag = "signuprole"
	userRoleTag   = "userrole"

	// password policy
	pwdMinLen      = 8
	pwdStrongTag   = "pwdstrong"
	pwdStrongText  = "{0} must be at least 8 characters and contain uppercase, lowercase, and a number"
	pwdNoSpaceText = "password must not contain whitespace"
	pwdAttrSimText = "password cannot be similar to your email or name"
	pwdMaxSim      = .7
)

// InitValidators registers the user validation tags & texts.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnum(validate, translator, signupRoleTag, SignupRoles...)
	core.RegisterEnum(validate, translator, userRoleTag, AllRoles...)

	_ = validate.RegisterValidation(pwdStrongTag, func(fl validator.FieldLevel) bool {
		return CheckPassword(fl.Field().String()) == ""
	})
	core.RegisterCustomTranslation(validate, translator, pwdStrongTag, pwdStrongText)
}

// CheckPassword applies the password policy and returns the first violated rule (empty if none):
// - minLen: 8
// - no whitespace
// - complexity: 1 upper, 1 lower, 1 digit
// - no similarity with the given user attributes
func CheckPassword(pwd string, attrs ...string) string {
	if len(pwd) < pwdMinLen {
		return ErrWeakPassword.Message
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return pwdNoSpaceText
		}
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}
	if !(hasUpper && hasLower && hasDigit) {
		return ErrWeakPassword.Message
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr = strings.ToLower(attr); attr == "" {
			continue
		}
		if difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(attr, "")).QuickRatio() >= pwdMaxSim {
			return pwdAttrSimText
		}
	}
	return ""
}

// checkPasswordFor applies the password policy against usr's email local part and name.
func checkPasswordFor(pwd, email, name string) error {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	if reason := CheckPassword(pwd, local, name); reason != "" {
		return ErrWeakPassword.WithMessage(reason)
	}
	return nil
}
