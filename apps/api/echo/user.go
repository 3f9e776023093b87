package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/otp"
	"github.com/coffeehubnepal/api/core/user"
	"github.com/coffeehubnepal/api/core/verification"
)

const (
	msgResetRequested = "If an account with that email exists, a password reset link has been sent."
	msgPasswordReset  = "Password has been reset successfully. You can now log in with your new password."
)

type (
	authApiDeps struct {
		auth         *authenticator
		jwt          echo.MiddlewareFunc
		captcha      echo.MiddlewareFunc
		accountLimit echo.MiddlewareFunc
		resetLimit   echo.MiddlewareFunc
		validate     *validator.Validate
		users        *user.Service
		otps         *otp.Service
		links        *verification.Service
		logger       core.Logger
	}

	authApi struct {
		authApiDeps
	}

	loginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	forgotPasswordRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	resetPasswordRequest struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	authResponse struct {
		Token string       `json:"token"`
		User  user.Profile `json:"user"`
	}
)

func registerAuthAPI(g *echo.Group, deps authApiDeps) {
	api := authApi{deps}
	limit, captcha := deps.accountLimit, deps.captcha

	// signup email verification
	g.POST("/send-otp", api.sendOTP, limit, captcha)
	g.POST("/verify-otp", api.verifyOTP, limit)
	g.POST("/resend-otp", api.resendOTP, limit, captcha)
	g.POST("/send-verification-link", api.sendVerificationLink, limit, captcha)
	g.POST("/verify-link", api.verifyLink, limit)

	g.POST("/signup", api.signup, limit, captcha)
	g.POST("/login", api.login, limit, captcha)
	g.POST("/forgot-password", api.forgotPassword, deps.resetLimit, captcha)
	g.POST("/reset-password", api.resetPassword, limit, captcha)

	// authed endpoints
	g.GET("/profile", api.profile, deps.jwt)
	g.PUT("/profile", api.updateProfile, deps.jwt)
	g.POST("/request-verification", api.requestVerification, deps.jwt)
	g.POST("/request-role-change", api.requestRoleChange, deps.jwt)
}

func (api *authApi) respondWithToken(ctx echo.Context, code int, usr user.User) error {
	token, err := api.auth.token(usr)
	if err != nil {
		return errors.Wrap(err, "generating auth token")
	}
	return ctx.JSON(code, authResponse{Token: token, User: usr.Profile()})
}

func (api *authApi) sendOTP(ctx echo.Context) error {
	var data otp.SendRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	res, err := api.otps.Send(ctx.Request().Context(), data.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *authApi) verifyOTP(ctx echo.Context) error {
	var data otp.VerifyRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	res, err := api.otps.Verify(ctx.Request().Context(), data.Email, data.Code)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *authApi) resendOTP(ctx echo.Context) error {
	var data otp.SendRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	res, err := api.otps.Resend(ctx.Request().Context(), data.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *authApi) sendVerificationLink(ctx echo.Context) error {
	var data verification.LinkRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	res, err := api.links.Request(ctx.Request().Context(), data.Email)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// verifyLink tells the client which email a link was issued for; the token is consumed at signup.
func (api *authApi) verifyLink(ctx echo.Context) error {
	var data verification.ValidateRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	email, err := api.links.Check(ctx.Request().Context(), data.Token)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "email": email})
}

func (api *authApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.users.Signup(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return api.respondWithToken(ctx, http.StatusCreated, usr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data loginRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.users.Login(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	return api.respondWithToken(ctx, http.StatusOK, usr)
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data forgotPasswordRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if err := api.users.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		// same answer whether or not the account exists
		api.logger.Error("requesting password reset", err)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": msgResetRequested, "success": true})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data resetPasswordRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	if _, err := api.users.ResetPassword(ctx.Request().Context(), data.Token, data.Password); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": msgPasswordReset, "success": true})
}

func (api *authApi) profile(ctx echo.Context) error {
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr.Profile()})
}

func (api *authApi) updateProfile(ctx echo.Context) error {
	var data user.UpdateProfile
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr, err = api.users.UpdateProfile(ctx.Request().Context(), usr.ID, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr.Profile()})
}

func (api *authApi) requestVerification(ctx echo.Context) error {
	var data user.VerificationRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr, err = api.users.RequestVerification(ctx.Request().Context(), usr.ID, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message":            "Verification request submitted. Our team will review your documents.",
		"verificationStatus": usr.VerificationStatus,
		"user":               usr.Profile(),
	})
}

func (api *authApi) requestRoleChange(ctx echo.Context) error {
	var data user.RoleChangeRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	usr, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr, err = api.users.RequestRoleChange(ctx.Request().Context(), usr.ID, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message":          "Role change request submitted.",
		"requestedRole":    usr.RequestedRole,
		"roleChangeStatus": usr.RoleChangeStatus,
	})
}
