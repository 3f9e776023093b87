package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/services/captcha"
	emailsvc "github.com/coffeehubnepal/api/services/email"
	testutil "github.com/coffeehubnepal/api/tests"
)

func lastMailData(t *testing.T) map[string]interface{} {
	t.Helper()
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no email sent")
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestHealth(t *testing.T) {
	a := setup(t)

	req, rec := newRequest(http.MethodGet, "/health")
	a.ServeHTTP(rec, req)

	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"status":"ok"}`)}, rec)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestUnknownRoutes(t *testing.T) {
	a := setup(t)

	for _, path := range []string{
		"/auth/unknown",
		"/contacts/5f2b3c4d5e6f708192a3b4c5/notes",
		"/events/5f2b3c4d5e6f708192a3b4c5/attendees/1",
		"/blog/5f2b3c4d5e6f708192a3b4c5/comments",
		"/jobs/a/b",
		"/products/a/b",
		"/prices/a/b",
	} {
		t.Run(path, func(t *testing.T) {
			rec := a.do(http.MethodGet, path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		})
	}

	// known routes still require a token
	rec := a.do(http.MethodGet, "/auth/profile", "")
	checkErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func Test_authApi_signup(t *testing.T) {
	a := setup(t)
	email := "ram@test.com"
	signup := marchallObj(t, map[string]string{"email": email, "password": strongPwd, "name": "Ram Thapa"})

	// email not verified yet
	rec := a.do(http.MethodPost, "/auth/signup", "", signup)
	checkErrorCode(t, rec, http.StatusForbidden, "OTP_NOT_VERIFIED")

	rec = a.do(http.MethodPost, "/auth/send-otp", "", []byte(`{"email":"not-an-email"}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = a.do(http.MethodPost, "/auth/send-otp", "", marchallObj(t, map[string]string{"email": email}))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"success":true,"message":"OTP sent successfully","expiresIn":600}`),
	}, rec)
	code := lastMailData(t)["Code"].(string)

	// resend cooldown
	rec = a.do(http.MethodPost, "/auth/resend-otp", "", marchallObj(t, map[string]string{"email": email}))
	checkErrorCode(t, rec, http.StatusTooManyRequests, "TOO_MANY_REQUESTS")
	assert.Contains(t, decode(t, rec), "waitTime")

	rec = a.do(http.MethodPost, "/auth/verify-otp", "", marchallObj(t, map[string]string{"email": email, "otp": "000000"}))
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_OTP")
	assert.EqualValues(t, 4, decode(t, rec)["remainingAttempts"])

	rec = a.do(http.MethodPost, "/auth/verify-otp", "", marchallObj(t, map[string]string{"email": email, "otp": code}))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = a.do(http.MethodPost, "/auth/signup", "", signup)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.NotEmpty(t, data["token"])
	profile := data["user"].(map[string]interface{})
	assert.Equal(t, email, profile["email"])
	assert.Equal(t, "Ram Thapa", profile["name"])
	assert.Equal(t, "farmer", profile["role"])
	assert.Equal(t, false, profile["verified"])
	assert.NotContains(t, profile, "passwordHash")

	// the issued token authenticates the new user
	rec = a.do(http.MethodGet, "/auth/profile", data["token"].(string))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, email, decode(t, rec)["user"].(map[string]interface{})["email"])

	rec = a.do(http.MethodPost, "/auth/signup", "", signup)
	checkErrorCode(t, rec, http.StatusConflict, "EMAIL_IN_USE")

	rec = a.do(http.MethodPost, "/auth/send-otp", "", marchallObj(t, map[string]string{"email": email}))
	checkErrorCode(t, rec, http.StatusConflict, "EMAIL_IN_USE")
}

func Test_authApi_signupWithLink(t *testing.T) {
	a := setup(t)
	email := "sita@test.com"

	rec := a.do(http.MethodPost, "/auth/send-verification-link", "", marchallObj(t, map[string]string{"email": email}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	link, err := url.Parse(lastMailData(t)["Link"].(string))
	require.NoError(t, err)
	assert.Equal(t, "/complete-signup", link.Path)
	token := link.Query().Get("token")

	rec = a.do(http.MethodPost, "/auth/verify-link", "", []byte(`{"token":"nope"}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_TOKEN")

	// checking a link does not consume it
	for i := 0; i < 2; i++ {
		rec = a.do(http.MethodPost, "/auth/verify-link", "", marchallObj(t, map[string]string{"token": token}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{"success": true, "email": email}),
		}, rec)
	}

	// a signup under another email leaves the link usable
	mistyped := map[string]string{"email": "sitta@test.com", "password": strongPwd, "verificationToken": token}
	rec = a.do(http.MethodPost, "/auth/signup", "", marchallObj(t, mistyped))
	checkErrorCode(t, rec, http.StatusForbidden, "OTP_NOT_VERIFIED")

	signup := map[string]string{"email": email, "password": strongPwd, "role": "roaster", "verificationToken": token}
	rec = a.do(http.MethodPost, "/auth/signup", "", marchallObj(t, signup))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "roaster", decode(t, rec)["user"].(map[string]interface{})["role"])

	rec = a.do(http.MethodPost, "/auth/verify-link", "", marchallObj(t, map[string]string{"token": token}))
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_TOKEN")
}

func Test_authApi_signupValidation(t *testing.T) {
	a := setup(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": strongPwd}},
		{"weak password", map[string]string{"email": "hari@test.com", "password": "weak"}},
		{"staff role", map[string]string{"email": "hari@test.com", "password": strongPwd, "role": "admin"}},
		{"unknown role", map[string]string{"email": "hari@test.com", "password": strongPwd, "role": "barista"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/auth/signup", "", marchallObj(t, tt.body))
			checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
			assert.NotEmpty(t, decode(t, rec)["fields"])
		})
	}

	rec := a.do(http.MethodPost, "/auth/signup", "", []byte(`{"email":`))
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_REQUEST")
}

func Test_authApi_login(t *testing.T) {
	a := setup(t)
	usr, _ := a.createUser(t, "Gita", "gita@test.com")

	login := func(pwd string) []byte {
		return marchallObj(t, map[string]string{"email": "GITA@test.com", "password": pwd})
	}

	rec := a.do(http.MethodPost, "/auth/login", "", login(strongPwd))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, usr.ID, data["user"].(map[string]interface{})["id"])

	rec = a.do(http.MethodPost, "/auth/login", "", marchallObj(t, map[string]string{"email": "nobody@test.com", "password": strongPwd}))
	checkErrorCode(t, rec, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	for i := 1; i < a.conf.Auth.LockoutThreshold; i++ {
		rec = a.do(http.MethodPost, "/auth/login", "", login("Wrong0ne"))
		checkErrorCode(t, rec, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	}
	rec = a.do(http.MethodPost, "/auth/login", "", login("Wrong0ne"))
	checkErrorCode(t, rec, http.StatusLocked, "ACCOUNT_LOCKED")

	// locked even with the right password
	rec = a.do(http.MethodPost, "/auth/login", "", login(strongPwd))
	checkErrorCode(t, rec, http.StatusLocked, "ACCOUNT_LOCKED")
	assert.Greater(t, decode(t, rec)["unlocksInMs"], float64(0))
}

func Test_authApi_passwordReset(t *testing.T) {
	a := setup(t)
	a.createUser(t, "Hari", "hari@test.com")
	wantMsg := []byte(`{"message":"If an account with that email exists, a password reset link has been sent.","success":true}`)

	rec := a.do(http.MethodPost, "/auth/forgot-password", "", []byte(`{"email":"ghost@test.com"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: wantMsg}, rec)
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent)

	rec = a.do(http.MethodPost, "/auth/forgot-password", "", []byte(`{"email":"hari@test.com"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: wantMsg}, rec)

	link, err := url.Parse(lastMailData(t)["Link"].(string))
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")

	newPwd := "Fr3shGrounds"
	tests := []httpTest{
		{
			name:     "invalid token",
			body:     marchallObj(t, map[string]string{"token": "garbage", "password": newPwd}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "weak password",
			body:     marchallObj(t, map[string]string{"token": token, "password": "short"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "reset",
			body:     marchallObj(t, map[string]string{"token": token, "password": newPwd}),
			wantCode: http.StatusOK,
			wantData: []byte(`{"message":"Password has been reset successfully. You can now log in with your new password.","success":true}`),
		},
		{
			name:     "token is single use",
			body:     marchallObj(t, map[string]string{"token": token, "password": "An0therPass"}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(http.MethodPost, "/auth/reset-password", "", tt.body))
		})
	}

	rec = a.do(http.MethodPost, "/auth/login", "", marchallObj(t, map[string]string{"email": "hari@test.com", "password": newPwd}))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_authApi_profile(t *testing.T) {
	a := setup(t)
	_, token := a.createUser(t, "Maya", "maya@test.com")
	_, verifiedToken := a.createUser(t, "Bikash", "bikash@test.com", testutil.Verified())

	tests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/auth/profile",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "bad token",
			method:   http.MethodGet,
			path:     "/auth/profile",
			token:    "not.a.jwt",
			wantCode: http.StatusUnauthorized,
			wantData: []byte(`{"error":"UNAUTHORIZED","code":"UNAUTHORIZED","message":"Invalid or expired token."}`),
		},
		{
			name:     "update name & location",
			method:   http.MethodPut,
			path:     "/auth/profile",
			token:    token,
			body:     []byte(`{"name":"Maya <b>Rai</b>","location":"Ilam"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "verified users keep their name",
			method:   http.MethodPut,
			path:     "/auth/profile",
			token:    verifiedToken,
			body:     []byte(`{"name":"Someone Else"}`),
			wantCode: http.StatusForbidden,
			wantData: []byte(`{"error":"NAME_UPDATE_RESTRICTED","code":"NAME_UPDATE_RESTRICTED","message":"Verified users cannot change their name. Please contact support."}`),
		},
		{
			name:     "phone too long",
			method:   http.MethodPut,
			path:     "/auth/profile",
			token:    token,
			body:     []byte(`{"phone":"012345678901234567890123"}`),
			wantCode: http.StatusBadRequest,
		},
	}
	runTests(t, a, tests)

	rec := a.do(http.MethodGet, "/auth/profile", token)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode(t, rec)["user"].(map[string]interface{})
	assert.Equal(t, "Maya Rai", profile["name"])
	assert.Equal(t, "Ilam", profile["location"])

	// resubmitting the current name is not a change
	rec = a.do(http.MethodPut, "/auth/profile", verifiedToken, []byte(`{"name":"Bikash","location":"Pokhara"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile = decode(t, rec)["user"].(map[string]interface{})
	assert.Equal(t, "Bikash", profile["name"])
	assert.Equal(t, "Pokhara", profile["location"])
}

func Test_authApi_deletedUserToken(t *testing.T) {
	a := setup(t)
	usr, token := a.createUser(t, "Ram", "ram@test.com")
	require.NoError(t, a.usrRepo.DeleteUser(context.Background(), usr.ID))

	rec := a.do(http.MethodGet, "/auth/profile", token)
	checkErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func Test_authApi_requests(t *testing.T) {
	a := setup(t)
	_, token := a.createUser(t, "Kiran", "kiran@test.com")

	rec := a.do(http.MethodPost, "/auth/request-verification", token, []byte(`{"documents":[]}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = a.do(http.MethodPost, "/auth/request-verification", token, []byte(`{"documents":["https://docs.test/id.png"],"notes":"farm license"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", decode(t, rec)["verificationStatus"])

	rec = a.do(http.MethodPost, "/auth/request-role-change", token, []byte(`{"role":"farmer"}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "SAME_ROLE")

	rec = a.do(http.MethodPost, "/auth/request-role-change", token, []byte(`{"role":"exporter","reason":"we export now"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, "exporter", data["requestedRole"])
	assert.Equal(t, "pending", data["roleChangeStatus"])
}

func Test_authApi_rateLimit(t *testing.T) {
	a := setup(t, func(conf *core.Config) { conf.Server.AccountRateLimit = 2 })
	body := marchallObj(t, map[string]string{"email": "nobody@test.com", "password": strongPwd})

	for i := 0; i < 2; i++ {
		rec := a.do(http.MethodPost, "/auth/login", "", body)
		checkErrorCode(t, rec, http.StatusUnauthorized, "INVALID_CREDENTIALS")
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := a.do(http.MethodPost, "/auth/login", "", body)
	checkErrorCode(t, rec, http.StatusTooManyRequests, "TOO_MANY_REQUESTS")
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// other routes are counted separately
	rec = a.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_authApi_captcha(t *testing.T) {
	a := setup(t, func(conf *core.Config) { conf.CaptchaSecret = "secret" })
	body := marchallObj(t, map[string]string{"email": "nobody@test.com", "password": strongPwd})

	rec := a.do(http.MethodPost, "/auth/login", "", body)
	checkErrorCode(t, rec, http.StatusBadRequest, "CAPTCHA_REQUIRED")

	req, rec := newRequest(http.MethodPost, "/auth/login", body)
	req.Header.Set("X-Captcha-Token", captcha.DisabledToken)
	a.ServeHTTP(rec, req)
	checkErrorCode(t, rec, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	// verify-otp is not captcha protected
	rec = a.do(http.MethodPost, "/auth/verify-otp", "", marchallObj(t, map[string]string{"email": "nobody@test.com", "otp": "123456"}))
	checkErrorCode(t, rec, http.StatusNotFound, "OTP_NOT_FOUND")
}
