package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/coffeehubnepal/api/apps/api/echo"
	"github.com/coffeehubnepal/api/assets"
	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/blog"
	"github.com/coffeehubnepal/api/core/contact"
	"github.com/coffeehubnepal/api/core/event"
	"github.com/coffeehubnepal/api/core/job"
	"github.com/coffeehubnepal/api/core/otp"
	"github.com/coffeehubnepal/api/core/price"
	"github.com/coffeehubnepal/api/core/product"
	"github.com/coffeehubnepal/api/core/user"
	"github.com/coffeehubnepal/api/core/verification"
	"github.com/coffeehubnepal/api/services/captcha"
	emailsvc "github.com/coffeehubnepal/api/services/email"
	"github.com/coffeehubnepal/api/services/ratelimit"
	inmemdb "github.com/coffeehubnepal/api/storage/database/inmem"
	testutil "github.com/coffeehubnepal/api/tests"
)

const strongPwd = "Roast3dBeans"

var errMissingToken = httpErr{Error: "UNAUTHORIZED", Code: "UNAUTHORIZED", Message: "Authentication required."}

type app struct {
	*Server
	conf     *core.Config
	usrRepo  user.Repository
	failMail func(bool)
}

func setup(t *testing.T, confOpts ...func(*core.Config)) app {
	conf := core.NewTestConfig()
	for _, opt := range confOpts {
		opt(conf)
	}
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(assets.Templates(), logger)
	emailsvc.ResetSentMessages()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	otpSvc := otp.NewService(inmemdb.NewOTPRepository(db), usrRepo, mailSvc, logger)
	linkSvc := verification.NewService(inmemdb.NewTokenRepository(db), mailSvc, conf, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	contact.InitValidators(validate, translator)
	event.InitValidators(validate, translator)
	blog.InitValidators(validate, translator)
	job.InitValidators(validate, translator)
	product.InitValidators(validate, translator)
	price.InitValidators(validate, translator)

	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Limiter:    ratelimit.NewMemoryLimiter(),
		Captcha:    captcha.NewVerifier(conf.CaptchaSecret, logger),

		UserSvc:         user.NewService(usrRepo, otpSvc, linkSvc, mailSvc, conf, logger),
		OTPSvc:          otpSvc,
		VerificationSvc: linkSvc,
		ContactSvc:      contact.NewService(inmemdb.NewContactRepository(db), logger),
		EventSvc:        event.NewService(inmemdb.NewEventRepository(db), logger),
		BlogSvc:         blog.NewService(inmemdb.NewBlogRepository(db), logger),
		JobSvc:          job.NewService(inmemdb.NewJobRepository(db)),
		ProductSvc:      product.NewService(inmemdb.NewProductRepository(db)),
		PriceSvc:        price.NewService(inmemdb.NewPriceRepository(db)),
	})
	return app{Server: srv, conf: conf, usrRepo: usrRepo, failMail: mailSvc.Fail}
}

// do serves a request built by newAuthRequest.
func (a app) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	a.ServeHTTP(rec, req)
	return rec
}

func (a app) createUser(t *testing.T, name, email string, opts ...testutil.UserOpt) (user.User, string) {
	usr := testutil.CreateUser(t, a.usrRepo, name, email, strongPwd, opts...)
	return usr, getToken(t, a.conf, usr)
}

type httpErr struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

// decode unmarshals a JSON object response.
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data), rec.Body.String())
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// checkErrorCode asserts the status & the error code of an error response.
func checkErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	assert.Equal(t, wantStatus, rec.Code, rec.Body.String())
	assert.Equal(t, wantCode, decode(t, rec)["error"])
}

func runTests(t *testing.T, a app, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(tt.method, tt.path, tt.token, tt.body))
		})
	}
}
