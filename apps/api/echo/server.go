package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"

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
	"github.com/coffeehubnepal/api/services/ratelimit"
)

const bodyLimit = "10M"

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		AccessLog  *zap.Logger // nil disables request logs
		Validate   *validator.Validate
		Translator ut.Translator
		Limiter    ratelimit.Limiter
		Captcha    *captcha.Verifier

		UserSvc         *user.Service
		OTPSvc          *otp.Service
		VerificationSvc *verification.Service
		ContactSvc      *contact.Service
		EventSvc        *event.Service
		BlogSvc         *blog.Service
		JobSvc          *job.Service
		ProductSvc      *product.Service
		PriceSvc        *price.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		metrics:  newMetrics(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Pre(sanitizeQueryMiddleware)

	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if s.deps.AccessLog != nil {
		s.app.Use(requestLoggerMiddleware(s.deps.AccessLog))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware)
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.AllowedOrigins(),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, captchaHeader},
		ExposeHeaders:    []string{echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	s.app.Use(middleware.Secure())
	s.app.Use(middleware.BodyLimit(bodyLimit))
	s.app.Use(rateLimitMiddleware(s.deps.Limiter, "ip", conf.Server.RateLimitPerMin, minute))
	s.app.Use(cacheHeadersMiddleware)

	s.app.GET("/health", health)
	s.app.GET("/metrics", s.metrics.handler())

	jwt := s.auth.middleware
	staff := s.auth.staffMiddleware
	withCaptcha := captchaMiddleware(s.deps.Captcha)
	accountLimit := rateLimitMiddleware(s.deps.Limiter, "account", conf.Server.AccountRateLimit, conf.Server.AccountRateWindow)
	resetLimit := rateLimitMiddleware(s.deps.Limiter, "reset", conf.Server.ResetRateLimit, conf.Server.ResetRateWindow)

	registerAuthAPI(s.app.Group("/auth"), authApiDeps{
		auth:         s.auth,
		jwt:          jwt,
		captcha:      withCaptcha,
		accountLimit: accountLimit,
		resetLimit:   resetLimit,
		validate:     s.deps.Validate,
		users:        s.deps.UserSvc,
		otps:         s.deps.OTPSvc,
		links:        s.deps.VerificationSvc,
		logger:       s.deps.Logger,
	})
	registerAdminAPI(s.app.Group("/admin", jwt, staff), s.auth, s.deps.Validate, s.deps.UserSvc, s.deps.BlogSvc)
	registerContactAPI(s.app.Group("/contacts"), jwt, staff, s.deps.Validate, s.deps.ContactSvc)
	registerEventAPI(s.app.Group("/events"), jwt, s.deps.Validate, s.deps.EventSvc)
	registerBlogAPI(s.app.Group("/blog"), jwt, s.auth, s.deps.Validate, s.deps.BlogSvc)
	registerJobAPI(s.app.Group("/jobs"), jwt, s.auth, s.deps.Validate, s.deps.JobSvc)
	registerProductAPI(s.app.Group("/products"), jwt, s.auth, s.deps.Validate, s.deps.ProductSvc)
	registerPriceAPI(s.app.Group("/prices"), jwt, s.auth, s.deps.Validate, s.deps.PriceSvc)
}

// Start blocks serving requests; a failure is sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks main to gracefully stop the server.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
