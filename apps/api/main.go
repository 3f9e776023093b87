package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/coffeehubnepal/api/apps/api/echo"
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
	logsvc "github.com/coffeehubnepal/api/services/logger"
	"github.com/coffeehubnepal/api/services/ratelimit"
	"github.com/coffeehubnepal/api/storage/database/mongodb"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("main: building zap logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	dbLogger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	defer func() { _ = logger.Sync() }()

	if err = conf.Validate(); err != nil {
		logger.Fatal("invalid configuration", err)
	}
	if conf.Auth.JWTSecret == core.DevJWTSecret {
		logger.Warn("JWT_SECRET is not set, using the development secret")
	}

	// set up DB
	db, err := mongodb.Open(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(context.Background()); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()
	if err = db.EnsureIndexes(context.Background()); err != nil {
		dbLogger.Fatal("ensuring indexes", err)
	}

	limiter, closeLimiter, err := ratelimit.New(conf.Database.RedisURL, logger)
	if err != nil {
		logger.Fatal("setting up rate limiter", err)
	}
	defer func() { _ = closeLimiter() }()

	// set up services
	mailSvc := emailsvc.New(conf, logger)
	usrRepo := mongodb.NewUserRepository(db)
	otpSvc := otp.NewService(mongodb.NewOTPRepository(db), usrRepo, mailSvc, logger)
	linkSvc := verification.NewService(mongodb.NewTokenRepository(db), mailSvc, conf, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

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

	core.ParseEmailTemplates(assets.Templates(), logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		AccessLog:  zl.Named("http"),
		Validate:   validate,
		Translator: translator,
		Limiter:    limiter,
		Captcha:    captcha.NewVerifier(conf.CaptchaSecret, logger),

		UserSvc:         user.NewService(usrRepo, otpSvc, linkSvc, mailSvc, conf, logger),
		OTPSvc:          otpSvc,
		VerificationSvc: linkSvc,
		ContactSvc:      contact.NewService(mongodb.NewContactRepository(db), logger),
		EventSvc:        event.NewService(mongodb.NewEventRepository(db), logger),
		BlogSvc:         blog.NewService(mongodb.NewBlogRepository(db), logger),
		JobSvc:          job.NewService(mongodb.NewJobRepository(db)),
		ProductSvc:      product.NewService(mongodb.NewProductRepository(db)),
		PriceSvc:        price.NewService(mongodb.NewPriceRepository(db)),
	})

	go func() {
		logger.Info("API listening on " + conf.Address())
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
