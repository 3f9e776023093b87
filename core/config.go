package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const DevJWTSecret = "dev-only-secret-change-in-production"

var errMissingJWTSecret = errors.New("JWT_SECRET is required in production")

type (
	Config struct {
		AppName  string
		Env      string // DEV (default), TEST, PROD
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		ClientOrigin     string
		ProductionDomain string

		Server   ServerConfig
		Database DatabaseConfig
		Auth     AuthConfig
		Email    EmailConfig

		CaptchaSecret string
		RollbarToken  string
	}

	ServerConfig struct {
		Host              string
		Port              int
		DebugHost         string
		ShutdownTimeout   time.Duration
		RateLimitPerMin   int
		AccountRateLimit  int
		AccountRateWindow time.Duration
		ResetRateLimit    int
		ResetRateWindow   time.Duration
	}

	DatabaseConfig struct {
		MongoURI string
		MongoDB  string
		RedisURL string
	}

	AuthConfig struct {
		JWTSecret          string
		JWTExpiration      time.Duration
		LockoutThreshold   int
		LockoutWindow      time.Duration
		ResetTokenLifetime time.Duration
	}

	EmailConfig struct {
		Backend        string // console, smtp, sendgrid
		SMTPHost       string
		SMTPPort       int
		SMTPUser       string
		SMTPPass       string
		From           string
		SendgridAPIKey string
	}
)

// NewConfig loads the configuration from defaults, an optional config/.env.<env> file and the environment.
func NewConfig() *Config {
	v := viper.New()

	v.SetDefault("APP_NAME", "CoffeeHubNepal")
	v.SetDefault("BUILD", "develop")
	v.SetDefault("PORT", 4000)
	v.SetDefault("HOST", "")
	v.SetDefault("DEBUG_HOST", "127.0.0.1:4010")
	v.SetDefault("SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "coffeehub")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION", 7*24*time.Hour)
	v.SetDefault("CLIENT_ORIGIN", "http://localhost:5173")
	v.SetDefault("PRODUCTION_DOMAIN", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("ACCOUNT_RATE_LIMIT_PER_WINDOW", 10)
	v.SetDefault("ACCOUNT_RATE_LIMIT_WINDOW", 15*time.Minute)
	v.SetDefault("PASSWORD_RESET_RATE_LIMIT", 5)
	v.SetDefault("PASSWORD_RESET_RATE_WINDOW", time.Hour)
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("LOCKOUT_WINDOW_MINUTES", 15)
	v.SetDefault("RESET_TOKEN_EXPIRY_HOURS", 1)
	v.SetDefault("CAPTCHA_SECRET", "")
	v.SetDefault("EMAIL_BACKEND", "console")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("ROLLBAR_TOKEN", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("APP_NAME"),
		Env:              env,
		Build:            v.GetString("BUILD"),
		Debug:            env == "DEV",
		TestMode:         env == "TEST",
		WorkDir:          wd,
		ClientOrigin:     v.GetString("CLIENT_ORIGIN"),
		ProductionDomain: v.GetString("PRODUCTION_DOMAIN"),
		Server: ServerConfig{
			Host:              v.GetString("HOST"),
			Port:              v.GetInt("PORT"),
			DebugHost:         v.GetString("DEBUG_HOST"),
			ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
			RateLimitPerMin:   v.GetInt("RATE_LIMIT_PER_MINUTE"),
			AccountRateLimit:  v.GetInt("ACCOUNT_RATE_LIMIT_PER_WINDOW"),
			AccountRateWindow: v.GetDuration("ACCOUNT_RATE_LIMIT_WINDOW"),
			ResetRateLimit:    v.GetInt("PASSWORD_RESET_RATE_LIMIT"),
			ResetRateWindow:   v.GetDuration("PASSWORD_RESET_RATE_WINDOW"),
		},
		Database: DatabaseConfig{
			MongoURI: v.GetString("MONGO_URI"),
			MongoDB:  v.GetString("MONGO_DB"),
			RedisURL: v.GetString("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret:          v.GetString("JWT_SECRET"),
			JWTExpiration:      v.GetDuration("JWT_EXPIRATION"),
			LockoutThreshold:   v.GetInt("LOCKOUT_THRESHOLD"),
			LockoutWindow:      time.Duration(v.GetInt("LOCKOUT_WINDOW_MINUTES")) * time.Minute,
			ResetTokenLifetime: time.Duration(v.GetInt("RESET_TOKEN_EXPIRY_HOURS")) * time.Hour,
		},
		Email: EmailConfig{
			Backend:        strings.ToLower(v.GetString("EMAIL_BACKEND")),
			SMTPHost:       v.GetString("SMTP_HOST"),
			SMTPPort:       v.GetInt("SMTP_PORT"),
			SMTPUser:       v.GetString("SMTP_USER"),
			SMTPPass:       v.GetString("SMTP_PASS"),
			From:           v.GetString("SMTP_FROM"),
			SendgridAPIKey: v.GetString("SENDGRID_API_KEY"),
		},
		CaptchaSecret: v.GetString("CAPTCHA_SECRET"),
		RollbarToken:  v.GetString("ROLLBAR_TOKEN"),
	}
	if conf.Email.From == "" {
		conf.Email.From = conf.Email.SMTPUser
	}
	if conf.Email.From == "" {
		conf.Email.From = "noreply@coffeehubnepal.com"
	}
	return conf
}

// NewTestConfig returns a Config suitable for tests: no .env lookup, deterministic secrets.
func NewTestConfig() *Config {
	return &Config{
		AppName:      "CoffeeHubNepal",
		Env:          "TEST",
		Build:        "test",
		TestMode:     true,
		ClientOrigin: "http://localhost:5173",
		Server: ServerConfig{
			Port:              4000,
			ShutdownTimeout:   time.Second,
			RateLimitPerMin:   1000,
			AccountRateLimit:  1000,
			AccountRateWindow: 15 * time.Minute,
			ResetRateLimit:    1000,
			ResetRateWindow:   time.Hour,
		},
		Auth: AuthConfig{
			JWTSecret:          "test-secret",
			JWTExpiration:      time.Hour,
			LockoutThreshold:   5,
			LockoutWindow:      15 * time.Minute,
			ResetTokenLifetime: time.Hour,
		},
		Email: EmailConfig{Backend: "console", From: "noreply@coffeehubnepal.test"},
	}
}

// Validate checks settings that must be present for the current environment.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return errMissingJWTSecret
		}
		c.Auth.JWTSecret = DevJWTSecret
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "PROD" }

func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.Email.From}
}

// FrontendBaseURL returns ClientOrigin with a scheme: http for local hosts, https otherwise.
func (c *Config) FrontendBaseURL() string {
	base := strings.TrimRight(c.ClientOrigin, "/")
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return base
	}
	if strings.Contains(base, "localhost") || strings.Contains(base, "127.0.0.1") {
		return "http://" + base
	}
	return "https://" + base
}

// AllowedOrigins lists the CORS origins accepted by the API.
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.ClientOrigin}
	if c.IsProduction() && c.ProductionDomain != "" {
		origins = append(origins, c.ProductionDomain)
	}
	if !c.IsProduction() {
		origins = append(origins,
			"http://localhost:5173", "http://localhost:3000",
			"http://127.0.0.1:5173", "http://127.0.0.1:3000",
		)
	}
	return origins
}
