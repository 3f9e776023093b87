package echoapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/services/captcha"
	"github.com/coffeehubnepal/api/services/ratelimit"
)

const (
	captchaHeader = "X-Captcha-Token"
	minute        = time.Minute
)

var publicCachePrefixes = []string{"/blog", "/jobs", "/products", "/prices"}

// sanitizeQueryMiddleware strips markup from every query parameter before routing.
func sanitizeQueryMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		if req.URL.RawQuery == "" {
			return next(ctx)
		}
		values := req.URL.Query()
		for key, vals := range values {
			for i, v := range vals {
				vals[i] = core.StripTags(v)
			}
			values[key] = vals
		}
		req.URL.RawQuery = values.Encode()
		return next(ctx)
	}
}

func cacheHeadersMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		header := ctx.Response().Header()
		path := req.URL.Path

		switch {
		case strings.HasPrefix(path, "/admin"):
			header.Set("Cache-Control", "private, no-cache, no-store, must-revalidate")
		case req.Method != http.MethodGet:
		case path == "/health":
			header.Set("Cache-Control", "public, max-age=60")
		case hasAnyPrefix(path, publicCachePrefixes):
			header.Set("Cache-Control", "public, max-age=300")
		}
		return next(ctx)
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// rateLimitMiddleware allows `limit` requests per client IP and window. The limiter fails open.
func rateLimitMiddleware(limiter ratelimit.Limiter, scope string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil || limit <= 0 {
			return next
		}
		return func(ctx echo.Context) error {
			res, err := limiter.Allow(ctx.Request().Context(), scope+":"+ctx.RealIP(), limit, window)
			if err != nil {
				return next(ctx)
			}

			resetSecs := int(res.ResetIn.Round(time.Second) / time.Second)
			header := ctx.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			header.Set("X-RateLimit-Reset", strconv.Itoa(resetSecs))

			if !res.Allowed {
				header.Set("Retry-After", strconv.Itoa(resetSecs))
				return errTooManyRequests.WithData("retryAfter", resetSecs)
			}
			return next(ctx)
		}
	}
}

// captchaMiddleware expects the widget token in the X-Captcha-Token header.
func captchaMiddleware(v *captcha.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !v.Enabled() {
			return next
		}
		return func(ctx echo.Context) error {
			token := ctx.Request().Header.Get(captchaHeader)
			if err := v.Verify(ctx.Request().Context(), token, ctx.RealIP()); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func requestLoggerMiddleware(zl *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", redactQuery(v.URI)),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("ip", v.RemoteIP),
				zap.String("requestId", v.RequestID),
			}
			if v.Error != nil {
				zl.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zl.Info("request", fields...)
			return nil
		},
	})
}

var redactedParams = []string{"token", "password"}

// redactQuery hides secrets passed as query parameters.
func redactQuery(uri string) string {
	u, err := url.ParseRequestURI(uri)
	if err != nil || u.RawQuery == "" {
		return uri
	}
	q := u.Query()
	for _, p := range redactedParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
