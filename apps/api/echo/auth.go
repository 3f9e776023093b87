package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/user"
)

var (
	contextClaimsKey = "userToken"
	contextUserKey   = "user"

	errAdminOnly = core.ErrPermissionDenied.WithMessage("Admin access required.")
	errStaffOnly = core.ErrPermissionDenied.WithMessage("Admin or moderator access required.")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func GetUserClaims(conf *core.Config, usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Auth.JWTExpiration)),
		},
		Email: usr.Email,
		Role:  usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, usr user.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, GetUserClaims(conf, usr))
	ss, err := token.SignedString([]byte(conf.Auth.JWTSecret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type authenticator struct {
	conf  *core.Config
	users *user.Service
}

func newAuthenticator(conf *core.Config, users *user.Service) *authenticator {
	return &authenticator{conf: conf, users: users}
}

func (a *authenticator) token(usr user.User) (string, error) {
	return GenerateToken(a.conf, usr)
}

func (a *authenticator) parse(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.conf.Auth.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.conf.AppName),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// middleware requires a valid "Authorization: Bearer <token>" header and loads the user it belongs to.
func (a *authenticator) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		header := ctx.Request().Header.Get(echo.HeaderAuthorization)
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return errMissingToken
		}
		claims, err := a.parse(parts[1])
		if err != nil {
			return errInvalidAuthToken
		}
		ctx.Set(contextClaimsKey, claims)

		// tokens of deleted users are rejected
		if _, err := getContextUser(ctx, a.users); err != nil {
			if errors.Is(err, user.ErrNotFound) || errors.Is(err, core.ErrInvalidID) {
				return errInvalidAuthToken
			}
			return errors.Wrap(err, "getting context user")
		}
		return next(ctx)
	}
}

// staffMiddleware must run after middleware.
func (a *authenticator) staffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx, a.users)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if !usr.IsStaff() {
			return errStaffOnly
		}
		return next(ctx)
	}
}

// adminMiddleware must run after middleware.
func (a *authenticator) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx, a.users)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if !usr.IsAdmin() {
			return errAdminOnly
		}
		return next(ctx)
	}
}

// user returns the authenticated user; handlers behind middleware only.
func (a *authenticator) user(ctx echo.Context) (user.User, error) {
	return getContextUser(ctx, a.users)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errMissingToken
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return user.User{}, err
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
