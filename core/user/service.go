package user

import (
	"context"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
)

var (
	// errors
	ErrNotFound             = core.NewAppError(core.KindNotFound, "USER_NOT_FOUND", "User not found.")
	ErrEmailInUse           = core.NewAppError(core.KindConflict, "EMAIL_IN_USE", "An account with this email already exists.")
	ErrWeakPassword         = core.NewAppError(core.KindInvalid, "WEAK_PASSWORD", "Password must be at least 8 characters and contain uppercase, lowercase, and a number.")
	ErrOTPNotVerified       = core.NewAppError(core.KindForbidden, "OTP_NOT_VERIFIED", "Please verify your email before signing up.")
	ErrInvalidCredentials   = core.NewAppError(core.KindUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password.")
	ErrAccountLocked        = core.NewAppError(core.KindLocked, "ACCOUNT_LOCKED", "Too many failed login attempts. Please try again later.")
	ErrInvalidToken         = core.NewAppError(core.KindInvalid, "INVALID_TOKEN", "Invalid or malformed token.")
	ErrTokenExpired         = core.NewAppError(core.KindInvalid, "TOKEN_EXPIRED", "This link has expired. Please request a new one.")
	ErrNameUpdateRestricted = core.NewAppError(core.KindForbidden, "NAME_UPDATE_RESTRICTED", "Verified users cannot change their name. Please contact support.")
	ErrAvatarTooLarge       = core.NewAppError(core.KindInvalid, "AVATAR_TOO_LARGE", "Avatar image is too large.")
	ErrAlreadyVerified      = core.NewAppError(core.KindInvalid, "ALREADY_VERIFIED", "This account is already verified.")
	ErrSameRole             = core.NewAppError(core.KindInvalid, "SAME_ROLE", "You already have this role.")
)

type (
	Repository interface {
		// CreateUser fails with ErrEmailInUse when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields, newest first.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter, page core.Pagination) ([]User, int64, error)
		CountUsers(ctx context.Context, filter QueryFilter) (int64, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id string) error
	}

	// SignupVerifier tells whether an email address passed the signup OTP check.
	SignupVerifier interface {
		HasVerified(ctx context.Context, email string) (bool, error)
		Cleanup(ctx context.Context, email string) error
	}

	// LinkVerifier checks emailed verification links; Cleanup retires them once the account exists.
	LinkVerifier interface {
		Check(ctx context.Context, token string) (email string, err error)
		Cleanup(ctx context.Context, email string) error
	}

	Service struct {
		repo    Repository
		otps    SignupVerifier
		links   LinkVerifier
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
		tokens  tokenGenerator
	}
)

func NewService(
	repo Repository,
	otps SignupVerifier,
	links LinkVerifier,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		otps:    otps,
		links:   links,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
		tokens:  newTokenGenerator(conf.Auth.JWTSecret, conf.Auth.ResetTokenLifetime),
	}
}

func now() time.Time { return NowFunc().UTC() }

func (svc *Service) Signup(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := checkPasswordFor(nu.Password, nu.Email, nu.Name); err != nil {
		return User{}, err
	}
	if _, err := svc.repo.GetUser(ctx, GetFilter{Email: nu.Email}); err == nil {
		return User{}, ErrEmailInUse
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	if err := svc.checkEmailVerified(ctx, nu); err != nil {
		return User{}, err
	}

	role := nu.Role
	if role == "" {
		role = RoleFarmer
	}
	name := nu.Name
	if name == "" {
		name = strings.SplitN(nu.Email, "@", 2)[0]
	}
	ts := now()
	usr := User{
		Email:              nu.Email,
		Name:               name,
		Role:               role,
		Phone:              nu.Phone,
		Location:           nu.Location,
		VerificationStatus: StatusNone,
		RoleChangeStatus:   StatusNone,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	if err := svc.otps.Cleanup(ctx, usr.Email); err != nil {
		svc.logger.Error("user.Service.Signup: otp cleanup", err)
	}
	if err := svc.links.Cleanup(ctx, usr.Email); err != nil {
		svc.logger.Error("user.Service.Signup: verification tokens cleanup", err)
	}
	return usr, nil
}

// checkEmailVerified accepts a verification link token for the same email, or a verified signup OTP.
// The token stays usable until Signup cleans it up after the user is created.
func (svc *Service) checkEmailVerified(ctx context.Context, nu NewUser) error {
	if nu.VerificationToken != "" {
		email, err := svc.links.Check(ctx, nu.VerificationToken)
		if err == nil && email == nu.Email {
			return nil
		}
		if err != nil {
			if _, ok := core.AsAppError(err); !ok {
				return err
			}
		}
	}
	verified, err := svc.otps.HasVerified(ctx, nu.Email)
	if err != nil {
		return err
	}
	if !verified {
		return ErrOTPNotVerified
	}
	return nil
}

// Login authenticates a user by email & password, applying the account lockout policy.
func (svc *Service) Login(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	ts := now()
	if usr.IsLocked(ts) {
		return User{}, lockedErr(usr, ts)
	}

	if err := usr.CheckPassword(pwd); err != nil {
		locked := usr.RegisterFailedLogin(ts, svc.conf.Auth.LockoutThreshold, svc.conf.Auth.LockoutWindow)
		if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
			return User{}, err
		}
		if locked {
			return User{}, lockedErr(usr, ts)
		}
		return User{}, ErrInvalidCredentials
	}

	usr.ResetLockout()
	usr.LastLogin = &ts
	return svc.repo.UpdateUser(ctx, usr)
}

func lockedErr(usr User, ts time.Time) error {
	return ErrAccountLocked.WithData("unlocksInMs", usr.UnlocksIn(ts).Milliseconds())
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if !core.IsValidID(id) {
		return User{}, core.ErrInvalidID
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// RequestPasswordReset emails a reset link when the address belongs to a user.
// Unknown addresses are silently ignored.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	link := svc.conf.FrontendBaseURL() + "/reset-password?token=" + url.QueryEscape(svc.tokens.MakeToken(usr))
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Reset your password",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":           usr.Name,
			"Link":           link,
			"ExpiresInHours": int(svc.conf.Auth.ResetTokenLifetime / time.Hour),
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, token, pwd string) (User, error) {
	id, _, err := parseToken(core.CleanString(token))
	if err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if err := svc.tokens.VerifyToken(usr, core.CleanString(token)); err != nil {
		return User{}, err
	}
	if err := checkPasswordFor(pwd, usr.Email, usr.Name); err != nil {
		return User{}, err
	}
	return svc.SetPassword(ctx, usr, pwd)
}

// SetPassword replaces usr's password and lifts any account lock.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.ResetLockout()
	usr.UpdatedAt = now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	up.Clean()
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if up.Name != nil && *up.Name != usr.Name {
		if usr.Verified && !usr.IsStaff() {
			return User{}, ErrNameUpdateRestricted
		}
		usr.Name = *up.Name
	}
	if up.Phone != nil {
		usr.Phone = *up.Phone
	}
	if up.Location != nil {
		usr.Location = *up.Location
	}
	if up.Avatar != nil {
		if len(*up.Avatar) > maxAvatarLen {
			return User{}, ErrAvatarTooLarge
		}
		usr.Avatar = *up.Avatar
	}
	usr.UpdatedAt = now()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestVerification submits documents for staff review.
func (svc *Service) RequestVerification(ctx context.Context, id string, req VerificationRequest) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.Verified {
		return User{}, ErrAlreadyVerified
	}
	ts := now()
	usr.VerificationStatus = StatusPending
	usr.VerificationDocuments = core.CleanStrings(req.Documents)
	usr.VerificationNotes = core.StripTags(req.Notes)
	usr.VerificationRequested = &ts
	usr.RejectionReason = ""
	usr.UpdatedAt = ts
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestRoleChange asks staff to switch the user to another non staff role.
func (svc *Service) RequestRoleChange(ctx context.Context, id string, req RoleChangeRequest) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.Role == req.Role {
		return User{}, ErrSameRole
	}
	ts := now()
	usr.RequestedRole = req.Role
	usr.RoleChangeReason = core.StripTags(req.Reason)
	usr.RoleChangeStatus = StatusPending
	usr.RoleChangeAt = &ts
	usr.UpdatedAt = ts
	return svc.repo.UpdateUser(ctx, usr)
}
