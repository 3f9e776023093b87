package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/coffeehubnepal/api/core"
)

// Roles
const (
	RoleFarmer    = "farmer"
	RoleRoaster   = "roaster"
	RoleTrader    = "trader"
	RoleExporter  = "exporter"
	RoleExpert    = "expert"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// Verification & role change statuses
const (
	StatusNone     = "none"
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const maxAvatarLen = 550000

var (
	// SignupRoles may be picked at signup and assigned by moderators.
	SignupRoles = []string{RoleFarmer, RoleRoaster, RoleTrader, RoleExporter, RoleExpert}
	StaffRoles  = []string{RoleAdmin, RoleModerator}
	AllRoles    = append(append([]string{}, SignupRoles...), StaffRoles...)
)

func IsStaffRole(role string) bool {
	return role == RoleAdmin || role == RoleModerator
}

func IsSignupRole(role string) bool {
	for _, r := range SignupRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID           string `json:"id" bson:"_id"`
	Email        string `json:"email" bson:"email"`
	PasswordHash []byte `json:"-" bson:"passwordHash"`
	Name         string `json:"name" bson:"name"`
	Role         string `json:"role" bson:"role"`
	Phone        string `json:"phone,omitempty" bson:"phone,omitempty"`
	Location     string `json:"location,omitempty" bson:"location,omitempty"`
	Avatar       string `json:"avatar,omitempty" bson:"avatar,omitempty"`

	Verified              bool       `json:"verified" bson:"verified"`
	VerificationStatus    string     `json:"verificationStatus" bson:"verificationStatus"`
	VerificationDocuments []string   `json:"verificationDocuments,omitempty" bson:"verificationDocuments,omitempty"`
	VerificationNotes     string     `json:"verificationNotes,omitempty" bson:"verificationNotes,omitempty"`
	VerificationRequested *time.Time `json:"verificationRequestedAt,omitempty" bson:"verificationRequestedAt,omitempty"`
	RejectionReason       string     `json:"rejectionReason,omitempty" bson:"rejectionReason,omitempty"`
	VerifiedBy            string     `json:"verifiedBy,omitempty" bson:"verifiedBy,omitempty"`
	VerifiedAt            *time.Time `json:"verifiedAt,omitempty" bson:"verifiedAt,omitempty"`

	RequestedRole    string     `json:"requestedRole,omitempty" bson:"requestedRole,omitempty"`
	RoleChangeReason string     `json:"roleChangeReason,omitempty" bson:"roleChangeReason,omitempty"`
	RoleChangeStatus string     `json:"roleChangeStatus" bson:"roleChangeStatus"`
	RoleChangeAt     *time.Time `json:"roleChangeRequestedAt,omitempty" bson:"roleChangeRequestedAt,omitempty"`

	FailedLoginAttempts int        `json:"-" bson:"failedLoginAttempts"`
	FirstFailedLoginAt  *time.Time `json:"-" bson:"firstFailedLoginAt,omitempty"`
	LockUntil           *time.Time `json:"-" bson:"lockUntil,omitempty"`

	LastLogin *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"` // UTC
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`                     // UTC
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`                     // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u *User) IsModerator() bool { return u.Role == RoleModerator }
func (u *User) IsStaff() bool     { return IsStaffRole(u.Role) }

// Profile is the public view of a User returned by the auth endpoints.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Verified bool   `json:"verified"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		Phone:    u.Phone,
		Location: u.Location,
		Avatar:   u.Avatar,
		Verified: u.Verified,
	}
}

// NewUser contains information needed to sign up.
type NewUser struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,pwdstrong"`
	Name              string `json:"name" validate:"omitempty,max=100"`
	Role              string `json:"role" validate:"omitempty,signuprole"`
	Phone             string `json:"phone" validate:"omitempty,max=20"`
	Location          string `json:"location" validate:"omitempty,max=200"`
	VerificationToken string `json:"verificationToken,omitempty"`
}

func (nu *NewUser) Clean() {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Name = core.StripTags(nu.Name)
	nu.Role = core.CleanString(nu.Role)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Location = core.StripTags(nu.Location)
	nu.VerificationToken = core.CleanString(nu.VerificationToken)
}

// UpdateProfile defines what a User may change on their own profile. nil means unchanged.
type UpdateProfile struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Location *string `json:"location" validate:"omitempty,max=200"`
	Avatar   *string `json:"avatar"`
}

func (up *UpdateProfile) Clean() {
	if up.Name != nil {
		name := core.StripTags(*up.Name)
		up.Name = &name
	}
	if up.Phone != nil {
		phone := core.CleanString(*up.Phone)
		up.Phone = &phone
	}
	if up.Location != nil {
		loc := core.StripTags(*up.Location)
		up.Location = &loc
	}
}

// VerificationRequest is submitted by a user asking staff to verify their account.
type VerificationRequest struct {
	Documents []string `json:"documents" validate:"required,min=1,max=5,dive,required"`
	Notes     string   `json:"notes" validate:"omitempty,max=1000"`
}

// RoleChangeRequest is submitted by a user asking staff for another role.
type RoleChangeRequest struct {
	Role   string `json:"role" validate:"required,signuprole"`
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search             string    `query:"search"`
	Role               string    `query:"role"`
	Verified           *bool     `query:"-"`
	VerificationStatus string    `query:"-"`
	RoleChangeStatus   string    `query:"-"`
	CreatedFrom        time.Time `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.StripTags(qf.Search)
	qf.Role = core.CleanString(qf.Role)
}

// Stats summarizes the user base for the admin dashboard.
type Stats struct {
	TotalUsers           int64            `json:"totalUsers"`
	VerifiedUsers        int64            `json:"verifiedUsers"`
	UnverifiedUsers      int64            `json:"unverifiedUsers"`
	PendingVerifications int64            `json:"pendingVerifications"`
	PendingRoleChanges   int64            `json:"pendingRoleChanges"`
	NewUsersLast30Days   int64            `json:"newUsersLast30Days"`
	UsersByRole          map[string]int64 `json:"usersByRole"`
}
