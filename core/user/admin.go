package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/coffeehubnepal/api/core"
)

var (
	ErrCannotDeleteSelf  = core.NewAppError(core.KindInvalid, "CANNOT_DELETE_SELF", "You cannot delete your own account.")
	ErrCannotDeleteAdmin = core.NewAppError(core.KindForbidden, "CANNOT_DELETE_ADMIN", "Admin accounts cannot be deleted.")
	ErrNoPendingRequest  = core.NewAppError(core.KindInvalid, "NO_PENDING_REQUEST", "There is no pending request for this user.")

	errModeratorStaff = core.ErrPermissionDenied.WithMessage("Moderators cannot modify admin or moderator accounts.")
	errModeratorRole  = core.ErrPermissionDenied.WithMessage("Moderators cannot assign admin or moderator roles.")
	errAdminOnly      = core.ErrPermissionDenied.WithMessage("Only admins can perform this action.")
)

// List returns users matching filter, newest first.
func (svc *Service) List(ctx context.Context, filter QueryFilter, page core.Pagination) ([]User, core.PageInfo, error) {
	filter.Clean()
	users, total, err := svc.repo.FilterUsers(ctx, filter, page)
	if err != nil {
		return nil, core.PageInfo{}, err
	}
	return users, page.Info(total), nil
}

// checkModeration enforces that moderators only act on non staff users.
func checkModeration(actor, target User) error {
	if actor.IsModerator() && target.IsStaff() {
		return errModeratorStaff
	}
	if !actor.IsStaff() {
		return core.ErrPermissionDenied
	}
	return nil
}

// UpdateRole assigns role to the user identified by id, resolving any pending role change.
func (svc *Service) UpdateRole(ctx context.Context, actor User, id, role string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := checkModeration(actor, usr); err != nil {
		return User{}, err
	}
	if actor.IsModerator() && IsStaffRole(role) {
		return User{}, errModeratorRole
	}

	if usr.RoleChangeStatus == StatusPending {
		if usr.RequestedRole == role {
			usr.RoleChangeStatus = StatusApproved
		} else {
			usr.RoleChangeStatus = StatusRejected
		}
	}
	usr.Role = role
	usr.UpdatedAt = now()
	return svc.repo.UpdateUser(ctx, usr)
}

// RejectRoleChange declines a pending role change request.
func (svc *Service) RejectRoleChange(ctx context.Context, actor User, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := checkModeration(actor, usr); err != nil {
		return User{}, err
	}
	if usr.RoleChangeStatus != StatusPending {
		return User{}, ErrNoPendingRequest
	}
	usr.RoleChangeStatus = StatusRejected
	usr.UpdatedAt = now()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, actor User, id string) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	if !core.IsValidID(id) {
		return core.ErrInvalidID
	}
	if actor.ID == id {
		return ErrCannotDeleteSelf
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if usr.IsAdmin() {
		return ErrCannotDeleteAdmin
	}
	return svc.repo.DeleteUser(ctx, id)
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var (
		stats    = Stats{UsersByRole: make(map[string]int64, len(AllRoles))}
		verified = true
		err      error
	)
	counts := []struct {
		dst    *int64
		filter QueryFilter
	}{
		{&stats.TotalUsers, QueryFilter{}},
		{&stats.VerifiedUsers, QueryFilter{Verified: &verified}},
		{&stats.PendingVerifications, QueryFilter{VerificationStatus: StatusPending}},
		{&stats.PendingRoleChanges, QueryFilter{RoleChangeStatus: StatusPending}},
		{&stats.NewUsersLast30Days, QueryFilter{CreatedFrom: now().Add(-30 * 24 * time.Hour)}},
	}
	for _, c := range counts {
		if *c.dst, err = svc.repo.CountUsers(ctx, c.filter); err != nil {
			return Stats{}, err
		}
	}
	stats.UnverifiedUsers = stats.TotalUsers - stats.VerifiedUsers

	for _, role := range AllRoles {
		n, err := svc.repo.CountUsers(ctx, QueryFilter{Role: role})
		if err != nil {
			return Stats{}, err
		}
		stats.UsersByRole[role] = n
	}
	return stats, nil
}

func (svc *Service) PendingVerifications(ctx context.Context, page core.Pagination) ([]User, core.PageInfo, error) {
	return svc.List(ctx, QueryFilter{VerificationStatus: StatusPending}, page)
}

func (svc *Service) PendingRoleChanges(ctx context.Context, page core.Pagination) ([]User, core.PageInfo, error) {
	return svc.List(ctx, QueryFilter{RoleChangeStatus: StatusPending}, page)
}

// Verify marks the user as verified by actor.
func (svc *Service) Verify(ctx context.Context, actor User, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := checkModeration(actor, usr); err != nil {
		return User{}, err
	}
	ts := now()
	usr.Verified = true
	usr.VerificationStatus = StatusVerified
	usr.VerifiedBy = actor.ID
	usr.VerifiedAt = &ts
	usr.RejectionReason = ""
	usr.UpdatedAt = ts
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, err
	}
	svc.sendVerificationResultMail(usr, true, "")
	return usr, nil
}

// RejectVerification declines the user's verification request with reason.
func (svc *Service) RejectVerification(ctx context.Context, actor User, id, reason string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := checkModeration(actor, usr); err != nil {
		return User{}, err
	}
	usr.Verified = false
	usr.VerificationStatus = StatusRejected
	usr.RejectionReason = core.StripTags(reason)
	usr.VerifiedBy = ""
	usr.VerifiedAt = nil
	usr.UpdatedAt = now()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, err
	}
	svc.sendVerificationResultMail(usr, false, usr.RejectionReason)
	return usr, nil
}

func (svc *Service) sendVerificationResultMail(usr User, approved bool, reason string) {
	subject := "Your account has been verified"
	if !approved {
		subject = "Your verification request was declined"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: "verification_result",
		TemplateData: map[string]interface{}{
			"Name":     usr.Name,
			"Approved": approved,
			"Reason":   reason,
		},
	})
}

// CreateStaff creates a verified staff account; used by the admin CLI.
func (svc *Service) CreateStaff(ctx context.Context, email, name, role, pwd string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: "email must be a valid email address"})
	}
	if !IsStaffRole(role) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: "role must be one of: admin, moderator"})
	}
	if err := checkPasswordFor(pwd, email, name); err != nil {
		return User{}, err
	}
	if name == "" {
		name = "Admin"
	}
	ts := now()
	usr := User{
		Email:              email,
		Name:               name,
		Role:               role,
		Verified:           true,
		VerificationStatus: StatusVerified,
		RoleChangeStatus:   StatusNone,
		VerifiedAt:         &ts,
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}
