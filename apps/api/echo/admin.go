package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/blog"
	"github.com/coffeehubnepal/api/core/user"
)

type (
	adminApi struct {
		auth     *authenticator
		validate *validator.Validate
		users    *user.Service
		blog     *blog.Service
	}

	updateRoleRequest struct {
		Role string `json:"role" validate:"required,userrole"`
	}

	rejectVerificationRequest struct {
		Reason string `json:"reason" validate:"omitempty,max=1000"`
	}
)

// registerAdminAPI expects g to be guarded by the jwt & staff middlewares.
func registerAdminAPI(
	g *echo.Group,
	auth *authenticator,
	validate *validator.Validate,
	users *user.Service,
	blogSvc *blog.Service,
) {
	api := adminApi{auth: auth, validate: validate, users: users, blog: blogSvc}

	g.GET("/stats", api.stats)

	ug := g.Group("/users")
	ug.GET("", api.listUsers)
	ug.GET("/:id", api.retrieveUser)
	ug.PUT("/:id/role", api.updateRole)
	ug.POST("/:id/reject-role-change", api.rejectRoleChange)
	ug.POST("/:id/verify", api.verifyUser)
	ug.POST("/:id/reject-verification", api.rejectVerification)
	ug.DELETE("/:id", api.destroyUser, auth.adminMiddleware)

	g.GET("/pending-verifications", api.pendingVerifications)
	g.GET("/pending-role-changes", api.pendingRoleChanges)

	g.GET("/reports", api.listReports)
	g.PUT("/reports/:id", api.updateReport)
	g.GET("/reports/post/:postId", api.postReports)

	g.POST("/notices", api.createNotice)
}

func usersPage(users []user.User, info core.PageInfo) echo.Map {
	return echo.Map{"users": nonNil(users), "pagination": info}
}

func (api *adminApi) stats(ctx echo.Context) error {
	stats, err := api.users.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing user stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) listUsers(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	verified, err := queryBool(ctx, "verified")
	if err != nil {
		return err
	}
	filter.Verified = verified

	users, info, err := api.users.List(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usersPage(users, info))
}

func (api *adminApi) retrieveUser(ctx echo.Context) error {
	usr, err := api.users.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr})
}

func (api *adminApi) updateRole(ctx echo.Context) error {
	var data updateRoleRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.users.UpdateRole(ctx.Request().Context(), actor, ctx.Param("id"), data.Role)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "User role updated successfully", "user": usr})
}

func (api *adminApi) rejectRoleChange(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.users.RejectRoleChange(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Role change request rejected", "user": usr})
}

func (api *adminApi) verifyUser(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.users.Verify(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "User verified successfully", "user": usr})
}

func (api *adminApi) rejectVerification(ctx echo.Context) error {
	var data rejectVerificationRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.users.RejectVerification(ctx.Request().Context(), actor, ctx.Param("id"), data.Reason)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Verification rejected", "user": usr})
}

func (api *adminApi) destroyUser(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.users.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

func (api *adminApi) pendingVerifications(ctx echo.Context) error {
	users, info, err := api.users.PendingVerifications(ctx.Request().Context(), bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usersPage(users, info))
}

func (api *adminApi) pendingRoleChanges(ctx echo.Context) error {
	users, info, err := api.users.PendingRoleChanges(ctx.Request().Context(), bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usersPage(users, info))
}

func (api *adminApi) listReports(ctx echo.Context) error {
	var filter blog.ReportFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	reports, info, err := api.blog.ListReports(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"reports": nonNil(reports), "pagination": info})
}

func (api *adminApi) updateReport(ctx echo.Context) error {
	var data blog.UpdateReport
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	report, err := api.blog.UpdateReportStatus(ctx.Request().Context(), actor.ID, ctx.Param("id"), data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"report": report})
}

func (api *adminApi) postReports(ctx echo.Context) error {
	reports, err := api.blog.ReportsByPost(ctx.Request().Context(), ctx.Param("postId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"reports": nonNil(reports)})
}

func (api *adminApi) createNotice(ctx echo.Context) error {
	var data blog.NewNotice
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notice, err := api.blog.CreateNotice(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, notice)
}
