package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/job"
)

type jobApi struct {
	auth     *authenticator
	validate *validator.Validate
	svc      *job.Service
}

func registerJobAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, validate *validator.Validate, svc *job.Service) {
	api := jobApi{auth: auth, validate: validate, svc: svc}

	g.GET("", api.query)
	g.GET("/:id", api.retrieve)

	// authed endpoints
	g.POST("", api.create, jwt)
	g.PUT("/:id", api.update, jwt)
	g.DELETE("/:id", api.destroy, jwt)
}

func (api *jobApi) query(ctx echo.Context) error {
	var filter job.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	jobs, info, err := api.svc.List(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"jobs": nonNil(jobs), "pagination": info})
}

func (api *jobApi) retrieve(ctx echo.Context) error {
	j, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) create(ctx echo.Context) error {
	var data job.NewJob
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	j, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, j)
}

func (api *jobApi) update(ctx echo.Context) error {
	var data job.UpdateJob
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	j, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, j)
}

func (api *jobApi) destroy(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Job deleted successfully"})
}
