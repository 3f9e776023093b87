package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/blog"
)

type blogApi struct {
	auth     *authenticator
	validate *validator.Validate
	svc      *blog.Service
}

func registerBlogAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, validate *validator.Validate, svc *blog.Service) {
	api := blogApi{auth: auth, validate: validate, svc: svc}

	g.GET("", api.query)
	g.GET("/notices", api.queryNotices)
	g.GET("/:id", api.retrieve)

	// authed endpoints
	g.POST("", api.create, jwt)
	g.PUT("/:id", api.update, jwt)
	g.DELETE("/:id", api.destroy, jwt)
	g.POST("/:id/report", api.report, jwt)
}

func (api *blogApi) query(ctx echo.Context) error {
	var filter blog.PostFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	posts, info, err := api.svc.ListPosts(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"posts": nonNil(posts), "pagination": info})
}

func (api *blogApi) queryNotices(ctx echo.Context) error {
	var filter blog.NoticeFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	notices, info, err := api.svc.ListNotices(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"notices": nonNil(notices), "pagination": info})
}

func (api *blogApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetPost(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *blogApi) create(ctx echo.Context) error {
	var data blog.NewPost
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	author, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.CreatePost(ctx.Request().Context(), author, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *blogApi) update(ctx echo.Context) error {
	var data blog.UpdatePost
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.UpdatePost(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *blogApi) destroy(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeletePost(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Post deleted successfully"})
}

func (api *blogApi) report(ctx echo.Context) error {
	var data blog.NewReport
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	r, err := api.svc.ReportPost(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": "Report submitted. Thank you for helping keep the community safe.", "report": r})
}
