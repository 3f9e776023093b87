package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/product"
)

type productApi struct {
	auth     *authenticator
	validate *validator.Validate
	svc      *product.Service
}

func registerProductAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, validate *validator.Validate, svc *product.Service) {
	api := productApi{auth: auth, validate: validate, svc: svc}

	g.GET("", api.query)
	g.GET("/:id", api.retrieve)

	// authed endpoints
	g.POST("", api.create, jwt)
	g.PUT("/:id", api.update, jwt)
	g.DELETE("/:id", api.destroy, jwt)
}

func (api *productApi) query(ctx echo.Context) error {
	var filter product.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	products, info, err := api.svc.List(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"products": nonNil(products), "pagination": info})
}

func (api *productApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *productApi) create(ctx echo.Context) error {
	var data product.NewProduct
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	seller, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Create(ctx.Request().Context(), seller, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *productApi) update(ctx echo.Context) error {
	var data product.UpdateProduct
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *productApi) destroy(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Product deleted successfully"})
}
