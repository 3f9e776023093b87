package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/price"
)

type priceApi struct {
	auth     *authenticator
	validate *validator.Validate
	svc      *price.Service
}

// registerPriceAPI exposes the price board; writes are limited to experts & staff by price.Service.
func registerPriceAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, validate *validator.Validate, svc *price.Service) {
	api := priceApi{auth: auth, validate: validate, svc: svc}

	g.GET("", api.query)
	g.GET("/latest", api.latest)
	g.GET("/:id", api.retrieve)

	// authed endpoints
	g.POST("", api.create, jwt)
	g.PUT("/:id", api.update, jwt)
	g.DELETE("/:id", api.destroy, jwt)
}

func (api *priceApi) query(ctx echo.Context) error {
	var filter price.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	prices, info, err := api.svc.List(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"prices": nonNil(prices), "pagination": info})
}

func (api *priceApi) latest(ctx echo.Context) error {
	prices, err := api.svc.Latest(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"prices": nonNil(prices)})
}

func (api *priceApi) retrieve(ctx echo.Context) error {
	pr, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pr)
}

func (api *priceApi) create(ctx echo.Context) error {
	var data price.NewPrice
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	pr, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, pr)
}

func (api *priceApi) update(ctx echo.Context) error {
	var data price.UpdatePrice
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	pr, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pr)
}

func (api *priceApi) destroy(ctx echo.Context) error {
	actor, err := api.auth.user(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Price entry deleted successfully"})
}
