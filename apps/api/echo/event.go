package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/event"
)

type eventApi struct {
	validate *validator.Validate
	svc      *event.Service
}

func registerEventAPI(g *echo.Group, jwt echo.MiddlewareFunc, validate *validator.Validate, svc *event.Service) {
	api := eventApi{validate: validate, svc: svc}

	g.GET("", api.query)
	g.GET("/:id", api.retrieve)

	// authed endpoints
	g.POST("", api.create, jwt)
	g.PUT("/:id", api.update, jwt)
	g.DELETE("/:id", api.destroy, jwt)
	g.POST("/:id/register", api.register, jwt)
}

func (api *eventApi) query(ctx echo.Context) error {
	var filter event.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	events, info, err := api.svc.List(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"events": nonNil(events), "pagination": info})
}

func (api *eventApi) retrieve(ctx echo.Context) error {
	e, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eventApi) create(ctx echo.Context) error {
	var data event.NewEvent
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *eventApi) update(ctx echo.Context) error {
	var data event.UpdateEvent
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Update(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eventApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Event deleted successfully"})
}

func (api *eventApi) register(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	e, err := api.svc.Register(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Successfully registered for event", "event": e})
}
