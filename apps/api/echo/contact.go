package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/coffeehubnepal/api/core"
	"github.com/coffeehubnepal/api/core/contact"
)

const msgContactSent = "Your message has been sent successfully. We will get back to you soon."

type contactApi struct {
	validate *validator.Validate
	svc      *contact.Service
}

func registerContactAPI(g *echo.Group, jwt, staff echo.MiddlewareFunc, validate *validator.Validate, svc *contact.Service) {
	api := contactApi{validate: validate, svc: svc}

	g.POST("", api.create)

	// staff endpoints
	g.GET("", api.query, jwt, staff)
	g.GET("/stats", api.stats, jwt, staff)
	g.GET("/:id", api.retrieve, jwt, staff)
	g.PUT("/:id", api.update, jwt, staff)
	g.DELETE("/:id", api.destroy, jwt, staff)
}

func (api *contactApi) create(ctx echo.Context) error {
	var data contact.NewContact
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"message": msgContactSent, "id": c.ID})
}

func (api *contactApi) query(ctx echo.Context) error {
	var filter contact.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	contacts, info, err := api.svc.List(ctx.Request().Context(), filter, bindPagination(ctx, core.DefaultPageSize))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"contacts": nonNil(contacts), "pagination": info})
}

func (api *contactApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *contactApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contactApi) update(ctx echo.Context) error {
	var data contact.UpdateContact
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.Update(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contactApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Contact deleted successfully"})
}
