package organization

import (
	"github.com/labstack/echo/v4"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/organizations", auth.RequirePermission(auth.OpReadOrganizations))
	g.GET("", h.List)
	g.GET("/:org_id", h.Get)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		orgs []*Organization
		err  error
	)
	if raw := c.QueryParam("type"); raw != "" {
		t, ok := ParseType(raw)
		if !ok {
			return apperr.Validation("type must be manufacturer, distributor or pharmacy")
		}
		orgs, err = h.svc.FindByType(ctx, t)
	} else {
		orgs, err = h.svc.List(ctx)
	}
	if err != nil {
		return err
	}
	if orgs == nil {
		orgs = []*Organization{}
	}
	return response.OK(c, "organizations retrieved", orgs)
}

func (h *Handler) Get(c echo.Context) error {
	org, err := h.svc.FindByID(c.Request().Context(), c.Param("org_id"))
	if err != nil {
		return err
	}
	return response.OK(c, "organization retrieved", org)
}
