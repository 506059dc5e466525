package inventory

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/response"
	"github.com/rxchain/rxchain/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/inventory")
	g.POST("", h.Create, auth.RequirePermission(auth.OpCreateInventory))
	g.GET("", h.ListMine, auth.RequirePermission(auth.OpReadInventory))
	g.GET("/search", h.Search, auth.RequirePermission(auth.OpSearchInventory))
	g.GET("/organization/:org_id", h.ListOrganization, auth.RequirePermission(auth.OpReadInventory))
	g.PATCH("/:batch_id/quantity", h.AdjustQuantity, auth.RequirePermission(auth.OpAdjustInventory))
}

// scopedOrg resolves the organization a caller acts for. Only admins may
// name an organization other than their own.
func scopedOrg(caller *auth.Caller, requested string) (string, error) {
	if requested == "" {
		if caller.OrganizationID == "" {
			return "", apperr.Validation("organization_id is required")
		}
		return caller.OrganizationID, nil
	}
	if !caller.IsAdmin() && !caller.InOrganization(requested) {
		return "", apperr.Forbidden("cannot act on inventory of organization %s", requested)
	}
	return requested, nil
}

func (h *Handler) Create(c echo.Context) error {
	caller, err := auth.Authorize(c.Request().Context(), auth.OpCreateInventory)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	if in.OrganizationID, err = scopedOrg(caller, in.OrganizationID); err != nil {
		return err
	}
	rec, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.Created(c, "inventory record created", rec)
}

func (h *Handler) ListMine(c echo.Context) error {
	caller, err := auth.Authorize(c.Request().Context(), auth.OpReadInventory)
	if err != nil {
		return err
	}
	orgID, err := scopedOrg(caller, c.QueryParam("organization_id"))
	if err != nil {
		return err
	}
	return h.list(c, orgID)
}

func (h *Handler) ListOrganization(c echo.Context) error {
	caller, err := auth.Authorize(c.Request().Context(), auth.OpReadInventory)
	if err != nil {
		return err
	}
	orgID, err := scopedOrg(caller, c.Param("org_id"))
	if err != nil {
		return err
	}
	return h.list(c, orgID)
}

func (h *Handler) list(c echo.Context, orgID string) error {
	recs, err := h.svc.ListByOrganization(c.Request().Context(), orgID)
	if err != nil {
		return err
	}
	return response.OK(c, "inventory retrieved", page(c, recs))
}

func (h *Handler) Search(c echo.Context) error {
	minQty := 1
	if raw := c.QueryParam("min_quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperr.Validation("min_quantity must be a positive integer")
		}
		minQty = n
	}
	recs, err := h.svc.FindAvailable(c.Request().Context(), c.QueryParam("product_name"), minQty)
	if err != nil {
		return err
	}
	return response.OK(c, "available stock retrieved", page(c, recs))
}

type adjustRequest struct {
	Delta          int    `json:"delta"`
	OrganizationID string `json:"organization_id"`
}

func (h *Handler) AdjustQuantity(c echo.Context) error {
	caller, err := auth.Authorize(c.Request().Context(), auth.OpAdjustInventory)
	if err != nil {
		return err
	}
	var req adjustRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	orgID, err := scopedOrg(caller, req.OrganizationID)
	if err != nil {
		return err
	}
	rec, err := h.svc.Adjust(c.Request().Context(), Key{OrganizationID: orgID, BatchID: c.Param("batch_id")}, req.Delta)
	if err != nil {
		return err
	}
	return response.OK(c, "inventory quantity adjusted", rec)
}

func page(c echo.Context, recs []*Record) *pagination.Page {
	p := pagination.FromContext(c)
	start, end := p.Window(len(recs))
	items := recs[start:end]
	if items == nil {
		items = []*Record{}
	}
	return pagination.NewPage(items, len(recs), p)
}
