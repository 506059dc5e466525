package medrequest

import (
	"github.com/google/uuid"
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
	g := api.Group("/medication-requests")
	g.POST("", h.Create, auth.RequirePermission(auth.OpCreateRequest))
	g.GET("", h.ListMine, auth.RequirePermission(auth.OpReadRequest))
	g.GET("/:id", h.Get, auth.RequirePermission(auth.OpReadRequest))
	g.POST("/:id/approve", h.Approve, auth.RequirePermission(auth.OpApproveRequest))
	g.POST("/:id/reject", h.Reject, auth.RequirePermission(auth.OpRejectRequest))
	g.POST("/:id/cancel", h.Cancel, auth.RequirePermission(auth.OpCancelRequest))
	g.POST("/:id/ship", h.Ship, auth.RequirePermission(auth.OpShipRequest))
	g.POST("/:id/deliver", h.Deliver, auth.RequirePermission(auth.OpShipRequest))
}

func requestID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("medication request %s not found", c.Param("id"))
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	req, err := h.svc.CreateRequest(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.Created(c, "medication request created", req)
}

func (h *Handler) ListMine(c echo.Context) error {
	p := pagination.FromContext(c)
	q := ListQuery{Limit: p.Limit, Offset: p.Offset}
	switch raw := c.QueryParam("status"); raw {
	case "":
	case "all":
		q.AllStatuses = true
	default:
		st, ok := ParseStatus(raw)
		if !ok {
			return apperr.Validation("unknown status %q", raw)
		}
		q.Status = st
	}

	reqs, total, err := h.svc.ListMyRequests(c.Request().Context(), q)
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []*Request{}
	}
	return response.OK(c, "medication requests retrieved", pagination.NewPage(reqs, total, p))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	req, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "medication request retrieved", req)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	var in ApproveInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	req, err := h.svc.ApproveRequest(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return response.OK(c, "medication request approved", req)
}

type rejectRequest struct {
	RejectionReason string `json:"rejection_reason"`
}

func (h *Handler) Reject(c echo.Context) error {
	var body rejectRequest
	if err := c.Bind(&body); err != nil {
		return apperr.Validation("invalid request body")
	}
	// reject malformed reasons before touching the request
	reason, err := ValidateRejectionReason(body.RejectionReason)
	if err != nil {
		return err
	}
	id, err := requestID(c)
	if err != nil {
		return err
	}
	req, err := h.svc.RejectRequest(c.Request().Context(), id, reason)
	if err != nil {
		return err
	}
	return response.OK(c, "medication request rejected", req)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	req, err := h.svc.CancelRequest(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "medication request cancelled", req)
}

func (h *Handler) Ship(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	req, err := h.svc.MarkInTransit(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "medication request in transit", req)
}

func (h *Handler) Deliver(c echo.Context) error {
	id, err := requestID(c)
	if err != nil {
		return err
	}
	req, err := h.svc.MarkDelivered(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "medication request delivered", req)
}
