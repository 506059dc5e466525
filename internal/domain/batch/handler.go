package batch

import (
	"github.com/labstack/echo/v4"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/response"
)

type Handler struct {
	svc    *Service
	writes []echo.MiddlewareFunc
}

// NewHandler returns a handler whose ledger-writing routes also run the
// given middleware, typically the idempotency guard.
func NewHandler(svc *Service, writes ...echo.MiddlewareFunc) *Handler {
	return &Handler{svc: svc, writes: writes}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/batches")

	read := auth.RequirePermission(auth.OpReadBatch)
	g.GET("/:batch_id", h.Get, read)
	g.GET("/:batch_id/history", h.History, read)

	g.POST("", h.Create, h.guard(auth.OpCreateBatch)...)
	g.POST("/:batch_id/transfers", h.Transfer, h.guard(auth.OpTransferBatch)...)
	g.POST("/:batch_id/deliveries", h.Deliver, h.guard(auth.OpMarkBatchDelivered)...)
}

// guard checks the permission before any write middleware so that a
// rejected caller never reserves an idempotency key.
func (h *Handler) guard(op auth.Operation) []echo.MiddlewareFunc {
	return append([]echo.MiddlewareFunc{auth.RequirePermission(op)}, h.writes...)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	res, err := h.svc.CreateBatch(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.Created(c, "batch created", res)
}

func (h *Handler) Transfer(c echo.Context) error {
	var in TransferInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	in.BatchID = c.Param("batch_id")
	res, err := h.svc.TransferAndReconcile(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.OK(c, "batch transferred", res)
}

func (h *Handler) Deliver(c echo.Context) error {
	var in DeliverInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("invalid request body")
	}
	in.BatchID = c.Param("batch_id")
	res, err := h.svc.MarkBatchDelivered(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.OK(c, "batch delivery recorded", res)
}

func (h *Handler) Get(c echo.Context) error {
	b, err := h.svc.GetBatch(c.Request().Context(), c.Param("batch_id"))
	if err != nil {
		return err
	}
	return response.OK(c, "batch retrieved", b)
}

func (h *Handler) History(c echo.Context) error {
	history, err := h.svc.GetBatchHistory(c.Request().Context(), c.Param("batch_id"))
	if err != nil {
		return err
	}
	return response.OK(c, "batch history retrieved", history)
}
