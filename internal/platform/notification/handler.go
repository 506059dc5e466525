package notification

import (
	"strconv"

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
	g := api.Group("/notifications", auth.RequirePermission(auth.OpReadNotifications))
	g.GET("", h.List)
	g.POST("/read-all", h.MarkAllRead)
	g.POST("/:id/read", h.MarkRead)
	g.DELETE("/:id", h.Delete)
}

func notificationID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound("notification %s not found", c.Param("id"))
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	unreadOnly, _ := strconv.ParseBool(c.QueryParam("unread_only"))
	items, total, err := h.svc.List(c.Request().Context(), unreadOnly, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Notification{}
	}
	return response.OK(c, "notifications retrieved", pagination.NewPage(items, total, p))
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := notificationID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.MarkRead(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, "notification marked as read", n)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	count, err := h.svc.MarkAllRead(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, "notifications marked as read", map[string]int{"updated": count})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := notificationID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return response.OK(c, "notification deleted", nil)
}
