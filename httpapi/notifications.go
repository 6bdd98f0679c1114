package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weavehub/weave/notification"
)

func registerNotificationRoutes(g *echo.Group, h *Handlers) {
	notifications := g.Group("/notifications")
	notifications.GET("", h.listNotifications)
	notifications.GET("/unread-count", h.unreadCount)
	notifications.POST("/:id/accept", h.acceptNotification)
	notifications.POST("/:id/reject", h.rejectNotification)
	notifications.DELETE("/:id", h.deleteNotification)
}

func (h *Handlers) listNotifications(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	ctx := c.Request().Context()

	var status *notification.Status
	if raw := c.QueryParam("status"); raw != "" {
		s := notification.Status(raw)
		status = &s
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	result, err := h.Notifications.List(ctx, actor.Identity, status, limit, offset)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notifications": result.Notifications,
		"total_count":   result.TotalCount,
		"pending_count": result.PendingCount,
	})
}

func (h *Handlers) unreadCount(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	count, err := h.Notifications.UnreadCount(c.Request().Context(), actor.Identity)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread_count": count})
}

func (h *Handlers) acceptNotification(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	result, err := h.Notifications.Accept(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, acceptResponse(result))
}

func (h *Handlers) rejectNotification(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	if err := h.Notifications.Reject(c.Request().Context(), actor, c.Param("id")); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notification_id": c.Param("id"), "success": true})
}

// deleteNotification is an admin-only hard delete: a service principal can
// permanently remove a notification row, distinct from reject which leaves
// a rejected record the recipient can still see.
func (h *Handlers) deleteNotification(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	if err := h.Notifications.Delete(c.Request().Context(), actor, c.Param("id")); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func acceptResponse(r *notification.AcceptResult) echo.Map {
	resp := echo.Map{
		"notification_id":    r.NotificationID,
		"action":             r.Action,
		"success":            r.Success,
		"message":            r.Message,
		"permission_granted": r.PermissionGranted,
	}
	if r.NextAction != "" {
		resp["next_action"] = r.NextAction
	}
	if r.RequiresGraphFirst {
		resp["requires_graph_first"] = r.RequiresGraphFirst
	}
	if r.RelatedGraphNotificationID != "" {
		resp["related_graph_notification_id"] = r.RelatedGraphNotificationID
	}
	return resp
}
