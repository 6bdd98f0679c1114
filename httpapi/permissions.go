package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weavehub/weave/permission"
)

// registerPermissionRoutes wires the public-permission admin surface, one
// group per resource kind as spec.md §6 describes.
func registerPermissionRoutes(g *echo.Group, h *Handlers) {
	for _, kind := range []permission.TargetType{permission.TargetGraph, permission.TargetAssistant, permission.TargetCollection} {
		kind := kind
		group := g.Group("/public-permissions/" + string(kind))
		group.GET("", h.listPublicPermissions(kind))
		group.POST("", h.createPublicPermission(kind))
		group.POST("/:id/revoke", h.revokePublicPermission(kind))
		group.POST("/:id/reinvoke", h.reinvokePublicPermission(kind))
		group.POST("/:id/backfill", h.backfillPublicPermission(kind))
	}
}

func (h *Handlers) listPublicPermissions(kind permission.TargetType) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, _ := ActorFromContext(c)
		rows, err := h.PublicPermissions.List(c.Request().Context(), actor, kind)
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"public_permissions": rows})
	}
}

type createPublicPermissionRequest struct {
	TargetID string           `json:"target_id"`
	Level    permission.Level `json:"level"`
	Notes    string           `json:"notes"`
}

func (h *Handlers) createPublicPermission(kind permission.TargetType) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createPublicPermissionRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		actor, _ := ActorFromContext(c)
		granted, err := h.PublicPermissions.Create(c.Request().Context(), actor, kind, req.TargetID, req.Level, req.Notes)
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusCreated, echo.Map{"target_id": req.TargetID, "users_granted": granted})
	}
}

type revokePublicPermissionRequest struct {
	RevokeMode string `json:"revoke_mode"`
}

func (h *Handlers) revokePublicPermission(kind permission.TargetType) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req revokePublicPermissionRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		actor, _ := ActorFromContext(c)
		if err := h.PublicPermissions.Revoke(c.Request().Context(), actor, kind, c.Param("id"), req.RevokeMode); err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"target_id": c.Param("id"), "success": true})
	}
}

func (h *Handlers) reinvokePublicPermission(kind permission.TargetType) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, _ := ActorFromContext(c)
		if err := h.PublicPermissions.Reinvoke(c.Request().Context(), actor, kind, c.Param("id")); err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"target_id": c.Param("id"), "success": true})
	}
}

func (h *Handlers) backfillPublicPermission(kind permission.TargetType) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, _ := ActorFromContext(c)
		granted, err := h.PublicPermissions.Backfill(c.Request().Context(), actor, kind, c.Param("id"))
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"target_id": c.Param("id"), "users_granted": granted})
	}
}
