package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func registerMirrorRoutes(g *echo.Group, h *Handlers) {
	g.POST("/sync/incremental", h.syncIncremental)
	g.POST("/sync/full", h.syncFull)
	g.POST("/sync/assistant/:id", h.syncAssistant)
	g.POST("/sync/graph/:id", h.syncGraph)
	g.POST("/sync/cleanup", h.syncCleanup)
	g.GET("/cache-state", h.cacheState)
}

func (h *Handlers) syncIncremental(c echo.Context) error {
	stats, err := h.Mirror.SyncIncremental(c.Request().Context(), queryInt(c, "limit", 100))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handlers) syncFull(c echo.Context) error {
	stats, err := h.Mirror.SyncFull(c.Request().Context(), queryInt(c, "limit", 500))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handlers) syncAssistant(c echo.Context) error {
	stats, err := h.Mirror.SyncAssistant(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handlers) syncGraph(c echo.Context) error {
	stats, err := h.Mirror.SyncGraph(c.Request().Context(), c.Param("id"), queryInt(c, "limit", 500))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

type syncCleanupRequest struct {
	GraceDays int `json:"grace_days"`
}

func (h *Handlers) syncCleanup(c echo.Context) error {
	var req syncCleanupRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.GraceDays <= 0 {
		req.GraceDays = 30
	}
	result, err := h.Mirror.CleanupStaleMirrors(c.Request().Context(), req.GraceDays)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handlers) cacheState(c echo.Context) error {
	state, err := h.Mirror.GetCacheState(c.Request().Context())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"graphs_version":     state.GraphsVersion,
		"assistants_version": state.AssistantsVersion,
		"schemas_version":    state.SchemasVersion,
		"threads_version":    state.ThreadsVersion,
		"last_synced_at":     state.UpdatedAt,
	})
}
