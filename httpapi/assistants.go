package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weavehub/weave/apperr"
)

func registerAssistantRoutes(g *echo.Group, h *Handlers) {
	assistants := g.Group("/assistants")
	assistants.GET("/:id/versions", h.assistantVersions)
	assistants.POST("/:id/restore", h.restoreAssistant)
	assistants.GET("/:id/schemas", h.assistantSchemas)
}

func (h *Handlers) assistantVersions(c echo.Context) error {
	history, err := h.Mirror.VersionHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"versions": history})
}

type restoreAssistantRequest struct {
	Version       int    `json:"version"`
	CommitMessage string `json:"commit_message"`
}

func (h *Handlers) restoreAssistant(c echo.Context) error {
	var req restoreAssistantRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	snapshot, err := h.Mirror.Restore(c.Request().Context(), c.Param("id"), req.Version, req.CommitMessage)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (h *Handlers) assistantSchemas(c echo.Context) error {
	doc, err := h.Mirror.GetSchemas(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	if doc == nil {
		return writeErr(c, apperr.NewNotFound("no schemas recorded for assistant %s", c.Param("id")))
	}
	return c.JSON(http.StatusOK, doc)
}
