package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weavehub/weave/jobqueue"
)

func registerJobRoutes(g *echo.Group, h *Handlers) {
	jobs := g.Group("/jobs")
	jobs.POST("", h.submitJob)
	jobs.GET("/:id", h.getJob)
	jobs.GET("", h.listJobs)
	jobs.POST("/:id/cancel", h.cancelJob)
}

type submitJobRequest struct {
	CollectionID            string `json:"collection_id"`
	Type                    string `json:"type"`
	InputData               string `json:"input_data"`
	ProcessingOptions       string `json:"processing_options"`
	EstimatedDurationSecond int    `json:"estimated_duration_seconds"`
}

func (h *Handlers) submitJob(c echo.Context) error {
	var req submitJobRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	actor, _ := ActorFromContext(c)

	job, err := h.Jobs.Submit(c.Request().Context(), actor, jobqueue.SubmitInput{
		UserID:                  actor.Identity,
		CollectionID:            req.CollectionID,
		Type:                    req.Type,
		InputData:               req.InputData,
		ProcessingOptions:       req.ProcessingOptions,
		EstimatedDurationSecond: req.EstimatedDurationSecond,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

func (h *Handlers) getJob(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	job, err := h.Jobs.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handlers) listJobs(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	jobs, err := h.Jobs.List(c.Request().Context(), actor, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"jobs": jobs})
}

func (h *Handlers) cancelJob(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	if err := h.Jobs.Cancel(c.Request().Context(), actor, c.Param("id")); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job_id": c.Param("id"), "success": true})
}
