package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/weavehub/weave/apperr"
	"github.com/weavehub/weave/collection"
	"github.com/weavehub/weave/permission"
)

func registerCollectionRoutes(g *echo.Group, h *Handlers) {
	collections := g.Group("/collections")
	collections.POST("", h.createCollection)
	collections.GET("", h.listCollections)
	collections.GET("/:id", h.getCollection)
	collections.DELETE("/:id", h.deleteCollection)
	collections.POST("/:id/search", h.searchCollection)
	collections.GET("/:id/documents/:docID", h.getDocument)
	collections.DELETE("/:id/documents/:docID", h.deleteDocument)
}

type createCollectionRequest struct {
	Name     string         `json:"name"`
	Metadata collection.JSON `json:"metadata"`
}

func (h *Handlers) createCollection(c echo.Context) error {
	var req createCollectionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	actor, _ := ActorFromContext(c)
	ctx := c.Request().Context()

	col, err := h.Collections.CreateCollection(ctx, req.Name, actor.Identity, req.Metadata)
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Permissions.GrantOwner(ctx, actor, permission.TargetCollection, col.ID); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, col)
}

func (h *Handlers) listCollections(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	rows, err := h.Collections.ListCollectionsByOwner(c.Request().Context(), actor.Identity)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"collections": rows})
}

func (h *Handlers) getCollection(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	ctx := c.Request().Context()
	id := c.Param("id")

	ok, err := h.Permissions.CanAccess(ctx, actor, permission.TargetCollection, id, permission.LevelViewer)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return writeErr(c, apperr.NewForbidden("insufficient permission"))
	}

	col, err := h.Collections.GetCollection(ctx, id)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, col)
}

func (h *Handlers) deleteCollection(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	ctx := c.Request().Context()
	id := c.Param("id")

	ok, err := h.Permissions.CanAccess(ctx, actor, permission.TargetCollection, id, permission.LevelOwner)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return writeErr(c, apperr.NewForbidden("insufficient permission"))
	}
	if err := h.Collections.DeleteCollection(ctx, id); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) getDocument(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	ctx := c.Request().Context()

	ok, err := h.Permissions.CanAccess(ctx, actor, permission.TargetCollection, c.Param("id"), permission.LevelViewer)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return writeErr(c, apperr.NewForbidden("insufficient permission"))
	}

	doc, err := h.Collections.GetDocument(ctx, c.Param("docID"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handlers) deleteDocument(c echo.Context) error {
	actor, _ := ActorFromContext(c)
	if err := h.Upserter.DeleteDocument(c.Request().Context(), actor, c.Param("id"), c.Param("docID")); err != nil {
		return writeErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type searchRequest struct {
	Mode                    collection.SearchMode `json:"mode"`
	Query                   string                `json:"query"`
	Keywords                []string              `json:"keywords"`
	Limit                   int                   `json:"limit"`
	ReturnSurroundingContext bool                 `json:"return_surrounding_context"`
	MaxContextCharacters    int                   `json:"max_context_characters"`
	FormatChunksForLLM      bool                  `json:"format_chunks_for_llm"`
	SemanticWeight          float64               `json:"semantic_weight"`
}

func (h *Handlers) searchCollection(c echo.Context) error {
	var req searchRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	actor, _ := ActorFromContext(c)
	ctx := c.Request().Context()
	id := c.Param("id")

	ok, err := h.Permissions.CanAccess(ctx, actor, permission.TargetCollection, id, permission.LevelViewer)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return writeErr(c, apperr.NewForbidden("insufficient permission"))
	}

	results, err := h.Searcher.Search(ctx, collection.SearchOptions{
		Mode:               req.Mode,
		CollectionIDs:      []string{id},
		Query:              req.Query,
		Keywords:           req.Keywords,
		K:                  req.Limit,
		HybridWeight:       req.SemanticWeight,
		PreferFullDocument: req.ReturnSurroundingContext,
		MaxCharacters:      req.MaxContextCharacters,
	})
	if err != nil {
		return writeErr(c, err)
	}

	if req.FormatChunksForLLM {
		return c.JSON(http.StatusOK, echo.Map{"results": results, "markdown": collection.RenderMarkdown(results)})
	}
	return c.JSON(http.StatusOK, echo.Map{"results": results})
}
