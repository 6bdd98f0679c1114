// Package httpapi provides the Echo-based HTTP surface described in spec.md
// §6, wiring the permission, notification, collection, ingestion, jobqueue
// and mirror services behind bearer-token authentication.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/weavehub/weave/auth"
	"github.com/weavehub/weave/collection"
	"github.com/weavehub/weave/common"
	"github.com/weavehub/weave/ingestion"
	"github.com/weavehub/weave/jobqueue"
	"github.com/weavehub/weave/mirror"
	"github.com/weavehub/weave/notification"
	"github.com/weavehub/weave/permission"
	"github.com/weavehub/weave/security"
)

// Handlers holds every service collaborator a route handler can reach into.
// It is the httpapi analogue of the teacher's api.Handlers struct.
type Handlers struct {
	Auth              *auth.Service
	OIDC              *security.OIDCProvider
	Permissions       *permission.Engine
	PublicPermissions *permission.Materializer
	Notifications     *notification.Service
	Collections       *collection.Store
	Searcher          *collection.Searcher
	Upserter          *collection.Upserter
	Ingestion         *ingestion.Pipeline
	Jobs              *jobqueue.Service
	Mirror            *mirror.Service
	Logger            *common.ContextLogger
}

// NewServer builds the Echo instance and registers every route in spec.md
// §6. Public routes need no bearer token; everything else sits behind
// RequireActor.
func NewServer(h *Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(RequestLogging(h.Logger))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	api := e.Group("")
	api.Use(RequireActor(h.Auth, h.OIDC))

	registerNotificationRoutes(api, h)
	registerPermissionRoutes(api, h)
	registerCollectionRoutes(api, h)
	registerJobRoutes(api, h)
	registerAssistantRoutes(api, h)
	registerMirrorRoutes(api, h)

	return e
}

func bindJSON(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
