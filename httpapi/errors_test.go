package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavehub/weave/apperr"
)

func TestWriteErr_MapsKindToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.NewForbidden("nope"), http.StatusForbidden},
		{apperr.NewNotFound("missing"), http.StatusNotFound},
		{apperr.NewInvalidInput("bad"), http.StatusBadRequest},
		{apperr.NewLastOwner("last"), http.StatusConflict},
		{apperr.WrapUpstream(assert.AnError, "upstream"), http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, writeErr(c, tc.err))
		assert.Equal(t, tc.status, rec.Code)
	}
}

func TestActorFromContext_RoundTrips(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	_, ok := ActorFromContext(c)
	assert.False(t, ok, "no actor set yet")

	SetActor(c, actorFixture())
	actor, ok := ActorFromContext(c)
	require.True(t, ok)
	assert.Equal(t, "user-1", actor.Identity)
}
