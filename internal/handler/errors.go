package handler

import (
	"errors"
	"io"
	"net/http"

	"requisition/internal/middleware"
	"requisition/internal/workflow"
	"requisition/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusFor maps workflow error kinds onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Invalid transitions and conflicts carry the
// request's current stage and status so the client can refresh instead of guessing.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, response.Error(status, "Internal server error"))
		return
	}

	details := gin.H{}
	if stage, st, ok := workflow.StateOf(err); ok {
		details["stage"] = stage
		details["status"] = st
	}
	if errors.Is(err, workflow.ErrConflict) {
		details["retryable"] = true
	}
	if len(details) == 0 {
		c.JSON(status, response.Error(status, err.Error()))
		return
	}
	c.JSON(status, response.ErrorWithDetails(status, err.Error(), details))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}

// actorID returns the authenticated user, writing a 401 when there is none
func actorID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, middleware.ErrMissingToken.Error()))
	}
	return id, ok
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+": "+c.Param(name))
		return uuid.Nil, false
	}
	return id, true
}

// bindOptional binds a JSON body when there is one; an empty body leaves dst zeroed
func bindOptional(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

func bindRequired(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}
