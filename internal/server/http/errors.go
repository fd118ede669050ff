package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/retryx"
	"github.com/gin-gonic/gin"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// mapDomainError translates a service error into an HTTP status and a
// user-facing message. It returns (0, "") for unrecognized errors.
func mapDomainError(err error) (int, string) {
	switch {
	case err == nil:
		return 0, ""
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrTokenInvalid),
		errors.Is(err, common.ErrRangeInvalid),
		errors.Is(err, common.ErrRangeMismatch),
		errors.Is(err, common.ErrChunkLength),
		errors.Is(err, common.ErrChunkSizeMismatch),
		errors.Is(err, common.ErrSizeMismatch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, common.ErrDownloadDeclined):
		return http.StatusForbidden, "Download declined"
	case errors.Is(err, common.ErrMisconfigured):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, common.ErrAuthentication):
		return http.StatusBadGateway, "storage authentication failed"
	}

	var re *retryx.Error
	if errors.As(err, &re) {
		return http.StatusBadGateway, "storage backend error"
	}
	return 0, ""
}

// writeMappedError aborts the request with the mapped status, falling back
// to 500 and defaultMsg. Backend and unknown errors carry their text as detail.
func (h *Handler) writeMappedError(c *gin.Context, err error, defaultMsg string) {
	status, msg := mapDomainError(err)
	body := errorResponse{Error: msg}

	switch {
	case status == 0:
		status = http.StatusInternalServerError
		body = errorResponse{Error: defaultMsg, Detail: err.Error()}
	case status == http.StatusUnauthorized:
		body.Detail = "Provide Authorization or x-authorization header"
	case status >= http.StatusInternalServerError && msg != err.Error():
		body.Detail = err.Error()
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), defaultMsg, "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}
