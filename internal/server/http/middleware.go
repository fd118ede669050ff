package http

import (
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// requireAuth rejects requests without a valid credential and stores the
// principal in the context.
func (h *Handler) requireAuth(c *gin.Context) {
	p, err := h.auth.Authorize(c.Request.Header)
	if err != nil {
		h.writeMappedError(c, err, "authorization failed")
		return
	}
	c.Set(principalKey, p)
	c.Next()
}

func principal(c *gin.Context) auth.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(auth.Principal); ok {
			return p
		}
	}
	return auth.Principal{}
}

func (h *Handler) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.logger.Debug(c.Request.Context(), "request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}
