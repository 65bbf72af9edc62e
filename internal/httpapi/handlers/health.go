package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/collabnote/internal/common"
)

func (h *Handler) Ping(c *gin.Context) {
	status := gin.H{"pong": true}
	if h.Transport != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Transport.Ping(ctx); err != nil {
			h.Log.Warn().Err(err).Msg("realtime transport ping failed")
			common.Fail(c, http.StatusServiceUnavailable, 50300, "realtime unavailable")
			return
		}
	}
	common.OK(c, status)
}
