package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/common"
	"github.com/suPer8Hu/collabnote/internal/dispatch"
	"github.com/suPer8Hu/collabnote/internal/httpapi/middleware"
	"github.com/suPer8Hu/collabnote/internal/realtime"
	"gorm.io/gorm"
)

type aiReq struct {
	Input        string          `json:"input"`
	DocumentData json.RawMessage `json:"documentData"`
	RequestID    string          `json:"requestId"`
}

func (h *Handler) parseAI(c *gin.Context) (ai.Kind, aiReq, bool) {
	kind, err := ai.ParseKind(c.Param("kind"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10010, "unknown ai kind")
		return "", aiReq{}, false
	}
	var req aiReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return "", aiReq{}, false
	}
	if kind != ai.KindSummarize && strings.TrimSpace(req.Input) == "" {
		common.Fail(c, http.StatusBadRequest, 10011, "input required")
		return "", aiReq{}, false
	}
	if len(req.RequestID) > 64 {
		common.Fail(c, http.StatusBadRequest, 10012, "request id too long")
		return "", aiReq{}, false
	}
	return kind, req, true
}

// DispatchAI runs the request synchronously. Once the request is accepted it
// answers 200 and failures arrive as an apology in result. Reusing the id of
// a settled request is a 409.
func (h *Handler) DispatchAI(c *gin.Context) {
	kind, req, ok := h.parseAI(c)
	if !ok {
		return
	}
	if err := h.Dispatcher.CheckReusable(c.Request.Context(), c.Param("id"), req.RequestID); err != nil {
		if errors.Is(err, dispatch.ErrRequestSettled) {
			common.Fail(c, http.StatusConflict, 40901, "request already settled")
			return
		}
		// storage trouble surfaces as the apology from Run
		h.Log.Warn().Err(err).Str("room_id", c.Param("id")).Msg("check request id failed")
	}
	out := h.Dispatcher.Run(c.Request.Context(), dispatch.Request{
		RoomID:    c.Param("id"),
		RequestID: req.RequestID,
		Kind:      kind,
		Input:     req.Input,
		Document:  req.DocumentData,
	})
	common.OK(c, gin.H{"requestId": out.RequestID, "result": out.Result})
}

func (h *Handler) SubmitAIJob(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "job queue unavailable")
		return
	}
	kind, req, ok := h.parseAI(c)
	if !ok {
		return
	}
	uid, _ := middleware.UserID(c)

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	job, _, err := h.Jobs.Submit(c.Request.Context(), dispatch.SubmitInput{
		RoomID:         c.Param("id"),
		UserID:         uid,
		Kind:           kind,
		Input:          req.Input,
		Document:       req.DocumentData,
		IdempotencyKey: idempoKey,
	})
	if err != nil {
		h.Log.Error().Err(err).Str("room_id", c.Param("id")).Str("kind", string(kind)).Msg("submit ai job failed")
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
		return
	}
	common.Accepted(c, gin.H{"requestId": job.ID, "status": job.Status})
}

func (h *Handler) GetAIJob(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "job queue unavailable")
		return
	}
	job, err := h.Jobs.Get(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if job.RoomID != c.Param("id") {
		// hide jobs of other rooms
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}
	common.OK(c, gin.H{"job": job})
}

func (h *Handler) GetAIRequest(c *gin.Context) {
	req, err := h.Dispatcher.Lookup(c.Request.Context(), c.Param("id"), c.Param("requestId"))
	if err != nil {
		if errors.Is(err, realtime.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "request not found")
			return
		}
		h.Log.Error().Err(err).Str("room_id", c.Param("id")).Msg("lookup ai request failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, req)
}

// Assist calls the AI backend directly without any room broadcast. Without
// a configured backend url the request's own origin is used.
func (h *Handler) Assist(c *gin.Context) {
	kind, req, ok := h.parseAI(c)
	if !ok {
		return
	}
	msg := h.Backend.Call(c.Request.Context(), requestOrigin(c), ai.Request{
		Kind:     kind,
		Input:    req.Input,
		Document: req.DocumentData,
	})
	common.OK(c, gin.H{"message": msg})
}

func requestOrigin(c *gin.Context) string {
	if o := c.GetHeader("Origin"); o != "" {
		return o
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
