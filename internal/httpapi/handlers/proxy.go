package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// The proxy routes implement the AI backend contract themselves and answer
// {message} or {error}, not the API envelope.

const internalServerError = "Internal server error"

type generateReq struct {
	Prompt       string          `json:"prompt"`
	DocumentData json.RawMessage `json:"documentData"`
}

type chatReq struct {
	Question     string          `json:"question"`
	DocumentData json.RawMessage `json:"documentData"`
}

type summarizeReq struct {
	DocumentData json.RawMessage `json:"documentData"`
}

type translateReq struct {
	TargetLang   string          `json:"targetLang"`
	DocumentData json.RawMessage `json:"documentData"`
}

func proxyError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// ProxyPanic is the recovery response of the proxy routes.
func ProxyPanic(c *gin.Context) {
	proxyError(c, http.StatusInternalServerError, internalServerError)
}

func (h *Handler) bindProxy(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.Log.Error().Err(err).Str("path", c.FullPath()).Msg("unreadable proxy request body")
		proxyError(c, http.StatusInternalServerError, internalServerError)
		return false
	}
	return true
}

func (h *Handler) GenerateContent(c *gin.Context) {
	var req generateReq
	if !h.bindProxy(c, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		proxyError(c, http.StatusBadRequest, "Prompt is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": h.Responder.Generate(req.Prompt, req.DocumentData)})
}

func (h *Handler) ChatToDocument(c *gin.Context) {
	var req chatReq
	if !h.bindProxy(c, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		proxyError(c, http.StatusBadRequest, "Question is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": h.Responder.Answer(req.Question, req.DocumentData)})
}

func (h *Handler) SummarizeDocument(c *gin.Context) {
	var req summarizeReq
	if !h.bindProxy(c, &req) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": h.Responder.Summarize(req.DocumentData)})
}

func (h *Handler) TranslateDocument(c *gin.Context) {
	var req translateReq
	if !h.bindProxy(c, &req) {
		return
	}
	if strings.TrimSpace(req.TargetLang) == "" {
		proxyError(c, http.StatusBadRequest, "Target language is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": h.Responder.Translate(req.TargetLang, req.DocumentData)})
}
