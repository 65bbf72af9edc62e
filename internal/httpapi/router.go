package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/collabnote/internal/common"
	"github.com/suPer8Hu/collabnote/internal/httpapi/handlers"
	"github.com/suPer8Hu/collabnote/internal/httpapi/middleware"
)

func NewRouter(deps handlers.Deps) *gin.Engine {
	if !deps.Cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(deps.Log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Log))
	r.Use(middleware.Metrics())

	h := handlers.NewHandler(deps)

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// AI backend contract, public
	proxy := r.Group("/api")
	proxy.Use(middleware.RecoveryWith(deps.Log, handlers.ProxyPanic))
	proxy.POST("/generateContent", h.GenerateContent)
	proxy.POST("/chatToDocument", h.ChatToDocument)
	proxy.POST("/summarizeDocument", h.SummarizeDocument)
	proxy.POST("/translateDocument", h.TranslateDocument)

	// auth
	authGroup := r.Group("/api")
	authGroup.Use(middleware.AuthRequired(deps.Cfg.JWTSecret))
	authGroup.GET("/rooms", h.ListRooms)
	authGroup.POST("/rooms", h.CreateRoom)
	authGroup.POST("/assist/:kind", h.Assist)

	// room scoped (JWT + room access required)
	roomGroup := authGroup.Group("/rooms/:id")
	roomGroup.Use(h.RoomAccess())
	roomGroup.PATCH("", h.RenameRoom)
	roomGroup.POST("/ai/:kind", h.DispatchAI)
	roomGroup.POST("/ai/:kind/jobs", h.SubmitAIJob)
	roomGroup.GET("/ai/jobs/:jobId", h.GetAIJob)
	roomGroup.GET("/ai/requests/:requestId", h.GetAIRequest)
	roomGroup.GET("/events", h.RoomEvents)
	return r
}
