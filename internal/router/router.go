package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusd/internal/handler"
	"focusd/internal/middleware"
	"focusd/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	timerHandler *handler.TimerHandler,
	habitHandler *handler.HabitHandler,
	statsHandler *handler.StatsHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.Auth(authService))

	timer := authed.Group("/timer")
	timer.GET("/state", timerHandler.GetState)
	timer.POST("/start", timerHandler.Start)
	timer.POST("/pause", timerHandler.Pause)
	timer.POST("/reset", timerHandler.Reset)
	timer.POST("/kind", timerHandler.ChangeKind)
	timer.PUT("/settings", timerHandler.UpdateSettings)

	authed.GET("/sessions", timerHandler.GetHistory)
	authed.GET("/stats", statsHandler.GetStats)

	habits := authed.Group("/habits")
	habits.GET("", habitHandler.List)
	habits.POST("", habitHandler.Create)
	habits.DELETE("/:id", habitHandler.Delete)
	habits.POST("/:id/toggle", habitHandler.Toggle)

	return engine
}
