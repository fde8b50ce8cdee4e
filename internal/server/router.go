package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/studyloop/reviewquiz-backend/internal/handlers"
	"github.com/studyloop/reviewquiz-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName    string
	AllowOrigins   []string
	AuthMiddleware *middleware.AuthMiddleware
	EventsHandler  *handlers.EventsHandler
	JobsHandler    *handlers.JobsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireServiceToken())
	{
		api.POST("/events/flag", cfg.EventsHandler.FlagChanged)
		api.POST("/events/attempt", cfg.EventsHandler.AttemptSubmitted)
		api.POST("/events/quiz-view", cfg.EventsHandler.QuizViewed)
		api.GET("/jobs/:id", cfg.JobsHandler.GetJobByID)
	}

	return router
}
