package app

import (
	"github.com/gin-gonic/gin"

	"github.com/studyloop/reviewquiz-backend/internal/handlers"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/middleware"
	"github.com/studyloop/reviewquiz-backend/internal/server"
)

type Handlers struct {
	Events *handlers.EventsHandler
	Jobs   *handlers.JobsHandler
}

func wireHandlers(serviceset Services, reposet Repos) Handlers {
	return Handlers{
		Events: handlers.NewEventsHandler(serviceset.Events),
		Jobs:   handlers.NewJobsHandler(reposet.JobRun),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) *middleware.AuthMiddleware {
	return middleware.NewAuthMiddleware(log, cfg.JWTSecretKey, cfg.JWTIssuer)
}

func wireRouter(cfg Config, handlerset Handlers, auth *middleware.AuthMiddleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:    cfg.ServiceName,
		AllowOrigins:   cfg.AllowOrigins,
		AuthMiddleware: auth,
		EventsHandler:  handlerset.Events,
		JobsHandler:    handlerset.Jobs,
	})
}
