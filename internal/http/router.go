package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/trainwatch-backend/internal/http/handlers"
	httpMW "github.com/yungbote/trainwatch-backend/internal/http/middleware"
	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	EventHandler    *httpH.EventHandler
	TraineeHandler  *httpH.TraineeHandler
	ProgramHandler  *httpH.ProgramHandler
	InsightsHandler *httpH.InsightsHandler
	DriftHandler    *httpH.DriftHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log, "/healthcheck", "/metrics"))
	r.Use(httpMW.Metrics(cfg.Metrics, "/metrics", "/healthcheck"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Ingestion
		if cfg.EventHandler != nil {
			api.POST("/events", cfg.EventHandler.Ingest)
			api.POST("/analytics/rewind", cfg.EventHandler.TrackRewind)
		}

		// Trainees
		if cfg.TraineeHandler != nil {
			api.GET("/trainees/:id", cfg.TraineeHandler.GetTrainee)
			api.POST("/trainees/:id/sessions", cfg.TraineeHandler.AssignSession)
			api.PUT("/trainees/:id/cluster", cfg.TraineeHandler.AssignCluster)
		}

		// Programs and trainers
		if cfg.ProgramHandler != nil {
			api.POST("/programs", cfg.ProgramHandler.CreateProgram)
			api.GET("/programs/:id", cfg.ProgramHandler.GetProgram)
			api.POST("/programs/:id/sessions", cfg.ProgramHandler.AddSession)
			api.GET("/trainers/:id", cfg.ProgramHandler.GetTrainer)
			api.GET("/trainers/:id/programs", cfg.ProgramHandler.ListTrainerPrograms)
			api.GET("/trainers/:id/sessions", cfg.ProgramHandler.ListTrainerSessions)
		}

		// Insights
		if cfg.InsightsHandler != nil {
			api.GET("/programs/:id/insights/concepts", cfg.InsightsHandler.Concepts)
			api.GET("/programs/:id/insights/clusters", cfg.InsightsHandler.Clusters)
		}

		// Drift
		if cfg.DriftHandler != nil {
			api.GET("/drift", cfg.DriftHandler.Check)
			api.POST("/drift/repair", cfg.DriftHandler.Repair)
		}
	}

	return r
}
