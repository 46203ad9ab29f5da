package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/scrapequeue/internal/api/handler"
)

// ServiceName is reported by the health endpoint
const ServiceName = "scrapequeue-api"

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", handler.Health(ServiceName, deps.DBClient, deps.Logger))
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/batches - Submit URLs and queue the created jobs
		v1.POST("/batches", jobHandler.SubmitBatch)

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/stats - Count jobs per status
			jobs.GET("/stats", jobHandler.JobStats)

			// GET /api/v1/jobs/:external_job_id - Get job details
			jobs.GET("/:external_job_id", jobHandler.GetJob)
		}
	}

	return r
}
