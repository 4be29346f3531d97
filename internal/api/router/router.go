package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/content-orchestrator/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, cors CORSConfig) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(cors))

	r.GET("/health", handler.Health(deps))

	jobHandler := handler.NewJobHandler(deps)
	distributionHandler := handler.NewDistributionHandler(deps)
	eventsHandler := handler.NewEventsHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.POST("/:job_id/reports", jobHandler.ReportJob)
		}

		distributions := v1.Group("/distributions")
		{
			distributions.POST("", distributionHandler.Schedule)
			distributions.GET("/:content_id/posts", distributionHandler.ListPosts)
		}

		v1.GET("/peak-hours/:region/:platform", distributionHandler.PeakHours)
		v1.GET("/events", eventsHandler.Stream)
	}

	return r
}
