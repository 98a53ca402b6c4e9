package delivery

import (
	"time"

	"adinsights/internal/delivery/middleware"
	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// queryTimeout bounds aggregation requests. Sync runs are not bounded here;
// they stop between accounts when the client goes away.
const queryTimeout = 30 * time.Second

type HTTPRouter struct {
	handlers *HTTPHandlers
	logger   *logger.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	mode     string
}

func NewHTTPRouter(handlers *HTTPHandlers, logger *logger.Logger, metrics *metrics.Metrics, gatherer prometheus.Gatherer, mode string) *HTTPRouter {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	return &HTTPRouter{
		handlers: handlers,
		logger:   logger,
		metrics:  metrics,
		gatherer: gatherer,
		mode:     mode,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	gin.SetMode(r.mode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "X-Request-ID"}
	config.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(cors.New(config))

	// Health endpoint
	router.GET("/health", r.handlers.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/", r.handlers.GetAPIInfo)
		v1.GET("", r.handlers.GetAPIInfo)

		// Sync endpoints
		sync := v1.Group("/sync")
		{
			sync.POST("/run", r.handlers.RunSync)
		}

		v1.GET("/accounts", middleware.Timeout(queryTimeout), r.handlers.ListAccounts)

		// Aggregation endpoints
		metricsGroup := v1.Group("/metrics", middleware.Timeout(queryTimeout))
		{
			metricsGroup.GET("/summary", r.handlers.GetSummary)
			metricsGroup.GET("/trend", r.handlers.GetTrend)
			metricsGroup.GET("/breakdown", r.handlers.GetBreakdown)
			metricsGroup.GET("/daily", r.handlers.GetDailySeries)
			metricsGroup.GET("/dashboard", r.handlers.GetDashboard)
		}
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler(r.gatherer))

	return router
}
