package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"pmv/internal/backend"
	"pmv/internal/handler"
	"pmv/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	JourneyHandler *handler.JourneyHandler
	VehicleHandler *handler.VehicleHandler
	Idempotency    middleware.ResponseStore
	NewRelicApp    *newrelic.Application
	Logger         *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicErrorMiddleware())
	}

	router.Use(middleware.IdempotencyMiddleware(deps.Idempotency, deps.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		journey := v1.Group("/journey")
		{
			journey.GET("", deps.JourneyHandler.GetJourney)
			journey.POST("/scan", deps.JourneyHandler.Scan)
			journey.POST("/station", deps.JourneyHandler.BroadcastStation)
			journey.POST("/start", deps.JourneyHandler.StartDriving)
			journey.POST("/stop", deps.JourneyHandler.StopDriving)
			journey.POST("/unpair", deps.JourneyHandler.UnPair)
			journey.POST("/payment", deps.JourneyHandler.SelectPayment)
			journey.GET("/receipt", deps.JourneyHandler.GetReceipt)
		}

		vehicles := v1.Group("/vehicles")
		{
			vehicles.POST("", deps.VehicleHandler.Register)
			vehicles.GET("/nearby", deps.VehicleHandler.Nearby)
			vehicles.POST("/:id/location", deps.VehicleHandler.UpdateLocation)
			vehicles.GET("/:id/availability", deps.VehicleHandler.GetAvailability)
		}
	}

	return router
}

// Ensure the backend serves the vehicle endpoints.
var _ handler.Fleet = (*backend.Server)(nil)
