package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterOptions struct {
	JWTSecret   string
	CORSOrigins []string
}

func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(handler.logger))
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	SetupRoutes(router, handler, opts.JWTSecret)
	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler, jwtSecret string) {
	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/suburbs/metrics", handler.ListSuburbMetrics)
		api.GET("/suburbs/:postcode/metrics", handler.GetSuburbMetrics)
		api.GET("/suburbs/geojson", handler.GetSuburbGeoJSON)
		api.GET("/locations", handler.ListLocations)
		api.GET("/states", handler.ListStates)
	}

	protected := api.Group("", JWTAuthMiddleware(jwtSecret))
	{
		protected.POST("/locations", handler.CreateLocation)
		protected.POST("/workflows/suburb-metrics", handler.RunSuburbMetrics)
		protected.POST("/workflows/listing-sync", handler.RunListingSync)
		protected.POST("/workflows/demographics-sync", handler.RunDemographicsSync)
		protected.GET("/workflows/jobs/:id", handler.GetJob)
		protected.POST("/notifications/test", handler.TestNotification)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
