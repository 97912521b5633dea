package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"fleettemp/config"
	"fleettemp/middleware"
	"fleettemp/services"
	"fleettemp/store"
)

type Deps struct {
	Log    *slog.Logger
	Reader store.Reader
	// DB backs the users table; auth routes are not mounted when nil.
	DB    *gorm.DB
	Cache *services.CacheService
	// Auth guards the data routes and the live feed. A nil Auth serves them
	// without a token.
	Auth *services.AuthService
	CORS config.CORSConfig
}

// NewRouter mounts the query API. Telemetry routes require a bearer token
// unless Deps.Auth is nil.
func NewRouter(d Deps) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.SetupCORS(d.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "fleet telemetry API is running",
		})
	})

	if d.DB != nil && d.Auth != nil {
		auth := NewAuthHandler(d.DB, d.Auth)
		authGroup := router.Group("/api/auth")
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", auth.Login)
		authGroup.POST("/logout", auth.Logout)
	}

	telemetry := NewTelemetryHandler(d.Reader, d.Cache, d.Log)
	api := router.Group("/api")
	if d.Auth != nil {
		api.Use(middleware.RequireAuth(d.Auth))
	}
	api.GET("/vehicles", telemetry.ListVehicles)
	vehicle := api.Group("/vehicles/:plate")
	vehicle.GET("/telemetry", telemetry.GetTelemetry)
	vehicle.GET("/gaps", telemetry.GetGaps)
	vehicle.GET("/display", telemetry.GetDisplay)
	vehicle.GET("/summary", telemetry.GetSummary)
	vehicle.GET("/excursions", telemetry.GetExcursions)
	vehicle.GET("/export", telemetry.Export)

	router.GET("/ws/live", LiveWebSocket(d.Cache, d.Auth, d.Log))
	return router
}
