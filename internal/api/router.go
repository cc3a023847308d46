// Package api provides HTTP routing and server configuration for the access
// engine. It wires together handlers, middleware, and services to create the
// application's API endpoints.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jjesus1982/conecta-plus-sub001/internal/api/handlers"
	"github.com/jjesus1982/conecta-plus-sub001/internal/api/middleware"
	"github.com/jjesus1982/conecta-plus-sub001/internal/audit"
	"github.com/jjesus1982/conecta-plus-sub001/internal/config"
	"github.com/jjesus1982/conecta-plus-sub001/internal/database"
	"github.com/jjesus1982/conecta-plus-sub001/internal/events"
	"github.com/jjesus1982/conecta-plus-sub001/internal/identity"
	"github.com/jjesus1982/conecta-plus-sub001/internal/registry"
	"github.com/jjesus1982/conecta-plus-sub001/internal/service"
	"go.uber.org/zap"
)

// Deps carries the long-lived components the router wires handlers to.
type Deps struct {
	Config      *config.Config
	DB          *database.Database
	Identity    *identity.Store
	Registry    *registry.Registry
	AuditLog    *audit.Log
	Hub         *events.Hub
	Broadcaster *events.Broadcaster
	Logger      *zap.Logger
}

// NewRouter creates and configures the HTTP router
func NewRouter(d Deps) *gin.Engine {
	// Set Gin mode
	if d.Config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(d.Logger))
	router.Use(middleware.CORSMiddleware(d.Config))

	// Initialize services
	userService := service.NewUserService(d.DB, d.Config)

	// Try to load JWT secret from database if it exists
	_ = userService.LoadJWTSecret()

	validationService := service.NewValidationService(d.Identity, d.Registry, d.AuditLog, d.Broadcaster, d.Config, d.Logger)
	emergencyService := service.NewEmergencyService(d.Registry, d.AuditLog, d.Broadcaster, d.Logger)
	personService := service.NewPersonService(d.Identity, d.AuditLog, d.Broadcaster, d.Logger)

	// Initialize handlers
	setupHandler := handlers.NewSetupHandler(userService, d.Logger)
	authHandler := handlers.NewAuthHandler(userService, d.Logger)
	validateHandler := handlers.NewValidateHandler(validationService, d.Logger)
	personHandler := handlers.NewPersonHandler(personService, d.Logger)
	pointHandler := handlers.NewAccessPointHandler(d.Registry, d.AuditLog, d.Broadcaster, d.Logger)
	emergencyHandler := handlers.NewEmergencyHandler(emergencyService, d.Logger)
	logHandler := handlers.NewLogHandler(d.AuditLog, d.Logger)
	healthHandler := handlers.NewHealthHandler(d.DB, d.Hub)
	wsHandler := handlers.NewWSHandler(d.Hub, d.Logger)

	// Public routes
	public := router.Group("/api/v1")
	{
		// Setup routes (no auth required)
		public.GET("/setup/status", setupHandler.GetStatus)
		public.POST("/setup", setupHandler.PerformSetup)

		// Auth routes
		public.POST("/auth/login", authHandler.Login)

		// Liveness
		public.GET("/health", healthHandler.Get)

		// Validation endpoints called by on-site vendor adapters. They sit
		// inside the perimeter network, and a decision must not hinge on
		// token refresh against the same service that is being asked.
		public.POST("/validate/credential", validateHandler.ValidateCredential)
		public.POST("/validate/plate", validateHandler.ValidatePlate)
	}

	// Protected routes (require authentication)
	protected := router.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(d.Config))
	{
		// Auth
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		// Persons and visitors
		protected.POST("/persons", personHandler.CreatePerson)
		protected.GET("/persons", personHandler.ListPersons)
		protected.GET("/persons/:id", personHandler.GetPerson)
		protected.PUT("/persons/:id", personHandler.UpdatePerson)
		protected.PUT("/persons/:id/block", personHandler.BlockPerson)
		protected.PUT("/persons/:id/unblock", personHandler.UnblockPerson)
		protected.PUT("/persons/:id/rules", personHandler.UpdateRules)
		protected.POST("/persons/:id/credentials", personHandler.AddCredential)
		protected.DELETE("/persons/:id/credentials/:credentialId", personHandler.RemoveCredential)
		protected.POST("/persons/:id/vehicles", personHandler.AddVehicle)
		protected.GET("/persons/:id/vehicles", personHandler.ListVehicles)
		protected.POST("/visitors", personHandler.CreateVisitor)
		protected.PUT("/visitors/:id/checkout", personHandler.CheckoutVisitor)

		// Vehicles
		protected.PUT("/vehicles/:plate/authorized", personHandler.SetVehicleAuthorized)

		// Access points and controllers
		protected.POST("/access-points", pointHandler.CreateAccessPoint)
		protected.GET("/access-points", pointHandler.ListAccessPoints)
		protected.GET("/access-points/:id", pointHandler.GetAccessPoint)
		protected.PUT("/access-points/:id/status", pointHandler.SetStatus)
		protected.POST("/controllers", pointHandler.CreateController)
		protected.GET("/controllers", pointHandler.ListControllers)
		protected.GET("/controllers/:id", pointHandler.GetController)
		protected.POST("/controllers/:id/heartbeat", pointHandler.ControllerHeartbeat)
		protected.DELETE("/controllers/:id", pointHandler.RetireController)

		// Emergency operations, admin only
		emergency := protected.Group("/emergency")
		emergency.Use(middleware.RequireRole("admin"))
		{
			emergency.POST("/unlock-all", emergencyHandler.UnlockAll)
			emergency.POST("/lockdown", emergencyHandler.Lockdown)
		}

		// Access log
		protected.GET("/logs", logHandler.QueryLogs)
		protected.GET("/logs/stats", logHandler.GetStats)
		protected.GET("/logs/:id", logHandler.GetLog)

		// Event stream for dashboards
		protected.GET("/ws", wsHandler.Serve)
	}

	return router
}
