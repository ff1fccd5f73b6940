package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	commander "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Commander"
	container "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Container"
	"gitlab.com/c2tech1/rqc.control_server/src/production/RQC.ControlService/controllers"
	jwtService "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.ControlService/implementation/jwt"
	identityMiddleware "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.ControlService/middleware"
	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
	api_models "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models/api"
	reconciler "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Reconciler"
	implementation "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Repository/Implementation"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting Control Service")

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}

	db, err := ctr.GetDatabase()
	if err != nil {
		logger.FatalWithError(err, "Failed to get database connection")
	}

	// Create repositories
	timerRepo := implementation.NewPostgresTimerRepository(db)
	deviceRepo := implementation.NewPostgresDeviceRepository(db)
	auditRepo := implementation.NewPostgresAuditRepository(db)

	config := ctr.GetConfig()

	// The dry-run target must exist in the registry, or the reconciler
	// would never issue its standing safety-stop for it.
	if err := deviceRepo.CreateOrUpdateDevice(ctx, rqcmodels.Device{
		DeviceCode: config.Control.DefaultDeviceCode,
		DeviceType: "moisture_meter",
		CreatedAt:  time.Now(),
	}); err != nil {
		logger.FatalWithError(err, "Failed to register default device")
	}

	// Command channel towards the devices
	publisher := commander.NewMQTTCommander(config.MQTT, config.Control.TopicNamespace, logger)

	// Reconciliation loop
	rec := reconciler.New(timerRepo, deviceRepo, publisher, config.Control, logger)

	// Initialize JWT service for token validation
	jwtConfig := api_models.Config{
		SecretKey:           config.Auth.JWTSecretKey,
		AccessTokenDuration: config.Auth.AccessTokenDuration,
		Issuer:              config.Auth.JWTIssuer,
	}
	jwtServiceInstance := jwtService.NewService(jwtConfig)

	// Identity middleware: degrades to anonymous, never blocks dispatch
	identity := identityMiddleware.NewIdentityMiddleware(jwtServiceInstance, identityMiddleware.DefaultConfig())

	healthChecker, err := ctr.GetHealthChecker()
	if err != nil {
		logger.FatalWithError(err, "Failed to get health checker")
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// Create controllers and register routes
	commandController := controllers.NewCommandController(publisher, auditRepo, config.Control, logger, identity)
	schedulerController := controllers.NewSchedulerController(rec, logger)
	healthController := controllers.NewHealthController(healthChecker, logger)

	commandController.RegisterRoutes(router)
	schedulerController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	// Start the reconciliation ticker
	loopCtx, loopCancel := context.WithCancel(context.Background())
	defer loopCancel()
	go rec.Start(loopCtx)

	// Create HTTP server with timeouts
	port := config.Server.Port
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("Control service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")
	loopCancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
