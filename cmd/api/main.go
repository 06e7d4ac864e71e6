package main

import (
	"context"
	"os"
	"solar-workflow-api/config"
	"solar-workflow-api/controllers"
	"solar-workflow-api/middleware"
	"solar-workflow-api/monitor"
	"solar-workflow-api/routes"
	"solar-workflow-api/services"
	"solar-workflow-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	logger, logFile, logWriter := config.InitLogging(cfg)
	if logFile != nil {
		defer logFile.Close()
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx := context.Background()
	backend, err := config.OpenStore(ctx, cfg, logWriter)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer backend.Close()

	objects, err := config.OpenObjectStorage(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open object storage")
	}

	var locker services.Locker = services.NoopLocker{}
	rdb, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, phone imports run without a lock")
	} else if rdb != nil {
		defer rdb.Close()
		locker = services.NewRedisLocker(rdb)
	}

	h := buildHandler(cfg, backend, objects, locker, logger)
	if logFile != nil {
		h.Monitor = monitor.New(cfg.LogFile)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes()
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	routes.SetupRoutes(router, h)

	logger.WithFields(logrus.Fields{
		"port":    cfg.Port,
		"store":   cfg.StoreBackend,
		"storage": cfg.StorageBackend,
		"env":     cfg.Environment,
	}).Info("Server starting")

	if err := router.Run(":" + cfg.Port); err != nil {
		logger.WithError(err).Error("Failed to start server")
		os.Exit(1)
	}
}

func buildHandler(cfg *config.Config, backend *config.Backend, objects storage.ObjectStorage, locker services.Locker, logger *logrus.Logger) *controllers.Handler {
	st := backend.Store
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpireHours)
	docs := services.NewDocumentService(st, objects, services.NewCatalog(cfg.GpsMaxImages), logger, cfg.MaxUploadBytes(), cfg.SignedURLTTL)

	h := &controllers.Handler{
		Users:     services.NewUserService(st, tokens, logger),
		Clients:   services.NewClientService(st, objects, logger, cfg.PhoneRegion),
		Steps:     services.NewStepService(st, logger),
		StepData:  services.NewStepDataService(st, logger),
		Documents: docs,
		Gps:       services.NewGpsImageService(docs),
		Finance:   services.NewFinanceService(st, objects, logger, cfg.PaymentWindow()),
		FollowUps: services.NewFollowUpService(st, config.NewMailer(cfg.SMTP), logger),
		Phones:    services.NewPhoneImportService(st, locker, logger, cfg.PhoneRegion, cfg.ImportBatchDelay),
		Log:       logger,
	}
	if local, ok := objects.(*storage.Local); ok {
		h.Files = local
	}
	return h
}
