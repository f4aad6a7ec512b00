package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rmcalister/rinkroster/internal/audit"
	"github.com/rmcalister/rinkroster/internal/config"
	"github.com/rmcalister/rinkroster/internal/database"
	"github.com/rmcalister/rinkroster/internal/handler"
	appmw "github.com/rmcalister/rinkroster/internal/middleware"
	"github.com/rmcalister/rinkroster/internal/queue"
	"github.com/rmcalister/rinkroster/internal/repository"
	"github.com/rmcalister/rinkroster/internal/router"
	"github.com/rmcalister/rinkroster/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if cfg.Env == "dev" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	memberRepo := repository.NewMemberRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	poolRepo := repository.NewPoolRepo(db)
	templateRepo := repository.NewTeamTemplateRepo(db)
	instanceRepo := repository.NewTeamInstanceRepo(db)

	auditLog := audit.New(logger)
	publisher := queue.NewPublisher(logger)
	go queue.StartAuditConsumer(logger)

	poolSvc := service.NewPoolService(poolRepo, memberRepo, auditLog, publisher, logger)
	teamSvc := service.NewTeamService(templateRepo, instanceRepo, memberRepo, auditLog, logger)
	availSvc := service.NewAvailabilityService(instanceRepo, memberRepo, auditLog, publisher, logger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	// Redis-backed rate limiting plus a response cache on the public
	// browse endpoints; both degrade to pass-through without Redis.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and caching disabled")
	}
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	browseCache := appmw.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, memberRepo, tokenRepo),
		Members:      handler.NewMemberHandler(memberRepo),
		Bookings:     handler.NewBookingHandler(bookingRepo, auditLog),
		Pools:        handler.NewPoolHandler(poolSvc),
		Teams:        handler.NewTeamHandler(teamSvc),
		Availability: handler.NewAvailabilityHandler(availSvc),
	}, cfg.JWTSecret, browseCache)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
