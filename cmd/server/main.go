package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atlastours/service-booking/internal/application"
	"github.com/atlastours/service-booking/internal/config"
	"github.com/atlastours/service-booking/internal/domain/payment"
	"github.com/atlastours/service-booking/internal/events"
	"github.com/atlastours/service-booking/internal/handler"
	"github.com/atlastours/service-booking/internal/payments"
	"github.com/atlastours/service-booking/internal/repository"
	"github.com/atlastours/service-booking/pkg/auth"
	"github.com/atlastours/service-booking/pkg/database"
	"github.com/atlastours/service-booking/pkg/health"
	"github.com/atlastours/service-booking/pkg/kafka"
	"github.com/atlastours/service-booking/pkg/logger"
	"github.com/atlastours/service-booking/pkg/middleware"
)

const serviceName = "service-booking"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg.Postgres, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := database.RunMigrations(cfg.Postgres.DatabaseURL(), cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, log)
	defer func() { _ = producer.Close() }()

	bookingRepo := repository.NewGormBookingRepository(db)
	tourRepo := repository.NewGormTourRepository(db)
	slotRepo := repository.NewGormTimeSlotRepository(db)

	gateway := payments.NewClient(cfg.PaymentsBaseURL, cfg.PaymentsAPIKey, log)
	router := payment.NewSettlementRouter(gateway, log)
	publisher := events.NewPublisher(producer, cfg.BookingTopic, log)

	bookingService := application.NewBookingService(bookingRepo, tourRepo, slotRepo, gateway, router, publisher, log)
	tourService := application.NewTourService(tourRepo, slotRepo, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paymentConsumer := events.NewPaymentConsumer(
		kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.PaymentTopic, log),
		bookingService,
		log,
	)
	go func() {
		if err := paymentConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment consumer stopped", zap.Error(err))
		}
	}()

	engine := buildRouter(cfg, db, bookingService, tourService, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func buildRouter(
	cfg *config.Config,
	db *gorm.DB,
	bookingService *application.BookingService,
	tourService *application.TourService,
	log *zap.Logger,
) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(log),
		middleware.LoggerMiddleware(log),
		middleware.CORSMiddleware(),
		middleware.SecurityHeadersMiddleware(),
	)

	health.NewHandler(db, serviceName).RegisterRoutes(engine)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	api := engine.Group("/api/v1", middleware.AuthMiddleware(jwtManager))

	handler.NewBookingHandler(bookingService).RegisterRoutes(api)
	handler.NewTourHandler(tourService).RegisterRoutes(api)
	handler.NewAdminHandler(bookingService).RegisterRoutes(api)

	return engine
}
