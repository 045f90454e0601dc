package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/bandroom/bandroom-api/internal/config"
	"github.com/bandroom/bandroom-api/internal/domain/booking"
	"github.com/bandroom/bandroom-api/internal/domain/credit"
	"github.com/bandroom/bandroom-api/internal/domain/notification"
	"github.com/bandroom/bandroom-api/internal/domain/production"
	"github.com/bandroom/bandroom-api/internal/domain/series"
	"github.com/bandroom/bandroom-api/internal/middleware"
	"github.com/bandroom/bandroom-api/internal/pkg/database"
	"github.com/bandroom/bandroom-api/internal/pkg/jwt"
	"github.com/bandroom/bandroom-api/internal/pkg/logger"
	"github.com/bandroom/bandroom-api/internal/pkg/queue"
	pkgresponse "github.com/bandroom/bandroom-api/internal/pkg/response"
)

const availabilityCachePrefix = "availability"

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Bandroom API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	publisher, err := queue.NewPublisher(cfg.AMQPURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}
	defer publisher.Close()

	jwtService := jwt.NewService(cfg.JWTSecret, 24*time.Hour)

	// ---------- Repositories ----------
	bookingRepo := booking.NewRepository(db)
	productionRepo := production.NewRepository(db)
	seriesRepo := series.NewRepository(db)

	// ---------- Services ----------
	notificationService := notification.NewService(db)

	creditService := credit.NewService(db, credit.Config{
		Policies: credit.Policies{
			credit.TypeFreeHours: {Kind: credit.PolicyReset},
			credit.TypeBonusHours: {
				Kind:      credit.PolicyRollover,
				CapBlocks: cfg.BonusCapBlocks,
			},
		},
		Allowances: map[credit.Type]int{
			credit.TypeFreeHours:  cfg.MonthlyFreeBlocks,
			credit.TypeBonusHours: cfg.MonthlyBonusBlocks,
		},
		BlockMinutes: cfg.BlockMinutes,
	}, publisher, notificationService)

	detector := booking.NewDetector(bookingRepo, productionRepo)

	bookingService := booking.NewService(bookingRepo, detector, creditService, booking.Rules{
		OpeningHour:    cfg.OpeningHour,
		ClosingHour:    cfg.ClosingHour,
		MinDuration:    time.Duration(cfg.MinBookingMinutes) * time.Minute,
		MaxDuration:    time.Duration(cfg.MaxBookingMinutes) * time.Minute,
		HourlyRate:     cfg.HourlyRate,
		RefundOnCancel: cfg.RefundCreditsOnCancel,
	}, publisher, notificationService)
	bookingService.SetCacheInvalidator(func(ctx context.Context, day time.Time) {
		middleware.InvalidateDay(ctx, redis, availabilityCachePrefix, day)
	})

	seriesService := series.NewService(seriesRepo, bookingRepo, bookingService,
		series.RuleExpander{}, series.Config{
			HorizonDays: cfg.DefaultHorizonDays,
			OpeningHour: cfg.OpeningHour,
			ClosingHour: cfg.ClosingHour,
		}, publisher, notificationService)

	// ---------- Workers ----------
	allocationWorker := credit.NewWorker(creditService, cfg.AllocationInterval)
	allocationWorker.Start()
	defer allocationWorker.Stop()

	sweepWorker := series.NewWorker(seriesService, cfg.SweepInterval)
	sweepWorker.Start()
	defer sweepWorker.Stop()

	// ---------- Handlers ----------
	bookingHandler := booking.NewHandler(bookingService)
	creditHandler := credit.NewHandler(creditService)
	seriesHandler := series.NewHandler(seriesService)
	productionHandler := production.NewHandler(productionRepo)
	notificationHandler := notification.NewHandler(notificationService)

	authMiddleware := middleware.Auth(jwtService)
	cacheMiddleware := middleware.Cache(redis, availabilityCachePrefix, cfg.AvailabilityCacheTTL)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/reservations", bookingHandler.Routes(authMiddleware, cacheMiddleware))
		r.Mount("/series", seriesHandler.Routes(authMiddleware))
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/productions", productionHandler.Routes(authMiddleware))
		r.Mount("/notifications", notificationHandler.Routes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
