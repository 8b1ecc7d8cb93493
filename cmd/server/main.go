package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinic-slot-reservation/internal/config"
	"github.com/iliyamo/clinic-slot-reservation/internal/database"
	"github.com/iliyamo/clinic-slot-reservation/internal/handler"
	"github.com/iliyamo/clinic-slot-reservation/internal/queue"
	"github.com/iliyamo/clinic-slot-reservation/internal/repository"
	"github.com/iliyamo/clinic-slot-reservation/internal/router"
	"github.com/iliyamo/clinic-slot-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // optional .env for local development

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the cache and rate limiter degrade
	// to pass-throughs.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; cache and rate limiting disabled")
	}

	providerRepo := repository.NewProviderRepo(db)
	slotRepo := repository.NewSlotRepo(db)
	reservationRepo := repository.NewReservationRepo(db)

	manager := service.NewReservationManager(db, slotRepo, reservationRepo, logger)
	sweeper := service.NewSweeper(db, slotRepo, reservationRepo, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expiry reclaimer: periodically fails stale PENDING reservations
	// and returns their slots to the pool.
	go sweeper.Run(ctx,
		time.Duration(cfg.SweepIntervalSec)*time.Second,
		time.Duration(cfg.ReservationTTLMin)*time.Minute,
	)

	// Background consumer that appends confirmed-reservation events to
	// logs/reservation.log.  Runs its own reconnect loop.
	go func() {
		if err := queue.StartConfirmedConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAPI(e,
		handler.NewProviderHandler(providerRepo, slotRepo),
		handler.NewSlotHandler(slotRepo, providerRepo),
		handler.NewReservationHandler(manager),
		rdb,
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
