package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/kiosk-order-system/internal/cache"
	"github.com/fairyhunter13/kiosk-order-system/internal/config"
	"github.com/fairyhunter13/kiosk-order-system/internal/handler"
	"github.com/fairyhunter13/kiosk-order-system/internal/lifecycle"
	"github.com/fairyhunter13/kiosk-order-system/internal/notify"
	"github.com/fairyhunter13/kiosk-order-system/internal/realtime"
	"github.com/fairyhunter13/kiosk-order-system/internal/repository"
	"github.com/fairyhunter13/kiosk-order-system/internal/service"
	appvalidator "github.com/fairyhunter13/kiosk-order-system/internal/validator"
	"github.com/fairyhunter13/kiosk-order-system/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	loc, err := cfg.Order.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid order time zone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	txRunner := database.NewTxRunner(pool, cfg.Store.RetryPolicy())

	// Repositories
	accountRepo := repository.NewAccountRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	counterRepo := repository.NewCounterRepository()
	observationRepo := repository.NewObservationRepository(pool)
	var couponRepo service.CouponRepositoryInterface = repository.NewCouponRepository(pool)

	if cfg.Redis.Addr != "" {
		store, err := cache.NewRedisStore(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer func() {
			_ = store.Close()
		}()
		couponRepo = cache.NewCouponCache(couponRepo, store, time.Duration(cfg.Redis.CouponTTL)*time.Second)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("coupon cache enabled")
	}

	var notifier lifecycle.Notifier = notify.LogNotifier{}
	if cfg.AMQP.URL != "" {
		amqpNotifier, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.ReadyQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to message broker")
		}
		defer func() {
			_ = amqpNotifier.Close()
		}()
		notifier = amqpNotifier
		log.Info().Str("queue", cfg.AMQP.ReadyQueue).Msg("ready notifications via amqp")
	}

	// Services
	dispatcher := lifecycle.NewDispatcher(observationRepo, notifier)
	sequencer := service.NewOrderSequencer(txRunner, counterRepo)
	accountService := service.NewAccountService(txRunner, accountRepo, cfg.Order.SignupBonus)
	couponService := service.NewCouponService(txRunner, accountRepo, couponRepo, loc)
	checkoutService := service.NewCheckoutService(txRunner, accountRepo, couponRepo, orderRepo, observationRepo, sequencer,
		service.CheckoutOptions{EarnRatePercent: cfg.Order.EarnRatePercent, Location: loc})
	orderService := service.NewOrderService(txRunner, orderRepo, observationRepo, dispatcher)

	// Order change fan-out
	hub := realtime.NewHub(orderService)
	listener := realtime.NewListener(pool, hub)

	app := fiber.New(fiber.Config{
		AppName:      "Kiosk Order System",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New()) // Adds X-Request-ID header to all requests
	app.Use(logger.New())

	validate := appvalidator.New()
	handler.Register(app, handler.Handlers{
		Health:   handler.NewHealthHandler(pool),
		Account:  handler.NewAccountHandler(accountService, validate),
		Coupon:   handler.NewCouponHandler(couponService, validate),
		Checkout: handler.NewCheckoutHandler(checkoutService, validate),
		Order:    handler.NewOrderHandler(orderService, hub, loc),
		Staff:    handler.NewStaffHandler(orderService, hub, validate, loc),
	}, cfg.Auth.JWTSecret, cfg.Auth.StaffRole)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		return app.Listen(":" + cfg.Server.Port)
	})
	g.Go(func() error {
		return listener.Run(gctx)
	})
	g.Go(func() error {
		// Redelivers ready notifications whose first attempt failed.
		return dispatcher.Run(gctx, time.Duration(cfg.AMQP.RetryInterval)*time.Second)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

		// Streams never finish on their own; closing the hub ends them.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server stopped with error")
	}

	// Close database pool AFTER server shutdown (even if shutdown timed out)
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
