package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/food-ordering-api/internal/config"
	"github.com/flicky/food-ordering-api/internal/handler"
	"github.com/flicky/food-ordering-api/internal/middleware"
	"github.com/flicky/food-ordering-api/internal/repository"
	"github.com/flicky/food-ordering-api/internal/service"
	"github.com/flicky/food-ordering-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := repository.Migrate(cfg.DB.MigrateURL()); err != nil {
		return err
	}
	log.Info("database migrations applied")

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MinConns = cfg.DB.MinConns
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
		log.Info("connected to Redis")
	}

	// RabbitMQ
	var (
		amqpConn  *amqp.Connection
		publisher service.OrderEventPublisher
		consumeCh *amqp.Channel
	)
	if cfg.RabbitMQ.Enabled() {
		amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer amqpConn.Close()

		publishCh, err := amqpConn.Channel()
		if err != nil {
			return fmt.Errorf("open RabbitMQ channel: %w", err)
		}
		defer publishCh.Close()

		if err := worker.SetupRabbitMQ(publishCh); err != nil {
			return fmt.Errorf("setup RabbitMQ: %w", err)
		}
		publisher = worker.NewPublisher(publishCh)

		consumeCh, err = amqpConn.Channel()
		if err != nil {
			return fmt.Errorf("open RabbitMQ channel: %w", err)
		}
		defer consumeCh.Close()
		log.Info("connected to RabbitMQ")
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	categoryRepo := repository.NewCategoryRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	paymentRepo := repository.NewPaymentRepository(dbPool)

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	categorySvc := service.NewCategoryService(categoryRepo)
	productSvc := service.NewProductService(productRepo, redisClient)
	orderSvc := service.NewOrderService(orderRepo, productRepo, publisher)

	created, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName)
	if err != nil {
		return err
	}
	if created {
		log.Info("bootstrap admin created", "email", cfg.Admin.Email)
	}

	// Worker
	var orderWorker *worker.OrderWorker
	if consumeCh != nil {
		orderWorker = worker.NewOrderWorker(consumeCh, paymentRepo, redisClient, log)
		if err := orderWorker.Start(ctx); err != nil {
			return fmt.Errorf("start order worker: %w", err)
		}
	}

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst)
	authLimiter.StartCleanup(time.Minute, 10*time.Minute, stopCleanup)

	gin.SetMode(gin.ReleaseMode)
	router, err := handler.NewRouter(handler.RouterConfig{
		Log:             log,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		TrustedProxies:  cfg.Server.TrustedProxies,
		AuthRateLimiter: authLimiter,
		AuthService:     authSvc,
		CategoryService: categorySvc,
		ProductService:  productSvc,
		OrderService:    orderSvc,
		Health:          handler.NewHealthHandler(dbPool, redisClient, amqpConn),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	if orderWorker != nil {
		orderWorker.Stop()
	}
	log.Info("server stopped")
	return nil
}
