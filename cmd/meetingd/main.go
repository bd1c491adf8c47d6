package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"meeting-room-backend/config"
	"meeting-room-backend/internal/api"
	"meeting-room-backend/internal/attendance"
	"meeting-room-backend/internal/booking"
	"meeting-room-backend/internal/db"
	"meeting-room-backend/internal/events"
	"meeting-room-backend/internal/logger"
	"meeting-room-backend/internal/notification"
	"meeting-room-backend/internal/store"
)

const defaultConfigPath = "./config/config.yaml"

func main() {
	configFlag := pflag.StringP("config", "c", "", "path to the YAML configuration file")
	pflag.Parse()

	// A missing .env is fine; it only supplies CONFIG_PATH and friends for local runs.
	_ = godotenv.Load()

	configPath := resolveConfigPath(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("meetingd stopped", zap.Error(err))
	}
}

// resolveConfigPath picks the flag, then CONFIG_PATH, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return defaultConfigPath
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("database initialized", zap.String("driver", cfg.Database.Driver))
	appStore := store.NewGormStore(gormDB)

	redisClient := attendance.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()
	attendanceStore := attendance.NewRedisStore(redisClient)
	if err := attendanceStore.Ping(ctx); err != nil {
		log.Warn("redis is not reachable yet; attendance requests will fail until it is",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQP.URL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		publisher = p
		log.Info("publishing reservation events", zap.String("exchange", cfg.AMQP.Exchange))
	}
	defer publisher.Close()

	opts := []booking.Option{
		booking.WithLogger(log.Named("booking")),
		booking.WithPublisher(publisher),
		booking.WithAttendanceRetention(cfg.Attendance.Retention),
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, log)
		pool.Start(ctx)
		opts = append(opts, booking.WithNotifier(pool))
		log.Info("push notifications enabled", zap.Int("workers", cfg.WorkerPool.Size))
	} else {
		log.Warn("VAPID keys are not configured; push notifications are disabled")
	}

	svc := booking.NewService(appStore, attendanceStore, opts...)

	router := api.NewRouter(svc, appStore, api.Options{
		RateLimit:      cfg.Server.RateLimitPerSec,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		CacheTTL:       cfg.Server.CacheTTL(),
		Location:       cfg.Server.Location,
		Webpush:        webpushOptions,
		Logger:         log.Named("http"),
		Health: []api.HealthCheck{
			{Name: "database", Check: func(ctx context.Context) error {
				sqlDB, err := gormDB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}},
			{Name: "redis", Check: attendanceStore.Ping},
		},
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("shutdown signal received, stopping services", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	log.Info("server gracefully stopped")
	return nil
}
