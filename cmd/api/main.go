package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-ticket-booking/internal/api"
	"github.com/sanosuguru/go-ticket-booking/internal/api/handler"
	custommw "github.com/sanosuguru/go-ticket-booking/internal/api/middleware"
	"github.com/sanosuguru/go-ticket-booking/internal/application"
	"github.com/sanosuguru/go-ticket-booking/internal/broadcast"
	"github.com/sanosuguru/go-ticket-booking/internal/config"
	"github.com/sanosuguru/go-ticket-booking/internal/infrastructure/filestore"
	"github.com/sanosuguru/go-ticket-booking/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-ticket-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-ticket-booking/internal/worker"
)

func main() {
	cfg := config.Load()

	env := os.Getenv("APP_ENV")
	logger.Set(logger.NewLogger(env))
	defer logger.Sync()

	// PostgreSQL接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis接続
	redisClient := redisinfra.NewClient(&cfg.Redis)
	defer redisClient.Close()

	// 画像ストア
	imageStore, err := filestore.NewImageStore(&cfg.Upload)
	if err != nil {
		logger.Fatal("画像ストアの初期化に失敗", zap.Error(err))
	}

	// メトリクス
	m := metrics.Init()

	// 座席数更新の配信基盤
	hub := broadcast.NewHub(cfg.Broadcast.SubscriberBuffer)
	defer hub.Close()
	bridge := broadcast.NewRedisBridge(redisClient, cfg.Broadcast.RedisChannel, hub)

	bridgeCtx, bridgeCancel := context.WithCancel(context.Background())
	defer bridgeCancel()
	go bridge.Run(bridgeCtx)

	// リポジトリ
	eventRepo := postgres.NewEventRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	txManager := postgres.NewTxManager(db)
	seatCache := redisinfra.NewSeatCache(redisClient)

	// サービス
	eventService := application.NewEventService(eventRepo, imageStore, seatCache)
	bookingService := application.NewBookingService(txManager, bookingRepo, eventRepo, bridge, seatCache, m)

	// 空席数リコンサイラー
	reconciler := worker.NewSeatReconciler(bookingService, 5*time.Minute)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go reconciler.Start(workerCtx)

	// Echo
	e := echo.New()
	e.HideBanner = true
	// WriteTimeout はSSE接続を切断してしまうため設定しない
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	custommw.SetupMiddleware(e)
	e.Use(custommw.PrometheusMiddleware(m))

	// ハンドラー
	healthHandler := handler.NewHealthHandler(
		handler.PingerFunc(func(ctx context.Context) error { return postgres.Ping(ctx, db) }),
		handler.PingerFunc(func(ctx context.Context) error { return redisinfra.Ping(ctx, redisClient) }),
	)
	eventHandler := handler.NewEventHandler(eventService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	streamHandler := handler.NewStreamHandler(hub, seatCache, m)

	// ルーティング
	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommw.MetricsBasicAuth())
	e.Static("/uploads", cfg.Upload.Dir)

	v1 := e.Group("/api/v1")
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/locations", eventHandler.ListLocations)
	v1.GET("/events/stream", streamHandler.Stream)
	v1.GET("/events/:id", eventHandler.GetByID)
	v1.POST("/events", eventHandler.Create)
	v1.PUT("/events/:id", eventHandler.Update)
	v1.DELETE("/events/:id", eventHandler.Delete)
	v1.GET("/events/:id/bookings", bookingHandler.ListByEvent)
	v1.POST("/bookings", bookingHandler.Create)
	v1.GET("/bookings/:id", bookingHandler.GetByID)

	// サーバー起動
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	reconciler.Stop()
	bridgeCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
