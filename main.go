package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delivery-core/common/locks"
	"delivery-core/common/logger"
	"delivery-core/controllers"
	"delivery-core/database"
	"delivery-core/kafka"
	aws_pkg "delivery-core/pkg/aws"
	"delivery-core/repository"
	"delivery-core/routes"
	"delivery-core/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()
	zlog := logger.Log

	// --- Database ---
	if err := database.Connect(zlog); err != nil {
		zlog.Fatal("DB connection failed", zap.Error(err))
	}
	redisClient := database.NewRedisClient(cfg.RedisURL, zlog)

	// --- Kafka ---
	var producer kafka.ProducerAPI
	if len(cfg.KafkaBrokers) > 0 {
		p := kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		defer p.Close()
		producer = p
	} else {
		zlog.Warn("KAFKA_BROKERS not set, order events disabled")
	}

	// --- AWS (non-fatal) ---
	var snsClient aws_pkg.SNSPublisher
	if cfg.SNSTopicARN != "" {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			zlog.Warn("failed to load AWS config, SNS mirror disabled", zap.Error(err))
		} else {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
		}
	}
	metricsClient, err := aws_pkg.NewMetricsClient(context.Background())
	if err != nil {
		zlog.Warn("CloudWatch metrics client init failed (non-fatal)", zap.Error(err))
	}

	// --- Dependency injection ---
	lockMgr := locks.NewManager(cfg.LockMaxWait)

	orderRepo := repository.NewGormOrderRepository(database.DB)
	walletRepo := repository.NewGormWalletRepository(database.DB)
	promoRepo := repository.NewGormPromotionRepository(database.DB)
	deliveryRepo := repository.NewGormDeliveryRepository(database.DB)
	reviewRepo := repository.NewGormReviewRepository(database.DB)
	catalogRepo := repository.NewGormCatalogRepository(database.DB, redisClient, zlog)

	walletSvc := services.NewWalletService(walletRepo, lockMgr, cfg.WalletMaxBalance, metricsClient, zlog)
	promoSvc := services.NewPromotionService(promoRepo, lockMgr, metricsClient, zlog)
	orderSvc := services.NewOrderService(orderRepo, catalogRepo, walletSvc, promoSvc, producer, snsClient, cfg.SNSTopicARN, lockMgr, metricsClient, zlog)
	deliverySvc := services.NewDeliveryService(deliveryRepo, orderRepo, orderSvc, producer, lockMgr, metricsClient, zlog)
	reviewSvc := services.NewReviewService(reviewRepo, orderRepo, catalogRepo, lockMgr, metricsClient, zlog)

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())

	// Request timeout middleware
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	// CloudWatch HTTP metrics middleware
	r.Use(func(c *gin.Context) {
		if metricsClient == nil || !metricsClient.IsEnabled() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		go func(path, method string, status int, dur time.Duration) {
			mctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			dims := map[string]string{"Service": "delivery-core", "Method": method, "Path": path}
			_ = metricsClient.RecordCount(mctx, aws_pkg.MetricHTTPRequests, dims)
			_ = metricsClient.RecordLatency(mctx, aws_pkg.MetricHTTPLatency, dur, dims)
			if status >= 400 {
				_ = metricsClient.RecordCount(mctx, aws_pkg.MetricHTTPErrors, dims)
			}
		}(c.Request.URL.Path, c.Request.Method, c.Writer.Status(), time.Since(start))
	})

	routes.Register(r,
		controllers.NewOrderController(orderSvc),
		controllers.NewWalletController(walletSvc),
		controllers.NewPromotionController(promoSvc),
		controllers.NewDeliveryController(deliverySvc),
		controllers.NewReviewController(reviewSvc),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "delivery-core"})
	})

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		zlog.Info("delivery-core started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server shutdown error", zap.Error(err))
	}
	if err := database.Close(); err != nil {
		zlog.Error("Database close error", zap.Error(err))
	}

	log.Println("delivery-core stopped gracefully")
}
