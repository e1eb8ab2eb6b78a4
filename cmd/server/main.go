package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/carva/internal/api/handlers"
	"github.com/langchou/carva/internal/api/llm"
	"github.com/langchou/carva/internal/api/smartcar"
	"github.com/langchou/carva/internal/api/telegram"
	"github.com/langchou/carva/internal/config"
	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/repository"
	"github.com/langchou/carva/internal/service"
	"github.com/langchou/carva/internal/session"
	"github.com/langchou/carva/internal/state"
	"github.com/langchou/carva/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting Smart Car Assistant",
		zap.String("addr", cfg.Addr()),
		zap.String("environment", cfg.Environment),
		zap.String("smartcar_mode", cfg.SmartcarMode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	userRepo := repository.NewUserRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)

	// 创建 Smartcar 客户端
	smartcarClient := smartcar.NewClient(smartcar.Options{
		ClientID:     cfg.SmartcarClientID,
		ClientSecret: cfg.SmartcarClientSecret,
		RedirectURI:  cfg.SmartcarRedirectURI,
		Mode:         cfg.SmartcarMode,
		AuthURL:      cfg.SmartcarAuthURL,
		TokenURL:     cfg.SmartcarTokenURL,
		APIHost:      cfg.SmartcarAPIHost,
	})

	// 创建 LLM 客户端
	completer, err := llm.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}
	if closer, ok := completer.(io.Closer); ok {
		defer closer.Close()
	}

	// 订阅令牌签名器
	secret := cfg.WSTokenSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("WS_TOKEN_SECRET not set, live tokens will not survive a restart")
	}
	signer := session.NewSigner([]byte(secret), cfg.WSTokenTTL)

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger, signer.Verify)

	// 状态变化推送到 WebSocket
	states := state.NewManager(func(vehicleID string, from, to models.VehicleStatus) {
		logger.Info("Vehicle status changed",
			zap.String("vehicle_id", vehicleID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		wsHub.Broadcast(service.EventVehicleStatus, gin.H{"vehicle_id": vehicleID, "from": from, "to": to})
	})

	// 创建服务
	tokens := service.NewTokenService(logger, smartcarClient, vehicleRepo, states)
	telemetry := service.NewTelemetryService(logger, smartcarClient, cfg.TelemetryReads)
	dispatcher := service.NewDispatcher(logger, vehicleRepo, smartcarClient, tokens, telemetry)
	assistant := service.NewAssistant(logger, completer, dispatcher)
	commands := service.NewCommands(logger, userRepo, smartcarClient, dispatcher, assistant, signer)

	// 创建 Telegram 机器人
	botAPI, err := telegram.NewAPI(cfg.TelegramBotToken, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to create Telegram bot", zap.Error(err))
	}
	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))
	bot := telegram.New(botAPI, commands, logger, cfg.TelegramPollTimeout)

	reconciler := service.NewReconciler(logger, smartcarClient, userRepo, vehicleRepo, wsHub, bot)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, reconciler, smartcarClient, wsHub, bot.Running, cfg.Environment)

	// 设置 Gin 模式
	if !cfg.Debug || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return bot.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// 等待退出信号后优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		return
	}
	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// requestLogger 请求日志
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
