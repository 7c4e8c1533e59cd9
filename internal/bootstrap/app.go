package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/xemonbae01/Game-idea/internal/handler/http"
	wsHandler "github.com/xemonbae01/Game-idea/internal/handler/websocket"
	"github.com/xemonbae01/Game-idea/internal/hub"
	"github.com/xemonbae01/Game-idea/internal/infra/memory"
	gormpersistence "github.com/xemonbae01/Game-idea/internal/infra/persistence/gorm"
	"github.com/xemonbae01/Game-idea/internal/infra/setup"
	"github.com/xemonbae01/Game-idea/internal/middleware"
	"github.com/xemonbae01/Game-idea/internal/repository"
	"github.com/xemonbae01/Game-idea/internal/service"
	"github.com/xemonbae01/Game-idea/internal/tasks"
	"github.com/xemonbae01/Game-idea/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Recorder    *tasks.Recorder // 审计未启用时为 nil
	Hub         *hub.Hub
	Router      *hub.Router
	HttpServer  *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// Deps 是构建 Gin 引擎所需的组件，可选组件为 nil 时对应功能关闭
type Deps struct {
	Hub         *hub.Hub
	RoomService *service.RoomService
	RecordRepo  repository.SessionRecordRepository // 可选
	RedisClient *redis.Client                      // 可选
}

// NewLogger 按运行环境创建 logger
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // LoadConfig 已校验
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	// 各包使用 logrus 的全局 logger，保持相同的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}
	log := NewLogger(cfg)
	log.WithFields(logrus.Fields{"env": cfg.AppEnv, "level": cfg.LogLevel}).Info("Configuration loaded")

	app := &App{Config: cfg, Log: log}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	if cfg.RedisEnabled() {
		redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
		app.RedisClient = redisClient
		log.Info("Redis client initialized")
	} else {
		log.Warn("REDIS_ADDR not set, rate limiting and session audit are disabled")
	}

	var recordRepo repository.SessionRecordRepository
	if cfg.DB.Enabled() {
		db, err := setup.InitDB(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		app.DB = db
		recordRepo = gormpersistence.NewGormSessionRecordRepository(db)
		log.Info("Database initialized and migrated")
	}

	// 任务的生产者与消费者同时存在时才启用审计，否则任务会堆积在 Redis 中无人处理
	if cfg.AuditEnabled() {
		app.AsynqClient = asynq.NewClient(app.redisClientOpt())
		app.AsynqServer = worker.NewWorkerServer(app.redisClientOpt(), recordRepo, log)
		log.Info("Asynq client and worker server initialized")
	} else if cfg.DB.Enabled() {
		log.Warn("Database configured without Redis, audit records will not be written")
	} else if cfg.RedisEnabled() {
		log.Info("Database not configured, session audit is disabled")
	}
	app.Recorder = newAuditRecorder(cfg, app.AsynqClient)

	var recorder hub.EventRecorder
	if app.Recorder != nil {
		recorder = app.Recorder
	}

	roomService := service.NewRoomService(memory.NewRoomRepository(), service.RoomOptions{
		GridSize:        cfg.GridSize,
		RequireAllReady: cfg.RequireAllReady,
	})
	app.Hub = hub.NewHub()
	app.Router = hub.NewRouter(roomService, app.Hub, recorder)

	engine := NewEngine(app.ctx, cfg, log, Deps{
		Hub:         app.Hub,
		RoomService: roomService,
		RecordRepo:  recordRepo,
		RedisClient: app.RedisClient,
	})
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

func (a *App) redisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}
}

// newAuditRecorder 仅在审计启用时返回 Recorder，否则返回 nil，Router 随之使用空实现
func newAuditRecorder(cfg *Config, client tasks.Enqueuer) *tasks.Recorder {
	if !cfg.AuditEnabled() || client == nil {
		return nil
	}
	return tasks.NewRecorder(client)
}

// NewEngine 创建 Gin 引擎并注册所有路由
func NewEngine(ctx context.Context, cfg *Config, log *logrus.Logger, deps Deps) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.CORSAllowedOrigin))

	api := router.Group("/api")
	if deps.RedisClient != nil {
		api.Use(middleware.RateLimit(deps.RedisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))
	}
	roomHandler := httpHandler.NewRoomHandler(deps.RoomService)
	api.GET("/rooms", roomHandler.ListRooms)
	api.GET("/rooms/:roomId", roomHandler.GetRoom)
	if deps.RecordRepo != nil {
		api.GET("/rooms/:roomId/history", httpHandler.NewHistoryHandler(deps.RecordRepo).GetHistory)
	}

	router.GET("/ws", wsHandler.NewWebSocketHandler(ctx, deps.Hub, cfg.CORSAllowedOrigin).HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

// Start 启动 Hub、Worker 和 HTTP 服务器
func (a *App) Start() {
	go a.Hub.Run(a.ctx, a.Router)
	a.Log.Info("Hub routine started")

	if a.AsynqServer != nil {
		go a.AsynqServer.Start()
		a.Log.Info("Asynq worker server routine started")
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 停止 Hub 并断开所有连接；审计任务在此之前已入队
	a.cancel()
	select {
	case <-a.Hub.Done():
		a.Log.Info("Hub stopped.")
	case <-ctx.Done():
		a.Log.Warn("Timed out waiting for hub to stop")
	}

	// Hub 已停止，不会再产生审计事件；把缓冲中的任务送入队列
	if a.Recorder != nil {
		a.Recorder.Close()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}
	a.Log.Info("Application shutdown complete.")
}

// CORSMiddleware 设置跨域响应头，allowedOrigin 为空时允许任意来源
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		if allowedOrigin != "*" {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  time.Since(startTime).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
