package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/xemonbae01/Game-idea/internal/infra/setup"
)

// MaxGridSize 是 GRID_SIZE 允许的最大值，开局时网格在 Hub 的事件循环中分配
const MaxGridSize = 200

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	ServerPort        string
	LogLevel          string
	AppEnv            string // development/production
	CORSAllowedOrigin string

	GridSize        int
	RequireAllReady bool

	// Redis 为空时不启用限流和审计任务
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	RateLimitMax    int
	RateLimitWindow time.Duration

	// 数据库未配置时不启用审计记录的落库和查询
	DB setup.DBConfig
}

// RedisEnabled 报告是否配置了 Redis
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// AuditEnabled 报告审计链路是否可用：任务队列需要 Redis，worker 落库需要数据库
func (c *Config) AuditEnabled() bool { return c.RedisEnabled() && c.DB.Enabled() }

// LoadConfig 从环境变量加载配置，.env 文件存在时优先加载
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		ServerPort:        os.Getenv("SERVER_PORT"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		AppEnv:            os.Getenv("APP_ENV"),
		CORSAllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGIN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:         os.Getenv("REDIS_KEY_PREFIX"),
		GridSize:          30,
		RateLimitMax:      100,
		RateLimitWindow:   time.Second,
		DB: setup.DBConfig{
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			Name:     os.Getenv("DB_NAME"),
		},
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "lobby:"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.GridSize, err = intEnv("GRID_SIZE", cfg.GridSize); err != nil {
		return nil, err
	}
	if cfg.GridSize <= 0 || cfg.GridSize > MaxGridSize {
		return nil, fmt.Errorf("GRID_SIZE must be between 1 and %d, got %d", MaxGridSize, cfg.GridSize)
	}
	if cfg.RateLimitMax, err = intEnv("RATE_LIMIT_MAX", cfg.RateLimitMax); err != nil {
		return nil, err
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		if cfg.RateLimitWindow, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW %q: %w", v, err)
		}
	}
	if v := os.Getenv("REQUIRE_ALL_READY"); v != "" {
		if cfg.RequireAllReady, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid REQUIRE_ALL_READY %q: %w", v, err)
		}
	}
	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
