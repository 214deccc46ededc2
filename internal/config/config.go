package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/LeventeLantos/order-notifier/internal/model"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Settings  SettingsConfig
	Gateway   GatewayConfig
	RateLimit RateLimitConfig
	Dedupe    DedupeConfig
	Queue     QueueConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Address string
}

type LogConfig struct {
	Env   string
	Level string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

type SettingsConfig struct {
	File string
}

// GatewayConfig seeds the settings store on first start.
type GatewayConfig struct {
	URL       string
	Token     string
	AuthStyle model.AuthStyle
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

type DedupeConfig struct {
	NotificationTTL time.Duration
	ProcessingTTL   time.Duration
}

type QueueConfig struct {
	Enabled      bool
	URL          string
	Endpoint     string
	PollInterval time.Duration
}

type AdminConfig struct {
	RatePerSecond int
	Burst         int
}

// LoadAll reads the configuration from the environment and reports every
// invalid variable at once.
func LoadAll() (*Config, error) {
	var errs []error

	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
			return def
		}
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", key))
		}
		return v
	}
	seconds := func(key string, def int) time.Duration {
		return time.Duration(intVar(key, def)) * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "development"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			PostgresURL: os.Getenv("POSTGRES_URL"),
		},
		Settings: SettingsConfig{
			File: os.Getenv("SETTINGS_FILE"),
		},
		RateLimit: RateLimitConfig{
			Max:    intVar("RATE_LIMIT_MAX", 100),
			Window: seconds("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Dedupe: DedupeConfig{
			NotificationTTL: seconds("DEDUPE_TTL_SECONDS", 3600),
			ProcessingTTL:   seconds("PROCESSING_LOCK_SECONDS", 30),
		},
		Admin: AdminConfig{
			RatePerSecond: intVar("ADMIN_RATE_PER_SECOND", 5),
			Burst:         intVar("ADMIN_RATE_BURST", 10),
		},
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Redis = redisCfg

	gw, gwErrs := loadGatewayConfig()
	errs = append(errs, gwErrs...)
	cfg.Gateway = gw

	cfg.Queue = QueueConfig{
		URL:          os.Getenv("SQS_QUEUE_URL"),
		Endpoint:     os.Getenv("SQS_ENDPOINT"),
		PollInterval: seconds("SQS_POLL_INTERVAL_SECONDS", 5),
	}
	cfg.Queue.Enabled = cfg.Queue.URL != ""

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	if db < 0 {
		return RedisConfig{}, errors.New("REDIS_DB must be >= 0")
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func loadGatewayConfig() (GatewayConfig, []error) {
	var errs []error

	style, err := model.ParseAuthStyle(os.Getenv("GATEWAY_AUTH_STYLE"))
	if err != nil {
		errs = append(errs, fmt.Errorf("GATEWAY_AUTH_STYLE: %w", err))
	}

	gw := GatewayConfig{
		URL:       os.Getenv("GATEWAY_URL"),
		AuthStyle: style,
	}
	if gw.URL == "" {
		gw.Token = os.Getenv("GATEWAY_TOKEN")
		return gw, errs
	}

	token, err := requireEnv("GATEWAY_TOKEN")
	if err != nil {
		errs = append(errs, fmt.Errorf("%w (required when GATEWAY_URL is set)", err))
	}
	gw.Token = token
	return gw, errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
