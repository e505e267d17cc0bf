package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string

	// Rate limiter
	MaxConcurrent     int
	MaxRequestsPerMin int
	AcquireTimeout    time.Duration

	// Proxy pool
	ProxyFailureThreshold int
	ProxyCooldown         time.Duration
	ProxyProbeTimeout     time.Duration
	ProxyProbeURL         string

	// Sessions
	SessionMaxAge       time.Duration
	SessionRotateEvery  int
	MaintenanceInterval time.Duration

	// Strategies
	StrategyDisableBelow float64
	StrategyCooldown     time.Duration
	RetryBackoff         time.Duration

	// Optional YAML file overriding validation rules, device
	// profiles and strategy definitions.
	RulesPath string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8082"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MaxConcurrent:     getenvInt("MAX_CONCURRENT_SCRAPES", 5),
		MaxRequestsPerMin: getenvInt("MAX_REQUESTS_PER_MINUTE", 30),
		AcquireTimeout:    getenvDuration("ACQUIRE_TIMEOUT", 30*time.Second),

		ProxyFailureThreshold: getenvInt("PROXY_FAILURE_THRESHOLD", 3),
		ProxyCooldown:         getenvDuration("PROXY_COOLDOWN", 5*time.Minute),
		ProxyProbeTimeout:     getenvDuration("PROXY_PROBE_TIMEOUT", 10*time.Second),
		ProxyProbeURL:         getenv("PROXY_PROBE_URL", "https://httpbin.org/ip"),

		SessionMaxAge:       getenvDuration("SESSION_MAX_AGE", 30*time.Minute),
		SessionRotateEvery:  getenvInt("SESSION_ROTATE_EVERY", 50),
		MaintenanceInterval: getenvDuration("MAINTENANCE_INTERVAL", 5*time.Minute),

		StrategyDisableBelow: getenvFloat("STRATEGY_DISABLE_BELOW", 20),
		StrategyCooldown:     getenvDuration("STRATEGY_COOLDOWN", 24*time.Hour),
		RetryBackoff:         getenvDuration("RETRY_BACKOFF", time.Second),

		RulesPath: os.Getenv("RULES_PATH"),
	}
	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}
