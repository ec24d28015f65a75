package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// BreakerConfig parametrizes the circuit breaker in front of one dependency.
type BreakerConfig struct {
	Timeout                  time.Duration
	ErrorThresholdPercentage float64
	VolumeThreshold          int
	ResetTimeout             time.Duration
	RollingWindow            time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Enabled reports whether a journal database was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

type PaymentConfig struct {
	SuccessRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration
}

type Config struct {
	HTTPPort string
	GRPCPort string

	ProductsURL      string
	CartURL          string
	NotificationsURL string

	ProductsBreaker      BreakerConfig
	CartBreaker          BreakerConfig
	NotificationsBreaker BreakerConfig

	Payment PaymentConfig

	// KafkaBrokers is empty when event publishing is disabled.
	KafkaBrokers []string
	KafkaTopic   string

	// RedisAddr is empty when idempotency keys are disabled.
	RedisAddr      string
	IdempotencyTTL time.Duration

	Database DatabaseConfig

	JWTSecret string
}

func Load() (Config, error) {
	var errs []string
	p := parser{errs: &errs}

	cfg := Config{
		HTTPPort: getEnv("PORT", "8082"),
		GRPCPort: getEnv("GRPC_PORT", "50051"),

		ProductsURL:      strings.TrimRight(getEnv("PRODUCTS_URL", "http://localhost:8081"), "/"),
		CartURL:          strings.TrimRight(getEnv("CART_URL", "http://localhost:8083"), "/"),
		NotificationsURL: strings.TrimRight(getEnv("NOTIFICATIONS_URL", "http://localhost:8084"), "/"),

		ProductsBreaker: p.breaker("PRODUCTS", BreakerConfig{
			Timeout:                  3 * time.Second,
			ErrorThresholdPercentage: 50,
			VolumeThreshold:          5,
			ResetTimeout:             30 * time.Second,
			RollingWindow:            10 * time.Second,
		}),
		CartBreaker: p.breaker("CART", BreakerConfig{
			Timeout:                  3 * time.Second,
			ErrorThresholdPercentage: 50,
			VolumeThreshold:          5,
			ResetTimeout:             30 * time.Second,
			RollingWindow:            10 * time.Second,
		}),
		NotificationsBreaker: p.breaker("NOTIFICATIONS", BreakerConfig{
			Timeout:                  2 * time.Second,
			ErrorThresholdPercentage: 70,
			VolumeThreshold:          3,
			ResetTimeout:             15 * time.Second,
			RollingWindow:            10 * time.Second,
		}),

		Payment: PaymentConfig{
			SuccessRate: p.float("PAYMENT_SUCCESS_RATE", 0.9),
			MinLatency:  p.duration("PAYMENT_MIN_LATENCY", 100*time.Millisecond),
			MaxLatency:  p.duration("PAYMENT_MAX_LATENCY", 500*time.Millisecond),
		},

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKER")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order_events"),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		IdempotencyTTL: p.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "orderdb"),
		},

		JWTSecret: os.Getenv("JWT_SECRET"),
	}

	if cfg.Payment.SuccessRate < 0 || cfg.Payment.SuccessRate > 1 {
		errs = append(errs, "PAYMENT_SUCCESS_RATE must be between 0 and 1")
	}
	if cfg.Payment.MaxLatency < cfg.Payment.MinLatency {
		errs = append(errs, "PAYMENT_MAX_LATENCY must be >= PAYMENT_MIN_LATENCY")
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// parser collects errors so that every bad variable is reported at once.
type parser struct {
	errs *[]string
}

func (p parser) breaker(prefix string, def BreakerConfig) BreakerConfig {
	cfg := BreakerConfig{
		Timeout:                  p.duration(prefix+"_BREAKER_TIMEOUT", def.Timeout),
		ErrorThresholdPercentage: p.float(prefix+"_BREAKER_ERROR_THRESHOLD", def.ErrorThresholdPercentage),
		VolumeThreshold:          p.int(prefix+"_BREAKER_VOLUME_THRESHOLD", def.VolumeThreshold),
		ResetTimeout:             p.duration(prefix+"_BREAKER_RESET_TIMEOUT", def.ResetTimeout),
		RollingWindow:            p.duration(prefix+"_BREAKER_ROLLING_WINDOW", def.RollingWindow),
	}
	if cfg.ErrorThresholdPercentage <= 0 || cfg.ErrorThresholdPercentage > 100 {
		*p.errs = append(*p.errs, prefix+"_BREAKER_ERROR_THRESHOLD must be in (0, 100]")
	}
	if cfg.VolumeThreshold < 1 {
		*p.errs = append(*p.errs, prefix+"_BREAKER_VOLUME_THRESHOLD must be >= 1")
	}
	return cfg
}

func (p parser) int(key string, def int) int {
	v, err := getEnvInt(key, def)
	if err != nil {
		*p.errs = append(*p.errs, err.Error())
	}
	return v
}

func (p parser) float(key string, def float64) float64 {
	v, err := getEnvFloat(key, def)
	if err != nil {
		*p.errs = append(*p.errs, err.Error())
	}
	return v
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v, err := getEnvDuration(key, def)
	if err != nil {
		*p.errs = append(*p.errs, err.Error())
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be a duration", key)
	}
	if v < 0 {
		return defaultValue, fmt.Errorf("%s must be >= 0", key)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
