package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/IBM/sarama"
)

type Config struct {
	HTTPPort string

	// KafkaBrokers is empty when order events are not consumed.
	KafkaBrokers []string
	KafkaTopic   string
	// KafkaOffset is where a partition is read from on startup.
	KafkaOffset int64
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:     getEnv("PORT", "8084"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKER")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order_events"),
	}

	switch offset := getEnv("KAFKA_OFFSET", "newest"); offset {
	case "newest":
		cfg.KafkaOffset = sarama.OffsetNewest
	case "oldest":
		cfg.KafkaOffset = sarama.OffsetOldest
	default:
		return Config{}, fmt.Errorf("invalid configuration: KAFKA_OFFSET must be newest or oldest, got %q", offset)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
