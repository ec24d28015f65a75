package config

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected defaults to load, got %v", err)
	}
	if cfg.HTTPPort != "8084" {
		t.Errorf("Expected port 8084, got %s", cfg.HTTPPort)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("Expected no brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaTopic != "order_events" || cfg.KafkaOffset != sarama.OffsetNewest {
		t.Errorf("Unexpected Kafka settings %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "kafka-1:9092,kafka-2:9092,")
	t.Setenv("KAFKA_OFFSET", "oldest")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected overrides to load, got %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Errorf("Expected 2 brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaOffset != sarama.OffsetOldest {
		t.Errorf("Expected oldest offset, got %d", cfg.KafkaOffset)
	}
}

func TestLoad_InvalidOffset(t *testing.T) {
	t.Setenv("KAFKA_OFFSET", "latest")

	if _, err := Load(); err == nil {
		t.Error("Expected an error for an unknown offset")
	}
}
