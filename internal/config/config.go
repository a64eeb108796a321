// Package config loads engine configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the engine.
type Config struct {
	HTTPPort    string
	MetricsAddr string

	LogLevel  string
	LogFormat string

	NatsURL   string
	NatsToken string

	KafkaEnabled          bool
	KafkaBrokers          []string
	KafkaTopicTranscripts string
	KafkaTopicSummaries   string
	KafkaPrincipal        string

	STTProvider string // mock | google
	STTTimeout  time.Duration

	DataDir string

	IdleTimeout     time.Duration
	JanitorInterval time.Duration
}

// Load reads configuration from the environment with sensible defaults.
func Load() *Config {
	return &Config{
		HTTPPort:    envStr("HTTP_PORT", "8080"),
		MetricsAddr: envStr("METRICS_ADDR", ":9090"),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		NatsURL:   envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken: envStr("NATS_TOKEN", ""),

		KafkaEnabled:          envBool("KAFKA_ENABLED", false),
		KafkaBrokers:          envList("KAFKA_BROKERS", nil),
		KafkaTopicTranscripts: envStr("KAFKA_TOPIC_TRANSCRIPTS", "conversation.transcripts"),
		KafkaTopicSummaries:   envStr("KAFKA_TOPIC_SUMMARIES", "conversation.summaries"),
		KafkaPrincipal:        envStr("KAFKA_PRINCIPAL", "svc-call-transcription"),

		STTProvider: envStr("STT_PROVIDER", "mock"),
		STTTimeout:  envDuration("STT_TIMEOUT", 10*time.Second),

		DataDir: envStr("DATA_DIR", "./data/conversations"),

		IdleTimeout:     envDuration("SESSION_IDLE_TIMEOUT", 10*time.Minute),
		JanitorInterval: envDuration("SESSION_JANITOR_INTERVAL", 30*time.Second),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
