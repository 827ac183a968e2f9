package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	APIKey   string
	LogLevel string

	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIDetectionModel  string
	OpenAIExtractionModel string
	LLMTimeout            time.Duration

	DatabaseURL string
	SessionTTL  time.Duration
	SweepEvery  time.Duration

	NatsURL   string
	NatsToken string

	ScamThreshold  float64
	MaxTurns       int
	IntelThreshold int

	CallbackURL     string
	CallbackTimeout time.Duration
	CallbackRetries int
	CallbackBackoff time.Duration

	MaxBodyBytes int64
}

func Load() Config {
	return Config{
		Port:     envInt("PORT", 8080),
		APIKey:   envStr("API_KEY", ""),
		LogLevel: envStr("LOG_LEVEL", "info"),

		OpenAIAPIKey:          envStr("OPENAI_API_KEY", ""),
		OpenAIModel:           envStr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIDetectionModel:  envStr("OPENAI_DETECTION_MODEL", "gpt-4o-mini"),
		OpenAIExtractionModel: envStr("OPENAI_EXTRACTION_MODEL", "gpt-4o-mini"),
		LLMTimeout:            envSeconds("LLM_TIMEOUT_SECONDS", 10),

		DatabaseURL: envStr("DATABASE_URL", ""),
		SessionTTL:  envSeconds("SESSION_TTL_SECONDS", 3600),
		SweepEvery:  envSeconds("SESSION_SWEEP_SECONDS", 300),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		ScamThreshold:  envFloat("SCAM_THRESHOLD", 0.7),
		MaxTurns:       envInt("MAX_TURNS", 12),
		IntelThreshold: envInt("INTEL_THRESHOLD", 2),

		CallbackURL:     envStr("CALLBACK_URL", "https://hackathon.guvi.in/api/updateHoneyPotFinalResult"),
		CallbackTimeout: envSeconds("CALLBACK_TIMEOUT_SECONDS", 5),
		CallbackRetries: envInt("CALLBACK_RETRIES", 3),
		CallbackBackoff: envSeconds("CALLBACK_BACKOFF_SECONDS", 1),

		MaxBodyBytes: int64(envInt("MAX_BODY_BYTES", 100_000)),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
