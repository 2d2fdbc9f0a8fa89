// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string
	LogLevel    string
	LogFormat   string

	RedisURL string

	KafkaEnabled          bool
	KafkaBrokers          []string
	KafkaTopicTurns       string
	KafkaTopicTransitions string

	CerebrasKey     string
	CerebrasModelID string
	HeyGenKey       string

	PassingScore int
	GreetingCap  int
	TechnicalCap int

	StrictGuardrails bool
}

// Timings holds the capture-side tunables: utterance aggregation windows
// and the channel reconnect delay. They are read separately from Config so
// client binaries can load them without the server's settings.
type Timings struct {
	SpeechGrace      time.Duration
	ManualSettle     time.Duration
	AutoSettle       time.Duration
	AutoGap          time.Duration
	ReconnectBackoff time.Duration
}

// LoadTimings reads the timing tunables from the environment, with an
// optional .env file, falling back to the tuned defaults.
func LoadTimings() Timings {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}
	return Timings{
		SpeechGrace:      envDuration("SPEECH_GRACE", 500*time.Millisecond),
		ManualSettle:     envDuration("MANUAL_SETTLE", 2*time.Second),
		AutoSettle:       envDuration("AUTO_SETTLE", 3*time.Second),
		AutoGap:          envDuration("AUTO_GAP", 5*time.Second),
		ReconnectBackoff: envDuration("RECONNECT_BACKOFF", 3*time.Second),
	}
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	if cerebrasKey == "" {
		log.Warn().Msg("CEREBRAS_API_KEY not set, interviewer responses fall back to canned lines")
	}
	heygenKey := os.Getenv("HEYGEN_API_KEY")
	if heygenKey == "" {
		log.Warn().Msg("HEYGEN_API_KEY not set, avatar tokens are placeholders")
	}

	cfg := Config{
		HTTPAddress: envStr("HTTP_ADDRESS", ":8080"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogFormat:   envStr("LOG_FORMAT", "json"),

		RedisURL: os.Getenv("REDIS_URL"),

		KafkaEnabled:          envBool("KAFKA_ENABLED", false),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicTurns:       envStr("KAFKA_TOPIC_TURNS", "interview.turns"),
		KafkaTopicTransitions: envStr("KAFKA_TOPIC_TRANSITIONS", "interview.transitions"),

		CerebrasKey:     cerebrasKey,
		CerebrasModelID: envStr("CEREBRAS_MODEL_ID", "gpt-oss-120b"),
		HeyGenKey:       heygenKey,

		PassingScore: envInt("PASSING_SCORE", 80),
		GreetingCap:  envInt("GREETING_EXCHANGE_LIMIT", 3),
		TechnicalCap: envInt("TECHNICAL_EXCHANGE_LIMIT", 10),

		StrictGuardrails: envBool("STRICT_GUARDRAILS", false),
	}

	log.Info().Str("httpAddress", cfg.HTTPAddress).Bool("kafka", cfg.KafkaEnabled).Bool("redis", cfg.RedisURL != "").Msg("config loaded")
	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, using default")
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
