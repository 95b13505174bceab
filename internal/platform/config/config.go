package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration. Empty DatabaseURL, Redis.URL or
// Kafka.Brokers select the in-memory alternatives.
type Server struct {
	Addr               string
	DatabaseURL        string
	JWTSigningKey      string
	JWTIssuer          string
	JWTAudience        string
	VerificationSecret string
	PublicBaseURL      string
	LogLevel           string
	Redis              RedisConfig
	Kafka              KafkaConfig
	Render             RenderConfig
	Document           DocumentConfig
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers        []string
	AuditTopic     string
	ClientID       string
	OutboxInterval time.Duration
	OutboxBatch    int
}

// RenderConfig sizes the headless browser pool. ChromeURL attaches to a
// running browser instead of launching one.
type RenderConfig struct {
	PoolSize       int
	AcquireTimeout time.Duration
	ChromeBin      string
	ChromeURL      string
	ImageTimeout   time.Duration
	ImageMaxBytes  int64
}

type DocumentConfig struct {
	FrontMatterPages  int
	MaxStandards      int
	GenerationTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}
	verificationSecret := os.Getenv("VERIFICATION_SECRET")
	if verificationSecret == "" {
		verificationSecret = "dev-verification-secret-change-in-production"
	}

	return Server{
		Addr:               envString("PORTFOLIO_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSigningKey:      jwtSigningKey,
		JWTIssuer:          envString("JWT_ISSUER", "portfolio"),
		JWTAudience:        envString("JWT_AUDIENCE", "portfolio-api"),
		VerificationSecret: verificationSecret,
		PublicBaseURL:      envString("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:           envString("LOG_LEVEL", "info"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:        splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:     envString("AUDIT_TOPIC", "portfolio.audit"),
			ClientID:       envString("KAFKA_CLIENT_ID", "portfolio"),
			OutboxInterval: envDuration("OUTBOX_INTERVAL", 2*time.Second),
			OutboxBatch:    envInt("OUTBOX_BATCH", 100),
		},
		Render: RenderConfig{
			PoolSize:       envInt("RENDER_POOL_SIZE", 4),
			AcquireTimeout: envDuration("RENDER_ACQUIRE_TIMEOUT", 5*time.Second),
			ChromeBin:      os.Getenv("CHROME_BIN"),
			ChromeURL:      os.Getenv("CHROME_URL"),
			ImageTimeout:   envDuration("IMAGE_FETCH_TIMEOUT", 5*time.Second),
			ImageMaxBytes:  int64(envInt("IMAGE_MAX_BYTES", 5<<20)),
		},
		Document: DocumentConfig{
			FrontMatterPages:  envInt("FRONT_MATTER_PAGES", 2),
			MaxStandards:      envInt("MAX_STANDARDS", 11),
			GenerationTimeout: envDuration("GENERATION_TIMEOUT", 60*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
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
