package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the process configuration read from the environment.
type Config struct {
	Environment string
	Server      Server
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Outbox      OutboxConfig
	Log         LogConfig
	Notify      NotifyConfig
	SessionTTL  time.Duration
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	// StaffRole is the token role required on /notices routes. Empty allows
	// any authenticated staff user.
	StaffRole string
}

// DatabaseConfig configures the postgres pool. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the session store client. An empty URL selects the
// in-memory session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the notification publisher. No brokers selects the
// logging publisher.
type KafkaConfig struct {
	Brokers           []string
	ClientID          string
	Topic             string
	Partitions        int
	ReplicationFactor int
}

// OutboxConfig tunes the outbox relay.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string
	Level  string
}

// NotifyConfig holds the delivery provider template id for each message ref,
// read from NOTIFY_TEMPLATE_IDS as "ref=id,ref=id".
type NotifyConfig struct {
	TemplateIDs map[string]string
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: Server{
			Addr:          getEnv("WRLS_ADDR", ":8080"),
			JWTSigningKey: jwtSigningKey,
			JWTIssuer:     getEnv("JWT_ISSUER", "wrls-idm"),
			JWTAudience:   getEnv("JWT_AUDIENCE", "wrls-notices"),
			StaffRole:     os.Getenv("STAFF_ROLE"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(os.Getenv("KAFKA_BROKERS")),
			ClientID: getEnv("KAFKA_CLIENT_ID", "wrls-notices"),
			Topic:    getEnv("NOTIFICATIONS_TOPIC", "wrls.notifications"),

			Partitions:        getInt("NOTIFICATIONS_TOPIC_PARTITIONS", 6),
			ReplicationFactor: getInt("NOTIFICATIONS_TOPIC_REPLICATION", 1),
		},
		Outbox: OutboxConfig{
			PollInterval: getDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
		},
		Log: LogConfig{
			Format: getEnv("LOG_FORMAT", "json"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
		Notify: NotifyConfig{
			TemplateIDs: splitPairs(os.Getenv("NOTIFY_TEMPLATE_IDS")),
		},
		SessionTTL: getDuration("SESSION_TTL", 24*time.Hour),
	}
}

// IsDevelopment reports whether the process runs outside production.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "local"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
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

// splitPairs parses "key=value" items of a comma separated list. Items
// without a key or value are skipped.
func splitPairs(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitList(raw) {
		key, value, ok := strings.Cut(part, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
