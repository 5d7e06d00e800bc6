package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultNegotiationTimeout = 30 * time.Second
	DefaultSendQueueSize      = 256
)

type Config struct {
	Port              string
	Environment       string
	LogLevel          string
	AllowedOrigins    []string
	JWTSecret         string
	SendQueueSize     int
	DeadlockDetection bool
	Redis             RedisConfig
	Call              CallConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// CallConfig holds the settings used by call clients.
type CallConfig struct {
	RelayURL           string
	ICEServers         []string
	NegotiationTimeout time.Duration
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	origins := splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"))

	return &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:    origins,
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SendQueueSize:     getEnvInt("SEND_QUEUE_SIZE", DefaultSendQueueSize),
		DeadlockDetection: getEnvBool("DEADLOCK_DETECTION", false),
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Call: CallConfig{
			RelayURL:           getEnv("RELAY_URL", "ws://localhost:8080/ws"),
			ICEServers:         splitList(getEnv("ICE_SERVERS", "stun:stun.l.google.com:19302")),
			NegotiationTimeout: getEnvDuration("NEGOTIATION_TIMEOUT", DefaultNegotiationTimeout),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
