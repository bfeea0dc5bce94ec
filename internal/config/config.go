// Package config loads terminal settings from the environment and an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gds_terminal/internal/storage"
)

// Config holds all configuration for the terminal binaries.
type Config struct {
	// Server
	Port         string
	APIKeys      []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SessionTTL   time.Duration

	// Storage
	Storage storage.Config

	// Messaging
	NATSURL     string
	NATSSubject string

	// Terminal
	LogLevel  string
	PageSize  int
	OfficeID  string
	AgentSign string
}

// Load reads .env if present, then the environment, applying defaults.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	st := storage.DefaultConfig()
	st.Driver = getEnv("STORE_DRIVER", st.Driver)
	st.SQLitePath = getEnv("SQLITE_PATH", st.SQLitePath)
	st.Postgres.Host = getEnv("POSTGRES_HOST", st.Postgres.Host)
	st.Postgres.Port = getEnvAsInt("POSTGRES_PORT", st.Postgres.Port)
	st.Postgres.Database = getEnv("POSTGRES_DB", st.Postgres.Database)
	st.Postgres.User = getEnv("POSTGRES_USER", st.Postgres.User)
	st.Postgres.Password = getEnv("POSTGRES_PASSWORD", st.Postgres.Password)
	st.Mongo.URI = getEnv("MONGO_URI", "")
	st.Mongo.Database = getEnv("MONGO_DATABASE", st.Mongo.Database)
	st.ClickHouse.Host = getEnv("CLICKHOUSE_HOST", "")
	st.ClickHouse.Port = getEnvAsInt("CLICKHOUSE_PORT", st.ClickHouse.Port)
	st.ClickHouse.Database = getEnv("CLICKHOUSE_DB", st.ClickHouse.Database)
	st.ClickHouse.User = getEnv("CLICKHOUSE_USER", st.ClickHouse.User)
	st.ClickHouse.Password = getEnv("CLICKHOUSE_PASSWORD", "")
	st.JournalBatch = getEnvAsInt("JOURNAL_BATCH", st.JournalBatch)

	return &Config{
		Port:         getEnv("PORT", "8080"),
		APIKeys:      splitList(getEnv("API_KEYS", "")),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 15)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 15)) * time.Second,
		SessionTTL:   time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 60)) * time.Minute,

		Storage: st,

		NATSURL:     getEnv("NATS_URL", ""),
		NATSSubject: getEnv("NATS_SUBJECT", "gds.pnr"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		PageSize:  getEnvAsInt("PAGE_SIZE", 5),
		OfficeID:  getEnv("OFFICE_ID", "BUEGDS001"),
		AgentSign: getEnv("AGENT_SIGN", "0001AA/SU"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
