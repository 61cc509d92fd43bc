package config

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	DefaultPort              = "8000"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultEmbeddingModel    = "openai/text-embedding-3-small"
)

type Config struct {
	// Server
	Port         string
	Env          string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Storage
	DataDir      string
	DatabasePath string

	// LLM (openrouter.ai)
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	EmbeddingModel    string
	LLMTimeout        time.Duration
}

// Load builds the configuration. Environment variables win, then values
// persisted in the app_config table, then the defaults.
func Load() *Config {
	dataDir := getEnv("MEMORY_ENGINE_DATA_DIR", "data")
	dbPath := getEnv("DATABASE_PATH", filepath.Join(dataDir, "memory-engine.db"))

	dbConfig := loadFromDatabase(dbPath)

	return &Config{
		Port:              getEnvOrDB("PORT", DefaultPort, dbConfig),
		Env:               getEnvOrDB("ENV", "development", dbConfig),
		LogLevel:          getEnvOrDB("LOG_LEVEL", "info", dbConfig),
		ReadTimeout:       seconds(getEnvIntOrDB("HTTP_READ_TIMEOUT_SECONDS", 15, dbConfig)),
		WriteTimeout:      seconds(getEnvIntOrDB("HTTP_WRITE_TIMEOUT_SECONDS", 30, dbConfig)),
		DataDir:           dataDir,
		DatabasePath:      dbPath,
		OpenRouterAPIKey:  getEnvOrDB("OPENROUTER_API_KEY", "", dbConfig),
		OpenRouterBaseURL: getEnvOrDB("OPENROUTER_BASE_URL", DefaultOpenRouterBaseURL, dbConfig),
		EmbeddingModel:    getEnvOrDB("EMBEDDING_MODEL", DefaultEmbeddingModel, dbConfig),
		LLMTimeout:        seconds(getEnvIntOrDB("LLM_TIMEOUT_SECONDS", 30, dbConfig)),
	}
}

// loadFromDatabase loads config values from SQLite. A missing database or
// table yields an empty map.
func loadFromDatabase(dbPath string) map[string]string {
	config := make(map[string]string)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return config
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return config
	}
	defer db.Close()

	rows, err := db.QueryContext(context.Background(), "SELECT key, value FROM app_config")
	if err != nil {
		return config
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err == nil {
			config[key] = value
		}
	}
	return config
}

// getEnvOrDB checks env first, then database, then falls back to default
func getEnvOrDB(key, fallback string, dbConfig map[string]string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	if value, ok := dbConfig[strings.ToLower(key)]; ok && value != "" {
		return value
	}
	return fallback
}

// getEnvIntOrDB checks env first, then database, then falls back to default
func getEnvIntOrDB(key string, fallback int, dbConfig map[string]string) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	if value, ok := dbConfig[strings.ToLower(key)]; ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
