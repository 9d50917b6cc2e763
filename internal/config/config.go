package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Supported LLM providers.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM provider: "ollama", "openai" or "anthropic"
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Embeddings (optional; empty model disables embedding)
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Worker pool
	WorkerCount int

	// HTTP server
	ServerAddr string

	// Coverage defaults
	CoverageConfigPath string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "docharvester"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "main"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     getEnv("DOCHARVESTER_LLM_PROVIDER", "ollama"),
		LLMModel:        getEnv("DOCHARVESTER_LLM_MODEL", "llama3.2"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		EmbedProvider:  getEnv("DOCHARVESTER_EMBED_PROVIDER", ProviderOllama),
		EmbedModel:     getEnv("DOCHARVESTER_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("DOCHARVESTER_EMBED_DIMENSION", 384),

		ChunkSize:    getEnvInt("DOCHARVESTER_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("DOCHARVESTER_CHUNK_OVERLAP", 100),

		WorkerCount: getEnvInt("DOCHARVESTER_WORKERS", 4),

		ServerAddr: getEnv("DOCHARVESTER_SERVER_ADDR", ":8080"),

		CoverageConfigPath: getEnv("DOCHARVESTER_COVERAGE_CONFIG", "config/coverage.yaml"),

		LogFile:  getEnv("DOCHARVESTER_LOG_FILE", "/tmp/docharvester.log"),
		LogLevel: parseLogLevel(getEnv("DOCHARVESTER_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
