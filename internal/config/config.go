package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Model
	ModelProvider        string
	GeminiAPIKey         string
	AssistantModel       string
	GeminiConcurrentReqs int

	// Assistant engine
	HistoryWindow        int
	MaxToolRounds        int
	ToolTimeoutSeconds   int
	SessionIdleDays      int

	// Property lookup
	PropertyLookupURL       string
	PropertyLookupAPIKey    string
	PropertyCacheTTLMinutes int

	// Logging
	LogLevel string
	LogFile  string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		JWTSecret:            mustGetEnv("JWT_SECRET"),
		ModelProvider:        getEnvOrDefault("MODEL_PROVIDER", "gemini"),
		AssistantModel:       getEnvOrDefault("ASSISTANT_MODEL", "gemini-2.0-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		HistoryWindow:        clamp(getEnvAsIntOrDefault("ASSISTANT_HISTORY_WINDOW", 12), 10, 15),
		MaxToolRounds:        clamp(getEnvAsIntOrDefault("ASSISTANT_MAX_TOOL_ROUNDS", 2), 1, 2),
		ToolTimeoutSeconds:   getEnvAsIntOrDefault("ASSISTANT_TOOL_TIMEOUT_SECONDS", 20),
		SessionIdleDays:      getEnvAsIntOrDefault("ASSISTANT_SESSION_IDLE_DAYS", 90),

		PropertyLookupURL:       getEnvOrDefault("PROPERTY_LOOKUP_URL", ""),
		PropertyLookupAPIKey:    getEnvOrDefault("PROPERTY_LOOKUP_API_KEY", ""),
		PropertyCacheTTLMinutes: getEnvAsIntOrDefault("PROPERTY_CACHE_TTL_MINUTES", 24*60),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  getEnvOrDefault("LOG_FILE", ""),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	// The mock provider runs without an API key.
	if cfg.ModelProvider == "mock" {
		cfg.GeminiAPIKey = getEnvOrDefault("GEMINI_API_KEY", "")
	} else {
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
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

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
