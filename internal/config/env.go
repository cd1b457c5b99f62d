package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// OpenAI-compatible endpoint used for embeddings and streaming chat.
	LLMAPIURL string
	LLMAPIKey string

	// Native Ollama endpoint used for structured extraction.
	OllamaAPIURL string

	EmbedModel   string
	ChatModel    string
	ExtractModel string
	AgentVersion string

	ChunkSize    int
	ChunkOverlap int
	TopK         int

	Workers         int
	DefaultMaxPages int
	DefaultScale    float64
	RunSyncTimeout  time.Duration
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "5000"),
		LLMAPIURL:       getEnv("LLM_API_URL", "http://localhost:11434/v1"),
		LLMAPIKey:       getEnv("LLM_API_KEY", "ollama"),
		OllamaAPIURL:    getEnv("OLLAMA_API_URL", "http://localhost:11434/api"),
		EmbedModel:      getEnv("EMBED_MODEL", "nomic-embed-text"),
		ChatModel:       getEnv("CHAT_MODEL", "llama3.2"),
		ExtractModel:    getEnv("EXTRACT_MODEL", "gemma3:12b"),
		AgentVersion:    getEnv("AGENT_VERSION", "v1"),
		ChunkSize:       getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 200),
		TopK:            getEnvInt("TOP_K", 3),
		Workers:         getEnvInt("JOB_WORKERS", 2),
		DefaultMaxPages: getEnvInt("JOB_MAX_PAGES", 2),
		DefaultScale:    getEnvFloat("JOB_SCALE", 1.6),
		RunSyncTimeout:  getEnvDuration("JOB_RUN_TIMEOUT", 10*time.Minute),
	}
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
