package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Keys     APIKeys
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	OpenAI       string
	Jina         string
	IndexTopic   string // Async document indexing topic
}

type AIConfig struct {
	EmbeddingProvider   string // "openai" or "ollama"
	EmbeddingModel      string
	EmbeddingDimensions int
	OllamaBaseURL       string
	OpenAIBaseURL       string
	LLMProvider         string // default generation provider
	LLMModel            string
	OllamaLLMModel      string
	ContextBudget       int // prompt budget in characters
	RerankModel         string

	HybridDenseWeight  float64
	HybridSparseWeight float64

	EmbedTimeoutSeconds    int
	SearchTimeoutSeconds   int
	GenerateTimeoutSeconds int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			OpenAI:     getEnv("OPENAI_API_KEY", ""),
			Jina:       getEnv("JINA_API_KEY", ""),
			IndexTopic: getEnv("INDEX_DOCUMENT_TOPIC_NAME", "INDEX_DOCUMENT"),
		},
		Ai: AIConfig{
			EmbeddingProvider:   getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:      getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
			LLMProvider:         getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:            getEnv("LLM_MODEL", "gpt-4o-mini"),
			OllamaLLMModel:      getEnv("OLLAMA_LLM_MODEL", "llama3"),
			ContextBudget:       getEnvAsInt("CONTEXT_BUDGET_CHARS", 12000),
			RerankModel:         getEnv("RERANK_MODEL", "jina-reranker-v2-base-multilingual"),

			HybridDenseWeight:  getEnvAsFloat("HYBRID_DENSE_WEIGHT", 0.5),
			HybridSparseWeight: getEnvAsFloat("HYBRID_SPARSE_WEIGHT", 0.5),

			EmbedTimeoutSeconds:    getEnvAsInt("EMBED_TIMEOUT_SECONDS", 30),
			SearchTimeoutSeconds:   getEnvAsInt("SEARCH_TIMEOUT_SECONDS", 10),
			GenerateTimeoutSeconds: getEnvAsInt("GENERATE_TIMEOUT_SECONDS", 120),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
