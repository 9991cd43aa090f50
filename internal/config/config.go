package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	Keys        APIKeys
	Ai          AIConfig
	VectorStore VectorStoreConfig
	Retrieval   RetrievalConfig
	Ingest      IngestConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
}

type APIKeys struct {
	GoogleGemini string
}

type AIConfig struct {
	EmbeddingProvider    string // "gemini" or "ollama"
	OllamaBaseURL        string
	OllamaEmbeddingModel string
	LLMProvider          string // "gemini" or "ollama"
	LLMModel             string // e.g. "gemini-2.0-flash", "llama3"
}

type VectorStoreConfig struct {
	Mode       string // "sqlite" (embedded, default) or "postgres" (networked)
	SQLitePath string
	Connection string // Postgres DSN, required in "postgres" mode
	Collection string
}

type RetrievalConfig struct {
	TopK int
}

type IngestConfig struct {
	DatasetPath    string
	MaxSamples     int
	MaxInputTokens int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:          getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:             getEnv("LLM_MODEL", "gemini-2.0-flash"),
		},
		VectorStore: VectorStoreConfig{
			Mode:       getEnv("VECTOR_STORE_MODE", "sqlite"),
			SQLitePath: getEnv("SQLITE_VEC_PATH", "./triage_vec.db"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			Collection: getEnv("VECTOR_COLLECTION_NAME", "mental_health_conversations"),
		},
		Retrieval: RetrievalConfig{
			TopK: getEnvAsInt("RETRIEVAL_TOP_K", 3),
		},
		Ingest: IngestConfig{
			DatasetPath:    getEnv("INGEST_DATASET_PATH", "./data/counseling_conversations.jsonl"),
			MaxSamples:     getEnvAsInt("INGEST_MAX_SAMPLES", 100),
			MaxInputTokens: getEnvAsInt("MAX_INPUT_TOKENS", 2048),
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
