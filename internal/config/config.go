package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Tracing  TracingConfig
	Keys     APIKeys
	Ai       AIConfig
	Agent    AgentConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection      string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration
}

// TracingConfig drives the OTLP exporter. Tracing stays off unless Enabled.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type APIKeys struct {
	GoogleGemini string
	OpenAI       string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string // embedding model served by ollama
	LLMProvider       string // "ollama" or "openai"
	LLMModel          string
	LLMBaseURL        string // optional override for OpenAI-compatible endpoints
	LLMTimeout        time.Duration
	EmbeddingTimeout  time.Duration
}

// AgentConfig tunes the agent core: loop bound, history window and RAG retrieval.
type AgentConfig struct {
	MaxIterations       int
	HistoryWindow       int
	CompactionThreshold int
	CompactionTail      int
	SessionTTL          time.Duration

	NoteTopK              int
	NoteThreshold         float64
	ConversationTopK      int
	ConversationThreshold float64
	ConversationChars     int

	EmbedTopic   string
	ProfileTopic string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			SlowQuery:       getEnvAsDuration("DB_SLOW_QUERY", 500*time.Millisecond),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-notetaking-agent"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "qwen2.5"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			EmbeddingTimeout:  getEnvAsDuration("EMBEDDING_TIMEOUT", 5*time.Second),
		},
		Agent: AgentConfig{
			MaxIterations:       getEnvAsInt("AGENT_MAX_ITERATIONS", 10),
			HistoryWindow:       getEnvAsInt("AGENT_HISTORY_WINDOW", 10),
			CompactionThreshold: getEnvAsInt("AGENT_COMPACTION_THRESHOLD", 40),
			CompactionTail:      getEnvAsInt("AGENT_COMPACTION_TAIL", 20),
			SessionTTL:          getEnvAsDuration("AGENT_SESSION_TTL", 30*time.Minute),

			NoteTopK:              getEnvAsInt("RAG_NOTE_TOP_K", 5),
			NoteThreshold:         getEnvAsFloat("RAG_NOTE_THRESHOLD", 0.5),
			ConversationTopK:      getEnvAsInt("RAG_CONVERSATION_TOP_K", 3),
			ConversationThreshold: getEnvAsFloat("RAG_CONVERSATION_THRESHOLD", 0.7),
			ConversationChars:     getEnvAsInt("RAG_CONVERSATION_CHARS", 300),

			EmbedTopic:   getEnv("EMBED_TOPIC_NAME", "EMBED_AGENT_CONTENT"),
			ProfileTopic: getEnv("PROFILE_TOPIC_NAME", "AGENT_PROFILE_OBSERVATION"),
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
