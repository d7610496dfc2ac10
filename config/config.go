package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ConfigurationError reports an invalid parameter combination. It is fatal:
// nothing is processed until the configuration validates.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

type Config struct {
	Environment  string
	HTTPPort     string
	Domains      []string
	CertCacheDir string
	DatabaseURL  string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval and self-correction
	RetrievalTopK           int
	ConfidenceThreshold     float64
	MaxRetries              int
	RetryTopKMultiplier     int
	RetryTopKCeiling        int
	RetryThresholdDecrement float64
	MinConfidenceFloor      float64
	AcceptOnMinCitations    bool
	MinCitations            int

	// Providers
	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMProvider        string
	LLMModel           string
	VectorIndex        string
	OpenAIAPIKey       string
	AnthropicAPIKey    string

	// Budgets
	QueryTimeout           time.Duration
	PerAttemptTimeout      time.Duration
	GenerationTimeout      time.Duration
	GenerationContextLimit int
	EmbedParallelism       int
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		HTTPPort:     getEnv("HTTP_PORT", "8087"),
		Domains:      []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir: getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),

		RetrievalTopK:           getEnvAsInt("RETRIEVAL_TOP_K", 5),
		ConfidenceThreshold:     getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.7),
		MaxRetries:              getEnvAsInt("MAX_RETRIES", 3),
		RetryTopKMultiplier:     getEnvAsInt("RETRY_TOPK_MULTIPLIER", 2),
		RetryTopKCeiling:        getEnvAsInt("RETRY_TOPK_CEILING", 50),
		RetryThresholdDecrement: getEnvAsFloat("RETRY_THRESHOLD_DECREMENT", 0.1),
		MinConfidenceFloor:      getEnvAsFloat("MIN_CONFIDENCE_FLOOR", 0.3),
		AcceptOnMinCitations:    getEnvAsBool("MIN_CITATIONS_ACCEPT", false),
		MinCitations:            getEnvAsInt("MIN_CITATIONS", 1),

		EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
		LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4-turbo-preview"),
		VectorIndex:        getEnv("VECTOR_INDEX", "pgvector"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),

		QueryTimeout:           time.Duration(getEnvAsInt("QUERY_TIMEOUT", 90)) * time.Second,
		PerAttemptTimeout:      time.Duration(getEnvAsInt("PER_ATTEMPT_TIMEOUT", 10)) * time.Second,
		GenerationTimeout:      time.Duration(getEnvAsInt("GENERATION_TIMEOUT", 60)) * time.Second,
		GenerationContextLimit: getEnvAsInt("GENERATION_CONTEXT_LIMIT", 12000),
		EmbedParallelism:       getEnvAsInt("EMBED_PARALLELISM", 4),
	}
}

// Validate rejects invalid parameter combinations before any processing
// begins.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return &ConfigurationError{Field: "CHUNK_SIZE", Reason: "must be positive"}
	}
	if c.ChunkOverlap < 0 {
		return &ConfigurationError{Field: "CHUNK_OVERLAP", Reason: "cannot be negative"}
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return &ConfigurationError{Field: "CHUNK_OVERLAP", Reason: "must be smaller than CHUNK_SIZE"}
	}
	if c.RetrievalTopK <= 0 {
		return &ConfigurationError{Field: "RETRIEVAL_TOP_K", Reason: "must be positive"}
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return &ConfigurationError{Field: "CONFIDENCE_THRESHOLD", Reason: "must be in [0,1]"}
	}
	if c.MaxRetries < 0 {
		return &ConfigurationError{Field: "MAX_RETRIES", Reason: "cannot be negative"}
	}
	if c.RetryTopKMultiplier < 1 {
		return &ConfigurationError{Field: "RETRY_TOPK_MULTIPLIER", Reason: "must be at least 1"}
	}
	if c.RetryTopKCeiling < c.RetrievalTopK {
		return &ConfigurationError{Field: "RETRY_TOPK_CEILING", Reason: "must be at least RETRIEVAL_TOP_K"}
	}
	if c.RetryThresholdDecrement < 0 {
		return &ConfigurationError{Field: "RETRY_THRESHOLD_DECREMENT", Reason: "cannot be negative"}
	}
	if c.MinConfidenceFloor < 0 || c.MinConfidenceFloor > c.ConfidenceThreshold {
		return &ConfigurationError{Field: "MIN_CONFIDENCE_FLOOR", Reason: "must be in [0, CONFIDENCE_THRESHOLD]"}
	}
	if c.MinCitations < 1 {
		return &ConfigurationError{Field: "MIN_CITATIONS", Reason: "must be at least 1"}
	}
	if c.EmbeddingDimension <= 0 {
		return &ConfigurationError{Field: "EMBEDDING_DIMENSION", Reason: "must be positive"}
	}
	if c.EmbedParallelism < 1 {
		return &ConfigurationError{Field: "EMBED_PARALLELISM", Reason: "must be at least 1"}
	}
	return nil
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
