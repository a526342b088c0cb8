package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is built once at process start and handed to every constructor.
type Config struct {
	// Completion backend
	CompletionProvider  string
	GroqApiKey          string
	OpenAIApiKey        string
	GoogleApiKey        string
	CompletionBaseURL   string
	AgentModel          string
	AgentTemperature    float64
	AgentMaxTokens      int
	ExpanderModel       string
	ExpanderTemperature float64
	ChatModel           string

	// Search and rerank backends
	TavilyApiKey  string
	TavilyBaseURL string
	CohereApiKey  string
	CohereBaseURL string
	RerankModel   string

	// Advanced search pipeline
	ExpansionFanOut int
	SearchK         int
	RerankTopM      int
	SearchWorkers   int
	MaxExcerptChars int

	// Retry/backoff governor
	MaxRetries          int
	RequestTimeout      time.Duration
	PacingDelay         time.Duration
	SearchMaxRetries    int
	SearchTimeout       time.Duration
	SearchPacingDelay   time.Duration
	ExpanderRetries     int
	ExpanderBackoffUnit time.Duration

	RolesFile string
	Port      string
}

// Load reads the process environment (and a .env file when present).
func Load() *Config {
	// A missing .env is fine as long as the variables are set.
	_ = godotenv.Load()

	provider := getEnv("COMPLETION_PROVIDER", ProviderGroq)
	model := DefaultModel(provider)

	return &Config{
		CompletionProvider:  provider,
		GroqApiKey:          getEnv("GROQ_API_KEY", ""),
		OpenAIApiKey:        getEnv("OPENAI_API_KEY", ""),
		GoogleApiKey:        getEnv("GOOGLE_API_KEY", ""),
		CompletionBaseURL:   getEnv("COMPLETION_BASE_URL", ""),
		AgentModel:          getEnv("AGENT_MODEL", model),
		AgentTemperature:    getEnvAsFloat("AGENT_TEMPERATURE", 0.7),
		AgentMaxTokens:      getEnvAsInt("AGENT_MAX_TOKENS", 2048),
		ExpanderModel:       getEnv("EXPANDER_MODEL", model),
		ExpanderTemperature: getEnvAsFloat("EXPANDER_TEMPERATURE", 0),
		ChatModel:           getEnv("CHAT_MODEL", "gemini-2.0-flash"),

		TavilyApiKey:  getEnv("TAVILY_API_KEY", ""),
		TavilyBaseURL: getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
		CohereApiKey:  getEnv("COHERE_API_KEY", ""),
		CohereBaseURL: getEnv("COHERE_BASE_URL", "https://api.cohere.com"),
		RerankModel:   getEnv("RERANK_MODEL", "rerank-english-v3.0"),

		ExpansionFanOut: getEnvAsInt("EXPANSION_FAN_OUT", 2),
		SearchK:         getEnvAsInt("SEARCH_K", 1),
		RerankTopM:      getEnvAsInt("RERANK_TOP_M", 1),
		SearchWorkers:   getEnvAsInt("SEARCH_WORKERS", 1),
		MaxExcerptChars: getEnvAsInt("MAX_EXCERPT_CHARS", 4000),

		MaxRetries:          getEnvAsInt("MAX_RETRIES", 15),
		RequestTimeout:      getEnvAsDuration("REQUEST_TIMEOUT", 600*time.Second),
		PacingDelay:         getEnvAsDuration("PACING_DELAY", 2*time.Second),
		SearchMaxRetries:    getEnvAsInt("SEARCH_MAX_RETRIES", 3),
		SearchTimeout:       getEnvAsDuration("SEARCH_TIMEOUT", 30*time.Second),
		SearchPacingDelay:   getEnvAsDuration("SEARCH_PACING_DELAY", 500*time.Millisecond),
		ExpanderRetries:     getEnvAsInt("EXPANDER_RETRIES", 3),
		ExpanderBackoffUnit: getEnvAsDuration("EXPANDER_BACKOFF_UNIT", 2*time.Second),

		RolesFile: getEnv("ROLES_FILE", ""),
		Port:      getEnv("PORT", "8081"),
	}
}

// DefaultModel is the completion model used when AGENT_MODEL or
// EXPANDER_MODEL is not set.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	default:
		return "llama-3.3-70b-versatile"
	}
}

// CompletionApiKey returns the credential for the selected completion provider.
func (c *Config) CompletionApiKey() string {
	switch c.CompletionProvider {
	case ProviderOpenAI:
		return c.OpenAIApiKey
	case ProviderGemini:
		return c.GoogleApiKey
	default:
		return c.GroqApiKey
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("2s", "500ms") or plain seconds ("600").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
