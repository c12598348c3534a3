package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Transcription providers
const (
	ProviderGemini   = "gemini"
	ProviderDeepgram = "deepgram"
)

// Config holds all configuration for the scribe gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Public base URL, used only for logging the WebSocket endpoint.
	PublicURL string `envconfig:"PUBLIC_URL" default:""`

	// Allowed CORS origins, comma separated
	CORSAllowOrigins string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`

	// Gemini generative AI configuration. An empty key leaves transcription,
	// comparison and titling unconfigured; the service still starts.
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL" default:""`

	// Which capability turns captured audio into text: gemini or deepgram
	TranscriptionProvider string `envconfig:"TRANSCRIPTION_PROVIDER" default:"gemini"`

	// Deepgram prerecorded STT configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Upper bound for a single upstream AI call, in seconds
	AITimeout int `envconfig:"AI_TIMEOUT" default:"60"`

	// Record store
	DatabasePath string `envconfig:"DATABASE_PATH" default:"scribe.db"`
	SeedFile     string `envconfig:"SEED_FILE" default:""` // YAML patients loaded into an empty store

	// gRPC health service
	GRPCHealthEnabled bool   `envconfig:"GRPC_HEALTH_ENABLED" default:"true"`
	GRPCHealthPort    string `envconfig:"GRPC_HEALTH_PORT" default:"9090"`

	// WebSocket session transport
	WSMaxMessageSize int64 `envconfig:"WS_MAX_MESSAGE_SIZE" default:"10485760"` // bytes
	WSPingInterval   int   `envconfig:"WS_PING_INTERVAL" default:"25"`          // seconds
	WSWriteTimeout   int   `envconfig:"WS_WRITE_TIMEOUT" default:"10"`          // seconds

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	c.TranscriptionProvider = strings.ToLower(strings.TrimSpace(c.TranscriptionProvider))
	if c.TranscriptionProvider == "" {
		c.TranscriptionProvider = ProviderGemini
	}
	switch c.TranscriptionProvider {
	case ProviderGemini:
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when TRANSCRIPTION_PROVIDER=deepgram")
		}
	default:
		return fmt.Errorf("unsupported TRANSCRIPTION_PROVIDER %q", c.TranscriptionProvider)
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive, got %d", c.AITimeout)
	}
	return nil
}

// GeminiConfigured reports whether the generative AI capabilities are available.
func (c *Config) GeminiConfigured() bool {
	return c.GeminiAPIKey != ""
}

// AITimeoutDuration returns AI_TIMEOUT as a duration.
func (c *Config) AITimeoutDuration() time.Duration {
	return time.Duration(c.AITimeout) * time.Second
}

// AllowOrigins splits CORS_ALLOW_ORIGINS into a list.
func (c *Config) AllowOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
