package config

import (
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Provider names used to look up entries in Config.Providers
const (
	ProviderAmadeus  = "amadeus"
	ProviderGeoapify = "geoapify"
	ProviderExim     = "koreaexim"
)

// ProviderConfig represents a single upstream data provider
type ProviderConfig struct {
	Name              string
	BaseURL           string
	APIKey            string
	APISecret         string
	Enabled           bool
	Priority          int // Lower number = higher priority
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// LLMConfig configures the OpenAI-compatible generative model endpoint
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// SearchConfig holds the waterfall tuning knobs
type SearchConfig struct {
	LowWatermark int
	FillTarget   int
	RadiusMeters int
	PlacesLimit  int
}

// Config holds all configuration for the application
type Config struct {
	Port     string
	LogLevel string

	// Upstream providers sorted by priority
	Providers []ProviderConfig
	LLM       LLMConfig
	Search    SearchConfig

	// Exchange rate source calendar
	EximTimezone string

	SessionHistorySize int

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	timeout := time.Duration(mustAtoi(getEnv("PROVIDER_TIMEOUT_SECONDS", "12"), 12)) * time.Second

	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Providers: loadProviders(timeout),
		LLM: LLMConfig{
			BaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("LLM_API_KEY", ""),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout: time.Duration(mustAtoi(getEnv("LLM_TIMEOUT_SECONDS", "30"), 30)) * time.Second,
		},
		Search: SearchConfig{
			LowWatermark: mustAtoi(getEnv("SEARCH_LOW_WATERMARK", "5"), 5),
			FillTarget:   mustAtoi(getEnv("SEARCH_FILL_TARGET", "10"), 10),
			RadiusMeters: mustAtoi(getEnv("SEARCH_RADIUS_METERS", "10000"), 10000),
			PlacesLimit:  mustAtoi(getEnv("SEARCH_PLACES_LIMIT", "20"), 20),
		},

		EximTimezone:       getEnv("EXIM_TIMEZONE", "Asia/Seoul"),
		SessionHistorySize: mustAtoi(getEnv("SESSION_HISTORY_SIZE", "10"), 10),

		RateLimitEnabled:  getEnv("RATE_LIMIT_ENABLED", "true") == "true",
		RateLimitRequests: mustAtoi(getEnv("RATE_LIMIT_REQUESTS", "100"), 100),
		RateLimitWindow:   time.Duration(mustAtoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "60"), 60)) * time.Second,
		RateLimitBurst:    mustAtoi(getEnv("RATE_LIMIT_BURST", "10"), 10),
	}, nil
}

// Provider returns the named provider configuration and whether it is enabled
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, provider := range c.Providers {
		if provider.Name == name {
			return provider, provider.Enabled
		}
	}
	return ProviderConfig{}, false
}

// loadProviders loads the upstream providers from environment variables
func loadProviders(timeout time.Duration) []ProviderConfig {
	rps := mustAtof(getEnv("PROVIDER_REQUESTS_PER_SECOND", "5"), 5)
	burst := mustAtoi(getEnv("PROVIDER_BURST", "5"), 5)

	providers := []ProviderConfig{
		{
			Name:              ProviderAmadeus,
			BaseURL:           getEnv("AMADEUS_BASE_URL", "https://test.api.amadeus.com"),
			APIKey:            getEnv("AMADEUS_API_KEY", ""),
			APISecret:         getEnv("AMADEUS_API_SECRET", ""),
			Enabled:           getEnv("AMADEUS_ENABLED", "true") == "true",
			Priority:          1,
			Timeout:           timeout,
			RequestsPerSecond: rps,
			Burst:             burst,
		},
		{
			Name:              ProviderGeoapify,
			BaseURL:           getEnv("GEOAPIFY_BASE_URL", "https://api.geoapify.com"),
			APIKey:            getEnv("GEOAPIFY_API_KEY", ""),
			Enabled:           getEnv("GEOAPIFY_ENABLED", "true") == "true",
			Priority:          2,
			Timeout:           timeout,
			RequestsPerSecond: rps,
			Burst:             burst,
		},
		{
			Name:              ProviderExim,
			BaseURL:           getEnv("EXIM_BASE_URL", "https://oapi.koreaexim.go.kr/site/program/financial/exchangeJSON"),
			APIKey:            getEnv("EXIM_API_KEY", ""),
			Enabled:           getEnv("EXIM_ENABLED", "true") == "true",
			Priority:          3,
			Timeout:           timeout,
			RequestsPerSecond: rps,
			Burst:             burst,
		},
	}

	// Sort by priority (lower number = higher priority)
	sort.SliceStable(providers, func(i, j int) bool {
		return providers[i].Priority < providers[j].Priority
	})

	return providers
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func mustAtoi(s string, fallback int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return i
}

func mustAtof(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}
