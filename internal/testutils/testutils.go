package testutils

import (
	"context"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
)

// MockLogger creates a logger that discards output
func MockLogger() *logger.Logger {
	return logger.Discard()
}

// MockConfig creates a configuration pointing every provider at unreachable defaults.
// Tests override BaseURL with fake upstream servers.
func MockConfig() *config.Config {
	provider := func(name string, priority int) config.ProviderConfig {
		return config.ProviderConfig{
			Name:     name,
			BaseURL:  "http://127.0.0.1:1",
			APIKey:   "test-key",
			Enabled:  true,
			Priority: priority,
			Timeout:  2 * time.Second,
		}
	}

	amadeus := provider(config.ProviderAmadeus, 1)
	amadeus.APISecret = "test-secret"

	return &config.Config{
		Port:     "8081",
		LogLevel: "debug",

		Providers: []config.ProviderConfig{
			amadeus,
			provider(config.ProviderGeoapify, 2),
			provider(config.ProviderExim, 3),
		},
		LLM: config.LLMConfig{
			BaseURL: "http://127.0.0.1:1/v1",
			APIKey:  "test-key",
			Model:   "test-model",
			Timeout: 2 * time.Second,
		},
		Search: config.SearchConfig{
			LowWatermark: 5,
			FillTarget:   10,
			RadiusMeters: 10000,
			PlacesLimit:  20,
		},

		EximTimezone:       "Asia/Seoul",
		SessionHistorySize: 10,

		RateLimitEnabled:  true,
		RateLimitRequests: 100,
		RateLimitWindow:   60 * time.Second,
		RateLimitBurst:    10,
	}
}

// WithProviderURL points the named provider at baseURL
func WithProviderURL(configuration *config.Config, name, baseURL string) *config.Config {
	for i := range configuration.Providers {
		if configuration.Providers[i].Name == name {
			configuration.Providers[i].BaseURL = baseURL
		}
	}
	return configuration
}

// MockHealthCheck creates a mock health check response for testing
func MockHealthCheck() models.HealthCheck {
	return models.HealthCheck{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    "1m30s",
	}
}

// MockErrorResponse creates a mock error response for testing
func MockErrorResponse() models.ErrorResponse {
	return models.ErrorResponse{
		Error:   "test error",
		Message: "test error message",
		Code:    400,
	}
}

// MockContextWithTimeout creates a context with timeout for testing
func MockContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
