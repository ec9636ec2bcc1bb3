package benchmark

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dalfonso89/travel-assistant-api/internal/api"
	"github.com/dalfonso89/travel-assistant-api/internal/app"
	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/testutils"
)

// BenchmarkTestSuite provides shared setup for benchmark tests
type BenchmarkTestSuite struct {
	server    *httptest.Server
	upstreams *testutils.FakeUpstreams
	app       *app.App
}

// NewBenchmarkTestSuite creates a new benchmark test suite
func NewBenchmarkTestSuite(b *testing.B) *BenchmarkTestSuite {
	upstreams := testutils.NewFakeUpstreams()

	cfg := testutils.MockConfig()
	cfg.RateLimitEnabled = false // Disable rate limiting for benchmarks
	testutils.WithProviderURL(cfg, config.ProviderAmadeus, upstreams.AmadeusURL())
	testutils.WithProviderURL(cfg, config.ProviderGeoapify, upstreams.GeoapifyURL())
	testutils.WithProviderURL(cfg, config.ProviderExim, upstreams.EximURL())
	cfg.LLM.BaseURL = upstreams.LLMURL()

	application, err := app.New(cfg, logger.New("error"), app.Options{
		Sleep: func(context.Context, time.Duration) error { return nil },
	})
	if err != nil {
		b.Fatalf("app.New() error = %v", err)
	}

	handlers := api.NewHandlers(api.HandlerConfig{
		Config:         cfg,
		Logger:         application.Logger,
		ListingService: application.Listings,
		RatesService:   application.Rates,
		ChatService:    application.Chat,
	})

	gin.SetMode(gin.TestMode)
	server := httptest.NewServer(handlers.SetupRoutes())

	return &BenchmarkTestSuite{server: server, upstreams: upstreams, app: application}
}

// Close cleans up the benchmark test suite
func (suite *BenchmarkTestSuite) Close() {
	suite.server.Close()
	suite.upstreams.Close()
	suite.app.Close()
}

func (suite *BenchmarkTestSuite) get(b *testing.B, path string) {
	resp, err := http.Get(suite.server.URL + path)
	if err != nil {
		b.Errorf("GET %s: %v", path, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b.Errorf("GET %s status = %d", path, resp.StatusCode)
	}
}

func BenchmarkHealthCheck(b *testing.B) {
	suite := NewBenchmarkTestSuite(b)
	defer suite.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		suite.get(b, "/health")
	}
}

func BenchmarkGetRate(b *testing.B) {
	suite := NewBenchmarkTestSuite(b)
	defer suite.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		suite.get(b, "/api/v1/rates/USD/KRW")
	}
}

func BenchmarkGetRateParallel(b *testing.B) {
	suite := NewBenchmarkTestSuite(b)
	defer suite.Close()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			suite.get(b, "/api/v1/rates/JPY/USD")
		}
	})
}

func BenchmarkSearchAccommodations(b *testing.B) {
	suite := NewBenchmarkTestSuite(b)
	defer suite.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		suite.get(b, "/api/v1/accommodations?location=Seoul")
	}
}

func BenchmarkSearchFoodsWithBackfill(b *testing.B) {
	suite := NewBenchmarkTestSuite(b)
	defer suite.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		suite.get(b, "/api/v1/foods?location=Seoul&minRating=4.2")
	}
}

func BenchmarkChat(b *testing.B) {
	suite := NewBenchmarkTestSuite(b)
	defer suite.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := http.Post(suite.server.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"message":"hi","sessionId":"bench"}`))
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}
