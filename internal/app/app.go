// Package app wires configuration into provider clients and services. The
// HTTP server and the travelctl CLI both start from New.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/llm"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/metrics"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"
	"github.com/dalfonso89/travel-assistant-api/internal/provider/amadeus"
	"github.com/dalfonso89/travel-assistant-api/internal/provider/exim"
	"github.com/dalfonso89/travel-assistant-api/internal/provider/geoapify"
	"github.com/dalfonso89/travel-assistant-api/internal/ratelimit"
	"github.com/dalfonso89/travel-assistant-api/internal/service"
	"github.com/dalfonso89/travel-assistant-api/internal/tables"

	"github.com/sirupsen/logrus"
)

const (
	sessionIdleTimeout = 2 * time.Hour
	sessionSweepEvery  = 10 * time.Minute
)

// App holds every long-lived component
type App struct {
	Config      *config.Config
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	Listings    *service.ListingService
	Rates       *service.RatesService
	Chat        *service.ChatService
	Sessions    *service.SessionStore
	RateLimiter *ratelimit.Limiter
}

// Options overrides pieces that tests and the CLI need to control
type Options struct {
	Tables *tables.Tables
	Clock  func() time.Time
	Sleep  service.SleepFunc
}

// New builds the application. Disabled providers leave their tiers out.
func New(configuration *config.Config, log *logger.Logger, options Options) (*App, error) {
	if options.Tables == nil {
		options.Tables = tables.Default()
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}

	appMetrics := metrics.New(nil)

	location, err := time.LoadLocation(configuration.EximTimezone)
	if err != nil {
		return nil, fmt.Errorf("load exchange rate timezone %q: %w", configuration.EximTimezone, err)
	}

	waterfall, err := service.NewWaterfall(configuration.Search.LowWatermark, configuration.Search.FillTarget, log, appMetrics)
	if err != nil {
		return nil, err
	}

	modelClient := llm.NewClient(configuration.LLM)

	var hotels service.HotelSearcher
	if providerConfig, enabled := configuration.Provider(config.ProviderAmadeus); enabled {
		hotels = amadeus.NewClient(provider.NewClient(providerConfig), providerConfig, options.Tables, amadeus.PruningOptions{
			OnRetry: func(attempt int, removed []string, remaining int) {
				appMetrics.IdentifiersPruned(len(removed))
				log.WithFields(logrus.Fields{
					"attempt":   attempt,
					"removed":   removed,
					"remaining": remaining,
				}).Warn("Pruned invalid hotel identifiers")
			},
		})
	}

	var places service.PlaceSearcher
	var geocoder service.Geocoder
	if providerConfig, enabled := configuration.Provider(config.ProviderGeoapify); enabled {
		placesClient := geoapify.NewClient(provider.NewClient(providerConfig), providerConfig.APIKey,
			configuration.Search.RadiusMeters, configuration.Search.PlacesLimit)
		places = placesClient
		geocoder = placesClient
	}

	var rateSource service.DailyRateSource
	if providerConfig, enabled := configuration.Provider(config.ProviderExim); enabled {
		rateSource = exim.NewClient(provider.NewClient(providerConfig), providerConfig.APIKey)
	}

	resolver := service.NewCoordinateResolver(llm.NewNormalizer(modelClient), geocoder, options.Tables, log)
	sessions := service.NewSessionStore(options.Clock)
	backoff := service.NewOverloadBackoff(modelClient, service.DefaultBackoffDelays, options.Sleep, log, appMetrics)

	listings := service.NewListingService(hotels, places, resolver, waterfall, log)
	rates := service.NewRatesService(rateSource, options.Tables, log, service.RatesOptions{
		Clock:    options.Clock,
		Location: location,
		Observer: appMetrics,
	})

	return &App{
		Config:      configuration,
		Logger:      log,
		Metrics:     appMetrics,
		Listings:    listings,
		Rates:       rates,
		Chat:        service.NewChatService(backoff, sessions, service.NewChatTools(listings, rates), configuration.SessionHistorySize, log),
		Sessions:    sessions,
		RateLimiter: ratelimit.NewLimiter(configuration, log),
	}, nil
}

// SweepSessions evicts idle chat sessions until ctx is done
func (app *App) SweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := app.Sessions.Evict(sessionIdleTimeout); removed > 0 {
				app.Logger.Debugf("Evicted %d idle chat sessions", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops background goroutines
func (app *App) Close() {
	app.RateLimiter.Stop()
}
