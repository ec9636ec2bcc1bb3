package service

import (
	"context"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider/amadeus"

	"github.com/shopspring/decimal"
)

// HotelSearcher is the structured-booking tier
type HotelSearcher interface {
	Name() string
	SearchHotels(ctx context.Context, search amadeus.HotelSearch) ([]models.ListingRecord, error)
}

// PlaceSearcher is the general places tier
type PlaceSearcher interface {
	Name() string
	SearchPlaces(ctx context.Context, categories string, center models.Coordinate, kind models.ListingKind) ([]models.ListingRecord, error)
}

// Geocoder resolves free text to a coordinate, optionally limited to a country
type Geocoder interface {
	Geocode(ctx context.Context, text, countryCode string) (*models.Coordinate, error)
}

// Normalizer maps aliases and non-English names to a canonical place name
type Normalizer interface {
	Normalize(ctx context.Context, name string) (string, error)
}

// DailyRateSource returns the home-currency value of one unit per currency for a date
type DailyRateSource interface {
	Name() string
	DailyRates(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error)
}

// Observer receives resilience events; *metrics.Metrics implements it.
type Observer interface {
	TierOutcome(kind, tier, status string)
	Backfilled(kind string, count int)
	RateResolved(source string)
	ModelInvocation(outcome string)
	IdentifiersPruned(count int)
}

type noopObserver struct{}

func (noopObserver) TierOutcome(string, string, string) {}
func (noopObserver) Backfilled(string, int)             {}
func (noopObserver) RateResolved(string)                {}
func (noopObserver) ModelInvocation(string)             {}
func (noopObserver) IdentifiersPruned(int)              {}

func observerOrNoop(observer Observer) Observer {
	if observer == nil {
		return noopObserver{}
	}
	return observer
}
