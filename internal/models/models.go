package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrInvalidRate       = errors.New("exchange rate must be positive")
)

// ListingKind selects which lookup a search runs.
type ListingKind string

const (
	KindAccommodation ListingKind = "accommodation"
	KindFood          ListingKind = "food"
	KindPlace         ListingKind = "place"
)

// Coordinate is a lon/lat pair. A missing coordinate is a nil *Coordinate, never a half-filled value.
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// NewCoordinate validates both axes together
func NewCoordinate(longitude, latitude float64) (Coordinate, error) {
	if math.IsNaN(longitude) || math.IsNaN(latitude) ||
		longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return Coordinate{}, fmt.Errorf("%w: lon=%f lat=%f", ErrInvalidCoordinate, longitude, latitude)
	}
	return Coordinate{Longitude: longitude, Latitude: latitude}, nil
}

// ListingRecord is a provider-agnostic search result. Values are never mutated after creation.
type ListingRecord struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Address     string           `json:"address"`
	Category    string           `json:"category"`
	Rating      *float64         `json:"rating,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Coordinates *Coordinate      `json:"coordinates,omitempty"`
	Source      string           `json:"source"`
}

// SearchQuery describes one listing lookup
type SearchQuery struct {
	Kind        ListingKind
	Location    string
	CountryHint string
	CheckIn     time.Time
	CheckOut    time.Time
	Guests      int
	Cuisine     string
	Category    string
}

// Filters are simple predicates applied after the waterfall has assembled a list
type Filters struct {
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
}

// ExchangeRate is always "1 From = Rate To".
type ExchangeRate struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Rate   decimal.Decimal `json:"rate"`
	AsOf   time.Time       `json:"asOf"`
	Source string          `json:"source"`
}

// NewExchangeRate rejects zero and negative rates
func NewExchangeRate(from, to string, rate decimal.Decimal, asOf time.Time, source string) (ExchangeRate, error) {
	if !rate.IsPositive() {
		return ExchangeRate{}, fmt.Errorf("%w: %s->%s %s", ErrInvalidRate, from, to, rate.String())
	}
	return ExchangeRate{From: from, To: to, Rate: rate, AsOf: asOf, Source: source}, nil
}

// Conversion is the result of applying an ExchangeRate to an amount
type Conversion struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	Amount          decimal.Decimal `json:"amount"`
	Rate            decimal.Decimal `json:"rate"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	AsOf            time.Time       `json:"asOf"`
	Source          string          `json:"source"`
}

type ConvertRequest struct {
	From   string          `json:"from" binding:"required"`
	To     string          `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"sessionId"`
}

type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

type ListingResponse struct {
	Kind     ListingKind     `json:"kind"`
	Location string          `json:"location"`
	Count    int             `json:"count"`
	Results  []ListingRecord `json:"results"`
}

type HealthCheck struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
