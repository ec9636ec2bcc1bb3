package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"
	"github.com/dalfonso89/travel-assistant-api/internal/provider/amadeus"
	"github.com/dalfonso89/travel-assistant-api/internal/provider/geoapify"

	"github.com/sirupsen/logrus"
)

const accommodationCategories = "accommodation"

// ErrCoordinatesUnavailable marks a geocoded tier skipped because the location could not be resolved
var ErrCoordinatesUnavailable = fmt.Errorf("coordinates unavailable: %w", provider.ErrNoData)

// ListingService runs the lodging, dining and attraction waterfalls
type ListingService struct {
	hotels    HotelSearcher
	places    PlaceSearcher
	resolver  *CoordinateResolver
	waterfall *Waterfall
	logger    *logger.Logger
}

// NewListingService accepts nil providers; their tiers are left out.
func NewListingService(hotels HotelSearcher, places PlaceSearcher, resolver *CoordinateResolver, waterfall *Waterfall, log *logger.Logger) *ListingService {
	if log == nil {
		log = logger.Discard()
	}
	return &ListingService{hotels: hotels, places: places, resolver: resolver, waterfall: waterfall, logger: log}
}

// SearchAccommodations tries the booking provider, then places tagged as accommodation
func (s *ListingService) SearchAccommodations(ctx context.Context, query models.SearchQuery, filters models.Filters) ([]models.ListingRecord, error) {
	query.Kind = models.KindAccommodation
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	var tiers []Tier
	if s.hotels != nil {
		tiers = append(tiers, Tier{
			Name: s.hotels.Name(),
			Fetch: filtered(filters, func(ctx context.Context) ([]models.ListingRecord, error) {
				return s.hotels.SearchHotels(ctx, amadeus.HotelSearch{
					City:     query.Location,
					CheckIn:  query.CheckIn,
					CheckOut: query.CheckOut,
					Adults:   query.Guests,
				})
			}),
		})
	}
	tiers = append(tiers, s.placesTier(query, accommodationCategories, filters)...)

	return s.run(ctx, query, filters, tiers)
}

// SearchFoods looks up restaurants, narrowed to a cuisine when one is given
func (s *ListingService) SearchFoods(ctx context.Context, query models.SearchQuery, filters models.Filters) ([]models.ListingRecord, error) {
	query.Kind = models.KindFood
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	return s.run(ctx, query, filters, s.placesTier(query, geoapify.FoodCategories(query.Cuisine), filters))
}

// SearchPlaces looks up attractions in a category
func (s *ListingService) SearchPlaces(ctx context.Context, query models.SearchQuery, filters models.Filters) ([]models.ListingRecord, error) {
	query.Kind = models.KindPlace
	if err := validateQuery(query); err != nil {
		return nil, err
	}
	return s.run(ctx, query, filters, s.placesTier(query, geoapify.PlaceCategories(query.Category), filters))
}

// SearchNearby searches around a known coordinate, skipping resolution
func (s *ListingService) SearchNearby(ctx context.Context, query models.SearchQuery, center models.Coordinate, filters models.Filters) ([]models.ListingRecord, error) {
	if _, err := models.NewCoordinate(center.Longitude, center.Latitude); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if query.Kind == "" {
		query.Kind = models.KindPlace
	}
	if strings.TrimSpace(query.Location) == "" {
		query.Location = fmt.Sprintf("%.4f,%.4f", center.Latitude, center.Longitude)
	}

	var tiers []Tier
	if s.places != nil {
		categories := categoriesFor(query)
		tiers = append(tiers, Tier{
			Name: s.places.Name(),
			Fetch: filtered(filters, func(ctx context.Context) ([]models.ListingRecord, error) {
				return s.places.SearchPlaces(ctx, categories, center, query.Kind)
			}),
		})
	}
	return s.run(ctx, query, filters, tiers)
}

// ResolveCoordinates exposes the resolver for the geocode endpoint
func (s *ListingService) ResolveCoordinates(ctx context.Context, place, countryHint string) *models.Coordinate {
	if s.resolver == nil {
		return nil
	}
	return s.resolver.Resolve(ctx, place, countryHint)
}

func (s *ListingService) placesTier(query models.SearchQuery, categories string, filters models.Filters) []Tier {
	if s.places == nil {
		return nil
	}
	return []Tier{{
		Name: s.places.Name(),
		Fetch: filtered(filters, func(ctx context.Context) ([]models.ListingRecord, error) {
			center := s.ResolveCoordinates(ctx, query.Location, query.CountryHint)
			if center == nil {
				return nil, ErrCoordinatesUnavailable
			}
			return s.places.SearchPlaces(ctx, categories, *center, query.Kind)
		}),
	}}
}

func (s *ListingService) run(ctx context.Context, query models.SearchQuery, filters models.Filters, tiers []Tier) ([]models.ListingRecord, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	records, err := s.waterfall.Run(ctx, query.Kind, tiers, func(index int) (models.ListingRecord, bool) {
		return DefaultListings(query, filters, index)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"kind":     query.Kind,
		"location": query.Location,
		"count":    len(records),
	}).Info("Listing search completed")
	return records, nil
}

// filtered applies the predicate filters before the waterfall counts a tier's records
func filtered(filters models.Filters, fetch TierFunc) TierFunc {
	return func(ctx context.Context) ([]models.ListingRecord, error) {
		records, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return ApplyFilters(records, filters), nil
	}
}

func categoriesFor(query models.SearchQuery) string {
	switch query.Kind {
	case models.KindAccommodation:
		return accommodationCategories
	case models.KindFood:
		return geoapify.FoodCategories(query.Cuisine)
	default:
		return geoapify.PlaceCategories(query.Category)
	}
}

func validateQuery(query models.SearchQuery) error {
	if strings.TrimSpace(query.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidQuery)
	}
	if !query.CheckIn.IsZero() && !query.CheckOut.IsZero() && !query.CheckOut.After(query.CheckIn) {
		return fmt.Errorf("%w: check-out must be after check-in", ErrInvalidQuery)
	}
	if query.Guests < 0 {
		return fmt.Errorf("%w: guests must not be negative", ErrInvalidQuery)
	}
	return nil
}

// MaxRating is the top of every provider's rating scale
const MaxRating = 5.0

// validateFilters keeps the synthetic pool able to satisfy every filter
func validateFilters(filters models.Filters) error {
	bounds := []struct {
		name  string
		value *float64
	}{
		{"minPrice", filters.MinPrice},
		{"maxPrice", filters.MaxPrice},
		{"minRating", filters.MinRating},
	}
	for _, bound := range bounds {
		name, value := bound.name, bound.value
		if value == nil {
			continue
		}
		if math.IsNaN(*value) || math.IsInf(*value, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidQuery, name)
		}
		if *value < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidQuery, name)
		}
	}
	if filters.MinRating != nil && *filters.MinRating > MaxRating {
		return fmt.Errorf("%w: minRating must not exceed %g", ErrInvalidQuery, MaxRating)
	}
	if filters.MinPrice != nil && filters.MaxPrice != nil && *filters.MinPrice > *filters.MaxPrice {
		return fmt.Errorf("%w: minPrice must not exceed maxPrice", ErrInvalidQuery)
	}
	return nil
}
