// Package geoapify wraps the places and forward-geocoding endpoints.
package geoapify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"
)

const (
	placesPath  = "/v2/places"
	geocodePath = "/v1/geocode/search"

	DefaultRadiusMeters = 10000
	DefaultLimit        = 20
)

type placesResponse struct {
	Features []placeFeature `json:"features"`
}

type placeFeature struct {
	Properties struct {
		PlaceID    string   `json:"place_id"`
		Name       string   `json:"name"`
		Formatted  string   `json:"formatted"`
		Categories []string `json:"categories"`
		Rating     *float64 `json:"rating"`
		Lon        *float64 `json:"lon"`
		Lat        *float64 `json:"lat"`
	} `json:"properties"`
	Geometry struct {
		// GeoJSON order: [lon, lat]
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// coordinate prefers the GeoJSON point and falls back to the flattened properties
func (feature placeFeature) coordinate() *models.Coordinate {
	if point := feature.Geometry.Coordinates; len(point) >= 2 {
		if coordinate, err := models.NewCoordinate(point[0], point[1]); err == nil {
			return &coordinate
		}
	}
	properties := feature.Properties
	if properties.Lon != nil && properties.Lat != nil {
		if coordinate, err := models.NewCoordinate(*properties.Lon, *properties.Lat); err == nil {
			return &coordinate
		}
	}
	return nil
}

type geocodeResponse struct {
	Results []struct {
		Lon *float64 `json:"lon"`
		Lat *float64 `json:"lat"`
	} `json:"results"`
}

// Client searches points of interest around a coordinate
type Client struct {
	api    *provider.Client
	apiKey string
	radius int
	limit  int
}

func NewClient(api *provider.Client, apiKey string, radiusMeters, limit int) *Client {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Client{api: api, apiKey: apiKey, radius: radiusMeters, limit: limit}
}

func (client *Client) Name() string {
	return client.api.Name()
}

// SearchPlaces returns named places in the given categories around center
func (client *Client) SearchPlaces(ctx context.Context, categories string, center models.Coordinate, kind models.ListingKind) ([]models.ListingRecord, error) {
	query := url.Values{
		"categories": {categories},
		"filter":     {fmt.Sprintf("circle:%s,%s,%d", formatFloat(center.Longitude), formatFloat(center.Latitude), client.radius)},
		"limit":      {strconv.Itoa(client.limit)},
		"apiKey":     {client.apiKey},
	}

	var response placesResponse
	if err := client.api.GetJSON(ctx, placesPath, query, &response); err != nil {
		return nil, err
	}

	records := make([]models.ListingRecord, 0, len(response.Features))
	for _, feature := range response.Features {
		properties := feature.Properties
		if strings.TrimSpace(properties.Name) == "" {
			continue
		}

		record := models.ListingRecord{
			ID:          properties.PlaceID,
			Name:        properties.Name,
			Address:     properties.Formatted,
			Category:    primaryCategory(properties.Categories, kind),
			Rating:      properties.Rating,
			Coordinates: feature.coordinate(),
			Source:      config.ProviderGeoapify,
		}
		if record.ID == "" {
			record.ID = fmt.Sprintf("%s-%s", config.ProviderGeoapify, properties.Name)
		}
		records = append(records, record)
	}
	return records, nil
}

// Geocode resolves a place name to a city-level coordinate. countryCode may be empty.
func (client *Client) Geocode(ctx context.Context, text, countryCode string) (*models.Coordinate, error) {
	query := url.Values{
		"text":   {text},
		"type":   {"city"},
		"limit":  {"1"},
		"format": {"json"},
		"lang":   {"en"},
		"apiKey": {client.apiKey},
	}
	if countryCode = strings.TrimSpace(countryCode); countryCode != "" {
		query.Set("filter", "countrycode:"+strings.ToLower(countryCode))
	}

	var response geocodeResponse
	if err := client.api.GetJSON(ctx, geocodePath, query, &response); err != nil {
		return nil, err
	}
	if len(response.Results) == 0 || response.Results[0].Lon == nil || response.Results[0].Lat == nil {
		return nil, fmt.Errorf("geoapify: geocode %q: %w", text, provider.ErrNoData)
	}

	coordinate, err := models.NewCoordinate(*response.Results[0].Lon, *response.Results[0].Lat)
	if err != nil {
		return nil, err
	}
	return &coordinate, nil
}

// PlaceCategories maps a user-facing category onto the provider's category taxonomy
func PlaceCategories(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "museum":
		return "tourism.museum"
	case "park":
		return "entertainment.park"
	case "beach":
		return "beach"
	default:
		return "tourism"
	}
}

// FoodCategories narrows to restaurants when a cuisine is requested
func FoodCategories(cuisine string) string {
	if strings.TrimSpace(cuisine) != "" {
		return "catering.restaurant"
	}
	return "catering"
}

func primaryCategory(categories []string, kind models.ListingKind) string {
	if len(categories) > 0 {
		return categories[len(categories)-1]
	}
	return string(kind)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
