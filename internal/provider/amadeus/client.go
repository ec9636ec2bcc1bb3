// Package amadeus talks to the structured booking provider: city code lookup,
// hotel id listing and batched offer search with identifier pruning.
package amadeus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"
	"github.com/dalfonso89/travel-assistant-api/internal/tables"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenPath       = "/v1/security/oauth2/token"
	citySearchPath  = "/v1/reference-data/locations/cities"
	hotelsByCity    = "/v1/reference-data/locations/hotels/by-city"
	hotelOffersPath = "/v3/shopping/hotel-offers"

	dateLayout = "2006-01-02"
	category   = "hotel"
)

// AuthError wraps token acquisition failures; credentials problems do not heal on retry.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "amadeus: token request failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) ErrorType() provider.ErrorType {
	return provider.ErrorTypePermanent
}

// APIError is a structured upstream error that is not about invalid identifiers.
type APIError struct {
	Code   string
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("amadeus: error %s: %s %s", e.Code, e.Title, e.Detail)
}

func (e *APIError) ErrorType() provider.ErrorType {
	return provider.ErrorTypePermanent
}

// HotelSearch describes one offer lookup
type HotelSearch struct {
	City     string
	CheckIn  time.Time
	CheckOut time.Time
	Adults   int
}

// Client is the booking provider client. Tokens are cached and refreshed by the oauth2 token source.
type Client struct {
	api        *provider.Client
	authorized *http.Client
	tables     *tables.Tables
	pruning    PruningOptions
}

// NewClient builds an authorized client on top of the shared provider plumbing
func NewClient(api *provider.Client, configuration config.ProviderConfig, lookup *tables.Tables, pruning PruningOptions) *Client {
	credentials := clientcredentials.Config{
		ClientID:     configuration.APIKey,
		ClientSecret: configuration.APISecret,
		TokenURL:     api.BaseURL() + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	base := api.HTTPClient()
	tokenContext := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	authorized := &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: credentials.TokenSource(tokenContext),
			Base:   base.Transport,
		},
	}

	return &Client{api: api, authorized: authorized, tables: lookup, pruning: pruning}
}

// Name returns the provider name
func (client *Client) Name() string {
	return client.api.Name()
}

// SearchHotels resolves the city, lists its hotels and fetches available offers
func (client *Client) SearchHotels(ctx context.Context, search HotelSearch) ([]models.ListingRecord, error) {
	cityCode, err := client.CityCode(ctx, search.City)
	if err != nil {
		return nil, err
	}

	hotelIDs, err := client.HotelIDs(ctx, cityCode)
	if err != nil {
		return nil, err
	}

	return FetchWithPruning(ctx, hotelIDs, client.pruning, func(ctx context.Context, batch []string) ([]models.ListingRecord, error) {
		return client.offers(ctx, batch, search)
	})
}

// CityCode returns the IATA city code, preferring the static table over the API
func (client *Client) CityCode(ctx context.Context, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("amadeus: empty city: %w", provider.ErrNoData)
	}
	if code, ok := client.tables.IATACode(city); ok {
		return code, nil
	}
	if alias, ok := client.tables.CityAlias(city); ok {
		if code, ok := client.tables.IATACode(alias); ok {
			return code, nil
		}
		city = alias
	}

	var response cityResponse
	if err := client.get(ctx, citySearchPath, url.Values{"keyword": {city}, "max": {"1"}}, &response); err != nil {
		return "", err
	}
	if len(response.Data) == 0 || response.Data[0].IATACode == "" {
		return "", fmt.Errorf("amadeus: city code for %q: %w", city, provider.ErrNoData)
	}
	return response.Data[0].IATACode, nil
}

// HotelIDs lists hotel identifiers for a city code
func (client *Client) HotelIDs(ctx context.Context, cityCode string) ([]string, error) {
	var response hotelListResponse
	if err := client.get(ctx, hotelsByCity, url.Values{"cityCode": {cityCode}}, &response); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(response.Data))
	for _, hotel := range response.Data {
		if hotel.HotelID != "" {
			ids = append(ids, hotel.HotelID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("amadeus: hotels in %s: %w", cityCode, provider.ErrNoData)
	}
	return ids, nil
}

func (client *Client) offers(ctx context.Context, batch []string, search HotelSearch) ([]models.ListingRecord, error) {
	adults := search.Adults
	if adults <= 0 {
		adults = 1
	}
	query := url.Values{
		"hotelIds": {strings.Join(batch, ",")},
		"adults":   {fmt.Sprint(adults)},
	}
	if !search.CheckIn.IsZero() {
		query.Set("checkInDate", search.CheckIn.Format(dateLayout))
	}
	if !search.CheckOut.IsZero() {
		query.Set("checkOutDate", search.CheckOut.Format(dateLayout))
	}

	var response hotelOffersResponse
	if err := client.get(ctx, hotelOffersPath, query, &response); err != nil {
		return nil, err
	}
	return toRecords(response.Data), nil
}

// get performs an authorized call and turns structured error payloads into typed errors
func (client *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	body, err := client.api.Get(ctx, client.authorized, path, query)

	var retrieveError *oauth2.RetrieveError
	if errors.As(err, &retrieveError) {
		return &AuthError{Err: retrieveError}
	}

	var envelope errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
		if ids := invalidIdentifiers(envelope.Errors); len(ids) > 0 {
			return &InvalidIdentifiersError{IDs: ids}
		}
		if err != nil {
			return err
		}
		first := envelope.Errors[0]
		return &APIError{Code: first.Code.String(), Title: first.Title, Detail: first.Detail}
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("amadeus: parse response: %w", err)
	}
	return nil
}

func toRecords(offers []hotelOffer) []models.ListingRecord {
	records := make([]models.ListingRecord, 0, len(offers))
	for _, offer := range offers {
		if !offer.Available || len(offer.Offers) == 0 || offer.Hotel.HotelID == "" {
			continue
		}

		record := models.ListingRecord{
			ID:       offer.Hotel.HotelID,
			Name:     offer.Hotel.Name,
			Category: category,
			Source:   config.ProviderAmadeus,
		}

		if address := offer.Hotel.Address; address != nil {
			if len(address.Lines) > 0 && strings.TrimSpace(address.Lines[0]) != "" {
				record.Address = address.Lines[0]
			} else {
				record.Address = address.CityName
			}
		}

		if rating, ok := offer.Hotel.Rating.Float(); ok {
			record.Rating = &rating
		}

		if price := offer.Offers[0].Price; price != nil {
			amount := price.Total
			if amount == "" {
				amount = price.Base
			}
			if value, err := decimal.NewFromString(amount); err == nil {
				record.Price = &value
				record.Currency = price.Currency
			}
		}

		if offer.Hotel.Latitude != nil && offer.Hotel.Longitude != nil {
			if coordinate, err := models.NewCoordinate(*offer.Hotel.Longitude, *offer.Hotel.Latitude); err == nil {
				record.Coordinates = &coordinate
			}
		}

		records = append(records, record)
	}
	return records
}
