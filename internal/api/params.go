package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dalfonso89/travel-assistant-api/internal/models"
)

// parseSearch reads the shared listing query parameters
func parseSearch(context *gin.Context, kind models.ListingKind) (models.SearchQuery, models.Filters, error) {
	query := models.SearchQuery{
		Kind:        kind,
		Location:    strings.TrimSpace(context.Query("location")),
		CountryHint: strings.TrimSpace(context.Query("country")),
		Cuisine:     strings.TrimSpace(context.Query("cuisine")),
		Category:    strings.TrimSpace(context.Query("category")),
	}

	var err error
	if query.CheckIn, err = parseDate(context, "checkIn"); err != nil {
		return query, models.Filters{}, err
	}
	if query.CheckOut, err = parseDate(context, "checkOut"); err != nil {
		return query, models.Filters{}, err
	}
	if raw := context.Query("guests"); raw != "" {
		if query.Guests, err = strconv.Atoi(raw); err != nil {
			return query, models.Filters{}, fmt.Errorf("guests must be a whole number")
		}
	}

	filters, err := parseFilters(context)
	return query, filters, err
}

func parseFilters(context *gin.Context) (models.Filters, error) {
	var filters models.Filters
	var err error
	if filters.MinPrice, err = optionalFloat(context, "minPrice"); err != nil {
		return filters, err
	}
	if filters.MaxPrice, err = optionalFloat(context, "maxPrice"); err != nil {
		return filters, err
	}
	if filters.MinRating, err = optionalFloat(context, "minRating"); err != nil {
		return filters, err
	}
	if filters.MinPrice != nil && filters.MaxPrice != nil && *filters.MinPrice > *filters.MaxPrice {
		return filters, fmt.Errorf("minPrice must not exceed maxPrice")
	}
	return filters, nil
}

func parseDate(context *gin.Context, name string) (time.Time, error) {
	raw := context.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must use YYYY-MM-DD", name)
	}
	return parsed, nil
}

func optionalFloat(context *gin.Context, name string) (*float64, error) {
	raw := context.Query(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%s must be a finite number", name)
	}
	return &value, nil
}
