package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/dalfonso89/travel-assistant-api/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// DefaultPoolSize is the number of synthetic records available per search
	DefaultPoolSize = 10
	DefaultSource   = "default"
	DefaultCurrency = "KRW"
)

type defaultProfile struct {
	noun     string
	category string
	minPrice float64
	maxPrice float64
	priced   bool
}

var defaultProfiles = map[models.ListingKind]defaultProfile{
	models.KindAccommodation: {noun: "Stay", category: "hotel", minPrice: 60000, maxPrice: 240000, priced: true},
	models.KindFood:          {noun: "Restaurant", category: "restaurant", minPrice: 8000, maxPrice: 45000, priced: true},
	models.KindPlace:         {noun: "Attraction", category: "tourism"},
}

// DefaultListings returns the synthetic record at a 1-based index. It is a pure function of its
// arguments: the same kind, location, filters and index always give the same record, and the
// record satisfies the filters. ok is false outside [1, DefaultPoolSize].
func DefaultListings(query models.SearchQuery, filters models.Filters, index int) (models.ListingRecord, bool) {
	if index < 1 || index > DefaultPoolSize {
		return models.ListingRecord{}, false
	}
	kind := query.Kind
	profile, ok := defaultProfiles[kind]
	if !ok {
		profile = defaultProfiles[models.KindPlace]
	}

	location := strings.Join(strings.Fields(query.Location), " ")
	if location == "" {
		location = "Local"
	}

	category := profile.category
	switch {
	case kind == models.KindFood && strings.TrimSpace(query.Cuisine) != "":
		category = strings.ToLower(strings.TrimSpace(query.Cuisine))
	case kind == models.KindPlace && strings.TrimSpace(query.Category) != "":
		category = strings.ToLower(strings.TrimSpace(query.Category))
	}

	rating := math.Round((4.0+float64(index%5)*0.1)*10) / 10
	if minRating, ok := finite(filters.MinRating); ok && rating < minRating {
		rating = math.Min(math.Ceil(minRating*10)/10, MaxRating)
	}

	record := models.ListingRecord{
		ID:       fmt.Sprintf("%s-default-%d", kind, index),
		Name:     fmt.Sprintf("%s %s %d", location, profile.noun, index),
		Address:  location,
		Category: category,
		Rating:   &rating,
		Source:   DefaultSource,
	}

	if profile.priced {
		price := defaultPrice(profile, filters, index)
		record.Price = &price
		record.Currency = DefaultCurrency
	}

	return record, true
}

// defaultPrice spreads the pool evenly across the filtered price range
func defaultPrice(profile defaultProfile, filters models.Filters, index int) decimal.Decimal {
	low, high := decimal.NewFromFloat(profile.minPrice), decimal.NewFromFloat(profile.maxPrice)
	if bound, ok := finite(filters.MinPrice); ok {
		low = decimal.NewFromFloat(bound)
		high = decimal.Max(high, low)
	}
	if bound, ok := finite(filters.MaxPrice); ok {
		high = decimal.NewFromFloat(bound)
		low = decimal.Min(low, high)
	}

	step := high.Sub(low).Div(decimal.NewFromInt(DefaultPoolSize - 1))
	price := low.Add(step.Mul(decimal.NewFromInt(int64(index - 1)))).Round(0)

	// rounding can push an integral bound outside a fractional range
	if price.LessThan(low) || price.GreaterThan(high) {
		price = low
	}
	return price
}

func finite(value *float64) (float64, bool) {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return 0, false
	}
	return *value, true
}

// ApplyFilters keeps records matching every set predicate. Records with an unknown
// price or rating are kept; the providers often omit both.
func ApplyFilters(records []models.ListingRecord, filters models.Filters) []models.ListingRecord {
	if filters.MinPrice == nil && filters.MaxPrice == nil && filters.MinRating == nil {
		return records
	}

	kept := make([]models.ListingRecord, 0, len(records))
	for _, record := range records {
		if record.Price != nil {
			price := record.Price.InexactFloat64()
			if filters.MinPrice != nil && price < *filters.MinPrice {
				continue
			}
			if filters.MaxPrice != nil && price > *filters.MaxPrice {
				continue
			}
		}
		if record.Rating != nil && filters.MinRating != nil && *record.Rating < *filters.MinRating {
			continue
		}
		kept = append(kept, record)
	}
	return kept
}
