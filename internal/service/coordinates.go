package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"
	"github.com/dalfonso89/travel-assistant-api/internal/tables"

	"github.com/sirupsen/logrus"
)

// CoordinateResolver turns a free-text place name into a coordinate. Each stage runs only
// when the previous one produced nothing; failures are logged and never returned.
type CoordinateResolver struct {
	normalizer Normalizer
	geocoder   Geocoder
	tables     *tables.Tables
	logger     *logger.Logger
}

// NewCoordinateResolver accepts nil normalizer or geocoder; the matching stages are then skipped.
func NewCoordinateResolver(normalizer Normalizer, geocoder Geocoder, lookup *tables.Tables, log *logger.Logger) *CoordinateResolver {
	if lookup == nil {
		lookup = tables.Default()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CoordinateResolver{normalizer: normalizer, geocoder: geocoder, tables: lookup, logger: log}
}

// Resolve returns nil when the place cannot be located. Blank input makes no calls at all.
func (r *CoordinateResolver) Resolve(ctx context.Context, place, countryHint string) *models.Coordinate {
	preprocessed := PreprocessPlaceName(place)
	if preprocessed == "" {
		return nil
	}
	countryHint = strings.ToUpper(strings.TrimSpace(countryHint))

	entry := r.logger.WithFields(logrus.Fields{"place": preprocessed, "country": countryHint})

	canonical := r.canonicalName(ctx, preprocessed, entry)

	if coordinate := r.geocode(ctx, canonical, countryHint, entry); coordinate != nil {
		return coordinate
	}

	if countryHint != "" {
		qualified := fmt.Sprintf("%s, %s", canonical, r.tables.CountryName(countryHint))
		if coordinate := r.geocode(ctx, qualified, "", entry); coordinate != nil {
			return coordinate
		}
	}

	for _, name := range []string{canonical, preprocessed} {
		if longitude, latitude, ok := r.tables.Coordinates(name); ok {
			entry.WithField("matched", name).Info("Using well-known coordinates")
			return &models.Coordinate{Longitude: longitude, Latitude: latitude}
		}
	}

	entry.Warn("Could not resolve coordinates")
	return nil
}

func (r *CoordinateResolver) canonicalName(ctx context.Context, preprocessed string, entry *logrus.Entry) string {
	if alias, ok := r.tables.CityAlias(preprocessed); ok {
		return alias
	}
	if r.normalizer == nil {
		return preprocessed
	}

	normalized, err := r.normalizer.Normalize(ctx, preprocessed)
	if err != nil {
		entry.WithError(err).Warn("Place name normalization failed, using input")
		return preprocessed
	}
	normalized = PreprocessPlaceName(normalized)
	if normalized == "" {
		return preprocessed
	}
	return normalized
}

func (r *CoordinateResolver) geocode(ctx context.Context, text, countryCode string, entry *logrus.Entry) *models.Coordinate {
	if r.geocoder == nil {
		return nil
	}

	coordinate, err := r.geocoder.Geocode(ctx, text, countryCode)
	if err != nil {
		entry.WithFields(logrus.Fields{
			"query":      text,
			"error":      err,
			"error_type": provider.Classify(err).String(),
		}).Warn("Geocoding failed")
		return nil
	}
	return coordinate
}

// PreprocessPlaceName strips periods and commas and collapses whitespace
func PreprocessPlaceName(place string) string {
	cleaned := strings.NewReplacer(".", "", ",", " ").Replace(place)
	return strings.Join(strings.Fields(cleaned), " ")
}
