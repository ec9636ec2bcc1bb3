package service

import (
	"context"
	"strings"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"
	"github.com/dalfonso89/travel-assistant-api/internal/tables"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultWalkBackDays is the number of dates tried: today plus four prior days
	DefaultWalkBackDays = 5
	divisionScale       = 10
	conversionScale     = 2

	SourceIdentity = "identity"
	SourceStatic   = "static"
	SourceDefault  = "default"
)

type RatesOptions struct {
	Clock        func() time.Time
	Location     *time.Location
	WalkBackDays int
	Observer     Observer
}

// RatesService resolves exchange rates. Provider failures never reach the caller.
type RatesService struct {
	source       DailyRateSource
	tables       *tables.Tables
	logger       *logger.Logger
	observer     Observer
	clock        func() time.Time
	location     *time.Location
	walkBackDays int

	singleFlightGroup singleflight.Group
}

// NewRatesService accepts a nil source; every lookup then uses the static table.
func NewRatesService(source DailyRateSource, lookup *tables.Tables, log *logger.Logger, options RatesOptions) *RatesService {
	if lookup == nil {
		lookup = tables.Default()
	}
	if log == nil {
		log = logger.Discard()
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.Location == nil {
		options.Location = time.UTC
	}
	if options.WalkBackDays <= 0 {
		options.WalkBackDays = DefaultWalkBackDays
	}

	return &RatesService{
		source:       source,
		tables:       lookup,
		logger:       log,
		observer:     observerOrNoop(options.Observer),
		clock:        options.Clock,
		location:     options.Location,
		walkBackDays: options.WalkBackDays,
	}
}

// GetRate returns "1 from = rate to". Same-currency pairs are 1 without touching the source.
func (ratesService *RatesService) GetRate(requestContext context.Context, from, to string) models.ExchangeRate {
	now := ratesService.clock().In(ratesService.location)
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		ratesService.observer.RateResolved(SourceIdentity)
		return models.ExchangeRate{From: from, To: to, Rate: decimal.NewFromInt(1), AsOf: now, Source: SourceIdentity}
	}

	if requestContext.Err() != nil {
		rate := ratesService.staticRate(from, to, now)
		ratesService.observer.RateResolved(rate.Source)
		return rate
	}

	// The shared lookup outlives any one caller; each caller waits only as long as its own context.
	cacheKey := "rate:" + from + ":" + to
	flight := ratesService.singleFlightGroup.DoChan(cacheKey, func() (interface{}, error) {
		return ratesService.resolve(context.WithoutCancel(requestContext), from, to, now), nil
	})

	var rate models.ExchangeRate
	select {
	case result := <-flight:
		rate = result.Val.(models.ExchangeRate)
	case <-requestContext.Done():
		ratesService.logger.WithFields(logrus.Fields{
			"from":  from,
			"to":    to,
			"error": requestContext.Err(),
		}).Warn("Caller left before the rate lookup finished, using static table")
		rate = ratesService.staticRate(from, to, now)
	}
	ratesService.observer.RateResolved(rate.Source)
	return rate
}

// Convert validates its input and applies the resolved rate, rounding half-up to 2 places
func (ratesService *RatesService) Convert(requestContext context.Context, from, to string, amount decimal.Decimal) (models.Conversion, error) {
	from, err := NormalizeCurrencyCode(from)
	if err != nil {
		return models.Conversion{}, err
	}
	to, err = NormalizeCurrencyCode(to)
	if err != nil {
		return models.Conversion{}, err
	}
	if err := validateAmount(amount); err != nil {
		return models.Conversion{}, err
	}

	rate := ratesService.GetRate(requestContext, from, to)
	return models.Conversion{
		From:            from,
		To:              to,
		Amount:          amount,
		Rate:            rate.Rate,
		ConvertedAmount: ConvertAmount(amount, rate.Rate),
		AsOf:            rate.AsOf,
		Source:          rate.Source,
	}, nil
}

// ConvertAmount is amount*rate rounded half-up to 2 decimal places
func ConvertAmount(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(conversionScale)
}

func (ratesService *RatesService) resolve(requestContext context.Context, from, to string, now time.Time) models.ExchangeRate {
	if ratesService.source != nil {
		if rate, ok := ratesService.walkBack(requestContext, from, to, now); ok {
			return rate
		}
	}
	return ratesService.staticRate(from, to, now)
}

// walkBack tries today and earlier dates until a table lists both currencies
func (ratesService *RatesService) walkBack(requestContext context.Context, from, to string, now time.Time) (models.ExchangeRate, bool) {
	for offset := 0; offset < ratesService.walkBackDays; offset++ {
		date := now.AddDate(0, 0, -offset)
		entry := ratesService.logger.WithFields(logrus.Fields{
			"provider": ratesService.source.Name(),
			"date":     date.Format("2006-01-02"),
			"from":     from,
			"to":       to,
		})

		rates, err := ratesService.source.DailyRates(requestContext, date)
		if err != nil {
			errorType := provider.Classify(err)
			switch errorType {
			case provider.ErrorTypeDataAbsent:
				entry.Info("No rate table for date, walking back")
			case provider.ErrorTypeContextCancelled:
				entry.WithError(err).Warn("Rate lookup cancelled")
				return models.ExchangeRate{}, false
			default:
				entry.WithFields(logrus.Fields{"error": err, "error_type": errorType.String()}).Warn("Rate source failed, walking back")
			}
			if requestContext.Err() != nil {
				return models.ExchangeRate{}, false
			}
			continue
		}

		fromRate, fromOK := ratesService.perUnit(rates, from)
		toRate, toOK := ratesService.perUnit(rates, to)
		if !fromOK || !toOK {
			entry.WithFields(logrus.Fields{"from_found": fromOK, "to_found": toOK}).Info("Currency missing from rate table, walking back")
			continue
		}

		rate, err := models.NewExchangeRate(from, to, CrossRate(fromRate, toRate), date, ratesService.source.Name())
		if err != nil {
			entry.WithError(err).Warn("Discarding unusable rate")
			continue
		}
		return rate, true
	}

	return models.ExchangeRate{}, false
}

// perUnit returns the home-currency value of one unit of code
func (ratesService *RatesService) perUnit(rates map[string]decimal.Decimal, code string) (decimal.Decimal, bool) {
	if code == ratesService.tables.HomeCurrency() {
		return decimal.NewFromInt(1), true
	}
	if rate, ok := rates[ratesService.tables.SourceCurrencyCode(code)]; ok {
		return rate, true
	}
	rate, ok := rates[code]
	return rate, ok
}

// CrossRate composes two home-currency-per-unit values into "1 from = x to".
// With the home currency on one side this reduces to the other side's rate or its reciprocal.
func CrossRate(fromPerUnit, toPerUnit decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	switch {
	case toPerUnit.Equal(one):
		return fromPerUnit
	case fromPerUnit.Equal(one):
		return one.DivRound(toPerUnit, divisionScale)
	default:
		return fromPerUnit.DivRound(toPerUnit, divisionScale)
	}
}

func (ratesService *RatesService) staticRate(from, to string, now time.Time) models.ExchangeRate {
	entry := ratesService.logger.WithFields(logrus.Fields{"from": from, "to": to})

	fromRate, fromOK := ratesService.tables.FallbackRate(from)
	toRate, toOK := ratesService.tables.FallbackRate(to)
	if !fromOK || !toOK {
		entry.WithFields(logrus.Fields{"from_known": fromOK, "to_known": toOK}).Warn("No static rate for currency, using 1")
		return models.ExchangeRate{From: from, To: to, Rate: decimal.NewFromInt(1), AsOf: now, Source: SourceDefault}
	}

	entry.Warn("Using static fallback rate")
	return models.ExchangeRate{From: from, To: to, Rate: CrossRate(fromRate, toRate), AsOf: now, Source: SourceStatic}
}
