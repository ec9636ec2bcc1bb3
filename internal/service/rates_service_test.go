package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"
	"github.com/dalfonso89/travel-assistant-api/internal/tables"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seoul = time.FixedZone("KST", 9*60*60)

func fixedClock() time.Time {
	return time.Date(2026, 10, 17, 10, 0, 0, 0, seoul)
}

func newTestRates(source DailyRateSource) *RatesService {
	return NewRatesService(source, tables.Default(), nil, RatesOptions{Clock: fixedClock, Location: seoul})
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestGetRate_SameCurrencyIsOne(t *testing.T) {
	source := &fakeRateSource{}
	rates := newTestRates(source)

	for _, code := range []string{"USD", "KRW", "XYZ"} {
		rate := rates.GetRate(context.Background(), code, code)
		assert.True(t, rate.Rate.Equal(decimal.NewFromInt(1)), code)
		assert.Equal(t, fixedClock(), rate.AsOf)
		assert.Equal(t, SourceIdentity, rate.Source)
	}
	assert.Empty(t, source.Dates())
}

func TestGetRate_WalksBackToEarlierTable(t *testing.T) {
	source := &fakeRateSource{tables: map[string]dailyTable{
		"2026-10-15": {rates: map[string]decimal.Decimal{"USD": d("1300.5")}},
	}}

	rate := newTestRates(source).GetRate(context.Background(), "USD", "KRW")

	assert.True(t, rate.Rate.Equal(d("1300.5")), rate.Rate.String())
	assert.Equal(t, "koreaexim", rate.Source)
	assert.Equal(t, "2026-10-15", rate.AsOf.Format("2006-01-02"))
	assert.Equal(t, []string{"2026-10-17", "2026-10-16", "2026-10-15"}, source.Dates())
}

func TestGetRate_CrossRates(t *testing.T) {
	table := map[string]decimal.Decimal{
		"USD": d("1300"),
		"JPY": d("9.5"),
		"CNH": d("190"),
	}
	source := &fakeRateSource{tables: map[string]dailyTable{"2026-10-17": {rates: table}}}
	rates := newTestRates(source)

	tests := []struct {
		from, to string
		want     string
	}{
		{"USD", "KRW", "1300"},
		{"KRW", "USD", "0.0007692308"},
		{"USD", "JPY", "136.8421052632"},
		{"CNY", "KRW", "190"},
	}
	for _, tt := range tests {
		rate := rates.GetRate(context.Background(), tt.from, tt.to)
		assert.True(t, rate.Rate.Equal(d(tt.want)), "%s->%s got %s", tt.from, tt.to, rate.Rate)
		assert.Equal(t, "koreaexim", rate.Source)
	}
}

func TestGetRate_StaticFallbackAfterWalkBack(t *testing.T) {
	source := &fakeRateSource{}
	rate := newTestRates(source).GetRate(context.Background(), "USD", "KRW")

	assert.Len(t, source.Dates(), DefaultWalkBackDays)
	assert.Equal(t, SourceStatic, rate.Source)
	assert.True(t, rate.Rate.Equal(d("1465")))
	assert.Equal(t, fixedClock(), rate.AsOf)
}

func TestGetRate_StaticCrossRate(t *testing.T) {
	rate := newTestRates(nil).GetRate(context.Background(), "EUR", "USD")
	assert.Equal(t, SourceStatic, rate.Source)
	assert.True(t, rate.Rate.Equal(d("1592.3913043478").DivRound(d("1465"), 10)))
}

func TestGetRate_UnknownCurrencyDegradesToOne(t *testing.T) {
	rate := newTestRates(nil).GetRate(context.Background(), "XAU", "KRW")
	assert.Equal(t, SourceDefault, rate.Source)
	assert.True(t, rate.Rate.Equal(decimal.NewFromInt(1)))
}

func TestGetRate_ProviderErrorsAdvanceWalkBack(t *testing.T) {
	source := &fakeRateSource{tables: map[string]dailyTable{
		"2026-10-17": {err: &provider.StatusError{Provider: "koreaexim", StatusCode: 502}},
		"2026-10-16": {err: errors.New("i/o timeout")},
		"2026-10-14": {rates: map[string]decimal.Decimal{"EUR": d("1500")}},
	}}

	rate := newTestRates(source).GetRate(context.Background(), "eur", "krw")
	assert.Equal(t, "EUR", rate.From)
	assert.True(t, rate.Rate.Equal(d("1500")))
	assert.Equal(t, "2026-10-14", rate.AsOf.Format("2006-01-02"))
}

func TestGetRate_MissingCurrencyKeepsWalkingBack(t *testing.T) {
	source := &fakeRateSource{tables: map[string]dailyTable{
		"2026-10-17": {rates: map[string]decimal.Decimal{"USD": d("1300")}},
		"2026-10-16": {rates: map[string]decimal.Decimal{"USD": d("1299"), "THB": d("40")}},
	}}

	rate := newTestRates(source).GetRate(context.Background(), "THB", "USD")
	assert.Equal(t, "2026-10-16", rate.AsOf.Format("2006-01-02"))
	assert.True(t, rate.Rate.Equal(d("40").DivRound(d("1299"), 10)))
}

func TestGetRate_CancelledContextUsesStaticTable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeRateSource{tables: map[string]dailyTable{
		"2026-10-17": {rates: map[string]decimal.Decimal{"USD": d("1300")}},
	}}
	rate := newTestRates(source).GetRate(ctx, "USD", "KRW")

	assert.Equal(t, SourceStatic, rate.Source)
	assert.Empty(t, source.Dates())
}

func TestGetRate_DepartingCallerDoesNotCancelSharedLookup(t *testing.T) {
	source := &fakeRateSource{
		gate:   make(chan struct{}),
		tables: map[string]dailyTable{"2026-10-17": {rates: map[string]decimal.Decimal{"USD": d("1300")}}},
	}
	rates := newTestRates(source)

	firstContext, cancelFirst := context.WithCancel(context.Background())
	first := make(chan models.ExchangeRate, 1)
	go func() { first <- rates.GetRate(firstContext, "USD", "KRW") }()
	require.Eventually(t, func() bool { return len(source.Dates()) == 1 }, time.Second, time.Millisecond)

	second := make(chan models.ExchangeRate, 1)
	go func() { second <- rates.GetRate(context.Background(), "USD", "KRW") }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.Equal(t, SourceStatic, (<-first).Source)

	close(source.gate)
	rate := <-second
	assert.Equal(t, "koreaexim", rate.Source)
	assert.True(t, rate.Rate.Equal(d("1300")))
}

func TestGetRate_CollapsesConcurrentLookups(t *testing.T) {
	source := &fakeRateSource{
		delay:  20 * time.Millisecond,
		tables: map[string]dailyTable{"2026-10-17": {rates: map[string]decimal.Decimal{"USD": d("1300")}}},
	}
	rates := newTestRates(source)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rate := rates.GetRate(context.Background(), "USD", "KRW")
			assert.True(t, rate.Rate.Equal(d("1300")))
		}()
	}
	wg.Wait()

	assert.Less(t, len(source.Dates()), 10)
}

func TestConvert(t *testing.T) {
	source := &fakeRateSource{tables: map[string]dailyTable{
		"2026-10-17": {rates: map[string]decimal.Decimal{"USD": d("1300.50")}},
	}}
	rates := newTestRates(source)

	conversion, err := rates.Convert(context.Background(), "usd", "KRW", d("100"))
	require.NoError(t, err)
	assert.Equal(t, "130050.00", conversion.ConvertedAmount.StringFixed(2))
	assert.True(t, conversion.ConvertedAmount.Equal(d("130050")))
	assert.Equal(t, "USD", conversion.From)
}

func TestConvertAmountRoundsHalfUp(t *testing.T) {
	assert.Equal(t, "1.01", ConvertAmount(d("1"), d("1.005")).String())
	assert.Equal(t, "0.33", ConvertAmount(d("1"), d("0.3333333333")).String())
}

func TestConvert_RejectsBadInput(t *testing.T) {
	rates := newTestRates(nil)

	_, err := rates.Convert(context.Background(), "US", "KRW", d("1"))
	assert.ErrorIs(t, err, ErrInvalidCurrencyCode)

	_, err = rates.Convert(context.Background(), "USD", "K1W", d("1"))
	assert.ErrorIs(t, err, ErrInvalidCurrencyCode)

	_, err = rates.Convert(context.Background(), "USD", "KRW", d("0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = rates.Convert(context.Background(), "USD", "KRW", d("-5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
