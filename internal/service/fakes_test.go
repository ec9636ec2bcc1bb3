package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalfonso89/travel-assistant-api/internal/llm"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"
	"github.com/dalfonso89/travel-assistant-api/internal/provider/amadeus"

	"github.com/shopspring/decimal"
)

func records(prefix string, n int) []models.ListingRecord {
	out := make([]models.ListingRecord, n)
	for i := range out {
		out[i] = models.ListingRecord{ID: fmt.Sprintf("%s-%d", prefix, i+1), Name: fmt.Sprintf("%s %d", prefix, i+1), Source: prefix}
	}
	return out
}

func ids(list []models.ListingRecord) []string {
	out := make([]string, len(list))
	for i, record := range list {
		out[i] = record.ID
	}
	return out
}

type countingTier struct {
	mu      sync.Mutex
	calls   int
	records []models.ListingRecord
	err     error
}

func (c *countingTier) Fetch(ctx context.Context) ([]models.ListingRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.records, c.err
}

func (c *countingTier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeHotels struct {
	countingTier
	lastSearch amadeus.HotelSearch
}

func (f *fakeHotels) Name() string { return "amadeus" }

func (f *fakeHotels) SearchHotels(ctx context.Context, search amadeus.HotelSearch) ([]models.ListingRecord, error) {
	f.lastSearch = search
	return f.Fetch(ctx)
}

type fakePlaces struct {
	countingTier
	lastCategories string
	lastCenter     models.Coordinate
}

func (f *fakePlaces) Name() string { return "geoapify" }

func (f *fakePlaces) SearchPlaces(ctx context.Context, categories string, center models.Coordinate, kind models.ListingKind) ([]models.ListingRecord, error) {
	f.lastCategories = categories
	f.lastCenter = center
	return f.Fetch(ctx)
}

type geocodeCall struct {
	text    string
	country string
}

type fakeGeocoder struct {
	calls   []geocodeCall
	results map[string]*models.Coordinate
	err     error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, text, countryCode string) (*models.Coordinate, error) {
	f.calls = append(f.calls, geocodeCall{text: text, country: countryCode})
	if f.err != nil {
		return nil, f.err
	}
	if coordinate, ok := f.results[text]; ok {
		return coordinate, nil
	}
	return nil, fmt.Errorf("geocode %q: no results", text)
}

type fakeNormalizer struct {
	calls  int
	result string
	err    error
}

func (f *fakeNormalizer) Normalize(ctx context.Context, name string) (string, error) {
	f.calls++
	return f.result, f.err
}

type dailyTable struct {
	rates map[string]decimal.Decimal
	err   error
}

type fakeRateSource struct {
	mu     sync.Mutex
	tables map[string]dailyTable
	dates  []string
	delay  time.Duration
	// gate, when set, holds every lookup until closed or until ctx ends
	gate chan struct{}
}

func (f *fakeRateSource) Name() string { return "koreaexim" }

func (f *fakeRateSource) DailyRates(ctx context.Context, date time.Time) (map[string]decimal.Decimal, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	key := date.Format("2006-01-02")

	f.mu.Lock()
	f.dates = append(f.dates, key)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	table, ok := f.tables[key]
	if !ok {
		return nil, fmt.Errorf("no table: %w", provider.ErrNoData)
	}
	return table.rates, table.err
}

func (f *fakeRateSource) Dates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dates...)
}

type scriptedCompleter struct {
	mu       sync.Mutex
	errs     []error
	reply    string
	calls    int
	messages [][]llm.Message
}

func (s *scriptedCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, messages)
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return "", s.errs[s.calls-1]
	}
	return s.reply, nil
}

func floatPtr(v float64) *float64 {
	return &v
}

func decimalPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

type toolStep struct {
	reply llm.Reply
	err   error
}

// scriptedToolCompleter plays back steps in order and repeats the last one
type scriptedToolCompleter struct {
	mu       sync.Mutex
	steps    []toolStep
	calls    int
	requests [][]llm.Message
	choices  []llm.ToolChoice
	offered  [][]llm.Tool
}

func (s *scriptedToolCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	reply, err := s.CompleteWithTools(ctx, messages, nil, "")
	return reply.Content, err
}

func (s *scriptedToolCompleter) CompleteWithTools(ctx context.Context, messages []llm.Message, tools []llm.Tool, choice llm.ToolChoice) (llm.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, append([]llm.Message(nil), messages...))
	s.choices = append(s.choices, choice)
	s.offered = append(s.offered, tools)

	step := s.steps[min(s.calls, len(s.steps)-1)]
	s.calls++
	return step.reply, step.err
}
