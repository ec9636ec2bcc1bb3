package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider/amadeus"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWaterfall(t *testing.T) *Waterfall {
	t.Helper()
	waterfall, err := NewWaterfall(5, 10, nil, nil)
	require.NoError(t, err)
	return waterfall
}

func syntheticPool(prefix string, size int) BackfillFunc {
	pool := records(prefix, size)
	return func(index int) (models.ListingRecord, bool) {
		if index < 1 || index > len(pool) {
			return models.ListingRecord{}, false
		}
		return pool[index-1], true
	}
}

func TestWaterfall_SkipsLaterTiersWhenFirstTierMeetsWatermark(t *testing.T) {
	first := &countingTier{records: records("t1", 5)}
	second := &countingTier{records: records("t2", 3)}

	got, err := newTestWaterfall(t).Run(context.Background(), models.KindAccommodation, []Tier{
		{Name: "first", Fetch: first.Fetch},
		{Name: "second", Fetch: second.Fetch},
	}, syntheticPool("syn", 10))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Calls())
	assert.Equal(t, 0, second.Calls())
	assert.Len(t, got, 5)
}

func TestWaterfall_MergesInTierOrderWithoutDuplicates(t *testing.T) {
	first := &countingTier{records: records("shared", 2)}
	second := &countingTier{records: append(records("shared", 2), records("t2", 1)...)}
	// same id, different content: the first tier's copy must win
	second.records[0].Name = "overwritten"

	got, err := newTestWaterfall(t).Run(context.Background(), models.KindFood, []Tier{
		{Name: "first", Fetch: first.Fetch},
		{Name: "second", Fetch: second.Fetch},
	}, syntheticPool("syn", 10))
	require.NoError(t, err)

	want := []string{"shared-1", "shared-2", "t2-1", "syn-1", "syn-2", "syn-3", "syn-4", "syn-5", "syn-6", "syn-7"}
	if diff := cmp.Diff(want, ids(got)); diff != "" {
		t.Errorf("merged ids mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "shared 1", got[0].Name)
}

func TestWaterfall_AllTiersEmptyReachesFillTarget(t *testing.T) {
	first := &countingTier{}
	second := &countingTier{err: errors.New("connection refused")}

	got, err := newTestWaterfall(t).Run(context.Background(), models.KindPlace, []Tier{
		{Name: "first", Fetch: first.Fetch},
		{Name: "second", Fetch: second.Fetch},
	}, func(index int) (models.ListingRecord, bool) {
		return DefaultListings(models.SearchQuery{Kind: models.KindPlace, Location: "Seoul"}, models.Filters{}, index)
	})
	require.NoError(t, err)

	require.Len(t, got, 10)
	for _, record := range got {
		assert.Equal(t, DefaultSource, record.Source)
	}
	assert.Equal(t, 1, second.Calls())
}

func TestWaterfall_FirstTierFailureFallsThrough(t *testing.T) {
	failures := []error{
		context.DeadlineExceeded,
		amadeus.ErrCandidatesExhausted,
		errors.New("unexpected"),
	}

	for _, failure := range failures {
		t.Run(failure.Error(), func(t *testing.T) {
			first := &countingTier{err: failure}
			second := &countingTier{records: records("t2", 6)}

			got, err := newTestWaterfall(t).Run(context.Background(), models.KindAccommodation, []Tier{
				{Name: "first", Fetch: first.Fetch},
				{Name: "second", Fetch: second.Fetch},
			}, syntheticPool("syn", 10))
			require.NoError(t, err)

			assert.Equal(t, 1, second.Calls())
			assert.Equal(t, ids(records("t2", 6)), ids(got))
		})
	}
}

func TestWaterfall_PanickingTierIsAFailure(t *testing.T) {
	second := &countingTier{records: records("t2", 5)}

	got, err := newTestWaterfall(t).Run(context.Background(), models.KindFood, []Tier{
		{Name: "first", Fetch: func(ctx context.Context) ([]models.ListingRecord, error) { panic("boom") }},
		{Name: "second", Fetch: second.Fetch},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestWaterfall_BackfillStopsWhenPoolExhausted(t *testing.T) {
	got, err := newTestWaterfall(t).Run(context.Background(), models.KindFood, nil, syntheticPool("syn", 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"syn-1", "syn-2", "syn-3"}, ids(got))
}

func TestWaterfall_NoBackfillAtWatermark(t *testing.T) {
	first := &countingTier{records: records("t1", 3)}
	second := &countingTier{records: records("t2", 2)}

	got, err := newTestWaterfall(t).Run(context.Background(), models.KindFood, []Tier{
		{Name: "first", Fetch: first.Fetch},
		{Name: "second", Fetch: second.Fetch},
	}, syntheticPool("syn", 10))
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestWaterfall_NeverReturnsNil(t *testing.T) {
	got, err := newTestWaterfall(t).Run(context.Background(), models.KindFood, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestValidateTiers(t *testing.T) {
	fetch := (&countingTier{}).Fetch

	assert.NoError(t, ValidateTiers([]Tier{{Name: "a", Threshold: 5, Fetch: fetch}, {Name: "b", Threshold: 8, Fetch: fetch}}))
	assert.ErrorIs(t, ValidateTiers([]Tier{{Name: "a", Threshold: 8, Fetch: fetch}, {Name: "b", Threshold: 5, Fetch: fetch}}), ErrInvalidTiers)
	assert.ErrorIs(t, ValidateTiers([]Tier{{Name: "a", Threshold: -1, Fetch: fetch}}), ErrInvalidTiers)
	assert.ErrorIs(t, ValidateTiers([]Tier{{Name: "a", Threshold: 5}}), ErrInvalidTiers)

	_, err := newTestWaterfall(t).Run(context.Background(), models.KindFood, []Tier{
		{Name: "a", Threshold: 9, Fetch: fetch},
		{Name: "b", Fetch: fetch},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidTiers)
}

func TestNewWaterfallRejectsBadBounds(t *testing.T) {
	_, err := NewWaterfall(0, 10, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidTiers)

	_, err = NewWaterfall(5, 4, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidTiers)
}
