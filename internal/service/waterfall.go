package service

import (
	"context"
	"fmt"

	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/models"
	"github.com/dalfonso89/travel-assistant-api/internal/provider"

	"github.com/sirupsen/logrus"
)

// TierStatus is the outcome of one tier call
type TierStatus int

const (
	TierSucceeded TierStatus = iota
	TierEmpty
	TierFailed
)

func (status TierStatus) String() string {
	switch status {
	case TierSucceeded:
		return "succeeded"
	case TierEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// TierResult replaces catch-all error handling: every tier call ends in exactly one status.
type TierResult struct {
	Tier    string
	Status  TierStatus
	Records []models.ListingRecord
	Err     error
}

type TierFunc func(ctx context.Context) ([]models.ListingRecord, error)

// Tier is consulted only while the merged unique count is below Threshold.
type Tier struct {
	Name      string
	Threshold int
	Fetch     TierFunc
}

// BackfillFunc returns the synthetic record at a 1-based index, or false when the pool is exhausted.
type BackfillFunc func(index int) (models.ListingRecord, bool)

// Waterfall queries tiers sequentially, merges their records without duplicate ids and
// backfills with synthetic records when the merged list stays below the low watermark.
type Waterfall struct {
	lowWatermark int
	fillTarget   int
	logger       *logger.Logger
	observer     Observer
}

func NewWaterfall(lowWatermark, fillTarget int, log *logger.Logger, observer Observer) (*Waterfall, error) {
	if lowWatermark <= 0 || fillTarget < lowWatermark {
		return nil, fmt.Errorf("waterfall: low watermark %d and fill target %d: %w", lowWatermark, fillTarget, ErrInvalidTiers)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Waterfall{lowWatermark: lowWatermark, fillTarget: fillTarget, logger: log, observer: observerOrNoop(observer)}, nil
}

func (w *Waterfall) LowWatermark() int {
	return w.lowWatermark
}

func (w *Waterfall) FillTarget() int {
	return w.fillTarget
}

// ValidateTiers checks that thresholds are positive and non-decreasing
func ValidateTiers(tiers []Tier) error {
	previous := 0
	for _, tier := range tiers {
		if tier.Threshold <= 0 || tier.Threshold < previous || tier.Fetch == nil {
			return fmt.Errorf("tier %q: %w", tier.Name, ErrInvalidTiers)
		}
		previous = tier.Threshold
	}
	return nil
}

// Run never fails for provider reasons; the only error is a misconfigured tier list.
// A zero Threshold defaults to the low watermark.
func (w *Waterfall) Run(ctx context.Context, kind models.ListingKind, tiers []Tier, backfill BackfillFunc) ([]models.ListingRecord, error) {
	resolved := make([]Tier, len(tiers))
	for i, tier := range tiers {
		if tier.Threshold == 0 {
			tier.Threshold = w.lowWatermark
		}
		resolved[i] = tier
	}
	if err := ValidateTiers(resolved); err != nil {
		return nil, err
	}

	merged := newOrderedSet()
	for _, tier := range resolved {
		if merged.Len() >= tier.Threshold {
			w.logger.WithFields(logrus.Fields{"kind": kind, "tier": tier.Name, "count": merged.Len()}).Debug("Skipping tier, enough results")
			continue
		}

		result := w.runTier(ctx, tier)
		w.observer.TierOutcome(string(kind), tier.Name, result.Status.String())

		entry := w.logger.WithFields(logrus.Fields{"kind": kind, "tier": tier.Name, "status": result.Status.String()})
		switch result.Status {
		case TierFailed:
			entry.WithFields(logrus.Fields{
				"error":      result.Err,
				"error_type": provider.Classify(result.Err).String(),
			}).Warn("Tier failed, falling through")
		case TierEmpty:
			entry.Info("Tier returned no records")
		default:
			added := merged.AddAll(result.Records)
			entry.WithField("added", added).Debug("Tier returned records")
		}
	}

	if merged.Len() < w.lowWatermark && backfill != nil {
		added := 0
		for index := 1; merged.Len() < w.fillTarget; index++ {
			record, ok := backfill(index)
			if !ok {
				break
			}
			if merged.Add(record) {
				added++
			}
		}
		w.observer.Backfilled(string(kind), added)
		w.logger.WithFields(logrus.Fields{"kind": kind, "synthetic": added, "total": merged.Len()}).Warn("Backfilled with synthetic records")
	}

	return merged.Records(), nil
}

func (w *Waterfall) runTier(ctx context.Context, tier Tier) (result TierResult) {
	result.Tier = tier.Name
	defer func() {
		if recovered := recover(); recovered != nil {
			result = TierResult{Tier: tier.Name, Status: TierFailed, Err: fmt.Errorf("tier %s panicked: %v", tier.Name, recovered)}
		}
	}()

	records, err := tier.Fetch(ctx)
	switch {
	case err != nil:
		result.Status = TierFailed
		result.Err = err
	case len(records) == 0:
		result.Status = TierEmpty
	default:
		result.Status = TierSucceeded
		result.Records = records
	}
	return result
}

// orderedSet keeps insertion order; the first record for an id wins.
type orderedSet struct {
	seen    map[string]struct{}
	records []models.ListingRecord
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) Add(record models.ListingRecord) bool {
	if record.ID == "" {
		return false
	}
	if _, ok := s.seen[record.ID]; ok {
		return false
	}
	s.seen[record.ID] = struct{}{}
	s.records = append(s.records, record)
	return true
}

func (s *orderedSet) AddAll(records []models.ListingRecord) int {
	added := 0
	for _, record := range records {
		if s.Add(record) {
			added++
		}
	}
	return added
}

func (s *orderedSet) Len() int {
	return len(s.records)
}

func (s *orderedSet) Records() []models.ListingRecord {
	if s.records == nil {
		return []models.ListingRecord{}
	}
	return s.records
}
