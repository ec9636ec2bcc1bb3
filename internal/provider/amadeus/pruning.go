package amadeus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalfonso89/travel-assistant-api/internal/provider"
)

const (
	invalidPropertyCode   = "1257"
	invalidPropertyDetail = "INVALID PROPERTY CODE"
	hotelIDsParameter     = "hotelIds="

	DefaultBatchSize   = 5
	DefaultMaxAttempts = 3
)

var (
	// ErrCandidatesExhausted means every candidate identifier was pruned before a batch succeeded.
	ErrCandidatesExhausted = errors.New("no valid identifiers left after pruning")
	// ErrAttemptsExhausted means the attempt budget ran out while identifiers were still being pruned.
	ErrAttemptsExhausted = errors.New("identifier pruning attempts exhausted")
)

// InvalidIdentifiersError is returned by a batch call when the upstream rejected specific identifiers.
type InvalidIdentifiersError struct {
	IDs []string
}

func (e *InvalidIdentifiersError) Error() string {
	return fmt.Sprintf("upstream rejected identifiers: %s", strings.Join(e.IDs, ","))
}

func (e *InvalidIdentifiersError) ErrorType() provider.ErrorType {
	return provider.ErrorTypeInvalidIdentifier
}

// BatchFunc performs one upstream call for a batch of identifiers.
type BatchFunc[T any] func(ctx context.Context, batch []string) (T, error)

// PruningOptions bounds the retry loop. OnRetry, when set, observes each pruning step.
type PruningOptions struct {
	BatchSize   int
	MaxAttempts int
	OnRetry     func(attempt int, removed []string, remaining int)
}

// FetchWithPruning sends the leading batch of candidates and, when the upstream
// names invalid identifiers, removes them case-insensitively and retries with the
// reduced set. Every other error is returned as is after the first attempt.
func FetchWithPruning[T any](ctx context.Context, candidates []string, options PruningOptions, fetch BatchFunc[T]) (T, error) {
	var zero T

	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	maxAttempts := options.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	remaining := append([]string(nil), candidates...)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts && len(remaining) > 0; attempt++ {
		batch := append([]string(nil), remaining[:min(len(remaining), batchSize)]...)

		result, err := fetch(ctx, batch)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var invalid *InvalidIdentifiersError
		if !errors.As(err, &invalid) || len(invalid.IDs) == 0 {
			return zero, err
		}

		var removed []string
		remaining, removed = prune(remaining, invalid.IDs)
		if len(removed) == 0 {
			// the upstream named identifiers we never sent; retrying would repeat the same batch
			return zero, err
		}
		if options.OnRetry != nil {
			options.OnRetry(attempt, removed, len(remaining))
		}
	}

	if len(remaining) == 0 {
		return zero, fmt.Errorf("%w: %v", ErrCandidatesExhausted, lastErr)
	}
	return zero, fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, maxAttempts, lastErr)
}

func prune(candidates, invalid []string) (kept, removed []string) {
	for _, candidate := range candidates {
		drop := false
		for _, bad := range invalid {
			if strings.EqualFold(candidate, strings.TrimSpace(bad)) {
				drop = true
				break
			}
		}
		if drop {
			removed = append(removed, candidate)
		} else {
			kept = append(kept, candidate)
		}
	}
	return kept, removed
}

// invalidIdentifiers extracts rejected hotel ids from an error payload.
// Only errors carrying the invalid-property code or detail are considered.
func invalidIdentifiers(errs []apiError) []string {
	var ids []string
	for _, apiErr := range errs {
		if !isInvalidProperty(apiErr) {
			continue
		}
		parameter := strings.TrimSpace(apiErr.Source.Parameter)
		if !strings.HasPrefix(parameter, hotelIDsParameter) {
			continue
		}
		for _, id := range strings.Split(strings.TrimPrefix(parameter, hotelIDsParameter), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func isInvalidProperty(apiErr apiError) bool {
	return apiErr.Code.String() == invalidPropertyCode ||
		strings.Contains(strings.ToUpper(apiErr.Detail), invalidPropertyDetail) ||
		strings.Contains(strings.ToUpper(apiErr.Title), invalidPropertyDetail)
}
