// Package search retrieves projects and case studies and merges weighted channel scores.
package search

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrInvalidWeights is returned when channel weights of one aggregation do not sum to 1.
var ErrInvalidWeights = errors.New("aggregation weights must sum to 1.0")

const weightTolerance = 1e-9

// Aggregate merges weighted result sets into one scored record per ID.
// Each result contributes weight*certainty (a missing certainty counts as 0);
// contributions for the same ID are summed and the first-seen record is kept.
// Results come back in first-seen order; callers sort as needed.
func Aggregate[T any](sets []models.WeightedSearchResult[T]) ([]models.ScoredRecord[T], error) {
	if len(sets) == 0 {
		return nil, nil
	}
	var total float64
	for _, s := range sets {
		total += s.Weight
	}
	if math.Abs(total-1.0) > weightTolerance {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidWeights, total)
	}

	var order []string
	records := make(map[string]T)
	contributions := make(map[string][]float64)
	for _, s := range sets {
		for _, r := range s.Results {
			if _, seen := records[r.ID]; !seen {
				order = append(order, r.ID)
				records[r.ID] = r.Record
			}
			contributions[r.ID] = append(contributions[r.ID], s.Weight*r.CertaintyOrZero())
		}
	}

	out := make([]models.ScoredRecord[T], 0, len(order))
	for _, id := range order {
		out = append(out, models.ScoredRecord[T]{ID: id, Record: records[id], Score: sum(contributions[id])})
	}
	return out, nil
}

// sum adds values in ascending order so the result does not depend on input order.
func sum(values []float64) float64 {
	sort.Float64s(values)
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// FilterByThreshold keeps records scoring strictly above threshold.
// A nil threshold returns records unchanged.
func FilterByThreshold[T any](records []models.ScoredRecord[T], threshold *float64) []models.ScoredRecord[T] {
	if threshold == nil {
		return records
	}
	filtered := make([]models.ScoredRecord[T], 0, len(records))
	for _, r := range records {
		if r.Score > *threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// SortByScore orders records by score descending, keeping input order for ties.
func SortByScore[T any](records []models.ScoredRecord[T]) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Score > records[j].Score })
}
