package engine

import (
	"time"

	"github.com/accesslens/sod-risk-engine/pkg/models"
	"github.com/google/uuid"
)

// Evaluate runs the full pipeline for one permission set: conflict
// detection, composite scoring, catalog-coverage confidence and the
// recommended workflow action. This is what every API caller and the
// rescan worker consume.
func (e *Engine) Evaluate(permissions []string, requestType string) models.Assessment {
	ids := dedupe(permissions)
	conflicts := e.DetectConflicts(ids)
	result := e.ComputeRiskScore(ids, conflicts)

	return models.Assessment{
		ID:                uuid.NewString(),
		Permissions:       ids,
		RequestType:       requestType,
		Score:             result.Score,
		Level:             result.Level,
		Conflicts:         result.Conflicts,
		Confidence:        e.coverage(ids),
		RecommendedAction: RecommendAction(result.Score),
		EvaluatedAt:       time.Now().UTC(),
	}
}

// coverage is the fraction of evaluated IDs present in the catalog.
// The empty set is trivially fully covered.
func (e *Engine) coverage(ids []string) float64 {
	if len(ids) == 0 {
		return 1.0
	}
	known := 0
	for _, id := range ids {
		if _, ok := e.rs.Lookup(id); ok {
			known++
		}
	}
	return float64(known) / float64(len(ids))
}
