package engine

import (
	"fmt"
	"math"

	"github.com/accesslens/sod-risk-engine/pkg/models"
)

// Composite Risk Scorer
//
// Base score is the mean intrinsic weight of the cataloged permissions in
// the evaluated set. Each fired SoD conflict then adds a severity-weighted
// penalty on top. The final score is rounded (ties half up) and clamped
// to [0,100].
//
// Score bands:
//   low    (0-39):   routine access, auto-approvable
//   medium (40-69):  needs a reviewer
//   high   (70-100): route to risk owner, broadcast an alert
//
// There is deliberately no "critical" band at the score level: a single
// critical permission contributes its weight but does not force the high
// band on its own.

// Intrinsic risk weights per permission risk level.
const (
	weightLow      = 10
	weightMedium   = 30
	weightHigh     = 60
	weightCritical = 100
)

// Conflict penalties per rule severity. This is the canonical formula:
// severity-weighted, 25 points for critical rules and 15 for high.
const (
	penaltyHigh     = 15
	penaltyCritical = 25
)

// Band thresholds.
const (
	bandMedium = 40
	bandHigh   = 70
)

// WeightForRiskLevel maps a permission risk level to its score weight.
func WeightForRiskLevel(level models.RiskLevel) (int, error) {
	switch level {
	case models.RiskLow:
		return weightLow, nil
	case models.RiskMedium:
		return weightMedium, nil
	case models.RiskHigh:
		return weightHigh, nil
	case models.RiskCritical:
		return weightCritical, nil
	default:
		return 0, fmt.Errorf("unknown risk level %q", level)
	}
}

// PenaltyForSeverity maps a rule severity to its conflict penalty.
func PenaltyForSeverity(sev models.Severity) (int, error) {
	switch sev {
	case models.SeverityHigh:
		return penaltyHigh, nil
	case models.SeverityCritical:
		return penaltyCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", sev)
	}
}

// ComputeRiskScore produces the composite score for a permission set and
// the conflicts already detected against it.
//
// Unknown permission IDs contribute nothing: they are excluded from both
// the weight sum and the averaging denominator. An empty (or entirely
// unknown) set has base 0.
func (e *Engine) ComputeRiskScore(permissions []string, conflicts []models.ConflictResult) models.RiskScoreResult {
	weightSum := 0
	known := 0
	for _, id := range dedupe(permissions) {
		p, ok := e.rs.Lookup(id)
		if !ok {
			continue
		}
		w, err := WeightForRiskLevel(p.RiskLevel)
		if err != nil {
			// Catalog entries are validated at construction; unreachable.
			continue
		}
		weightSum += w
		known++
	}

	base := 0.0
	if known > 0 {
		base = float64(weightSum) / float64(known)
	}

	penalty := 0
	for _, c := range conflicts {
		penalty += c.Penalty
	}

	// math.Round on a non-negative value rounds ties half up.
	score := int(math.Round(base + float64(penalty)))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	if conflicts == nil {
		conflicts = []models.ConflictResult{}
	}
	return models.RiskScoreResult{
		Score:     score,
		Level:     LevelForScore(score),
		Conflicts: conflicts,
	}
}

// LevelForScore maps a clamped score to its band.
func LevelForScore(score int) string {
	switch {
	case score < bandMedium:
		return "low"
	case score < bandHigh:
		return "medium"
	default:
		return "high"
	}
}

// RecommendAction maps a score to the workflow action the console surfaces.
func RecommendAction(score int) string {
	switch {
	case score < bandMedium:
		return "auto_approve"
	case score < bandHigh:
		return "review"
	default:
		return "escalate"
	}
}
