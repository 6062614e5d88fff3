package engine

import "github.com/accesslens/sod-risk-engine/pkg/models"

// DetectConflicts scans the SoD rule table once, in declaration order, and
// returns every rule whose two permissions are both present in the input.
//
// Membership is tested against a set built from the input, so the result
// is independent of input ordering and duplicates, and each rule fires at
// most once per call. IDs unknown to the rule table simply never match.
// An empty input yields an empty (non-nil) result.
func (e *Engine) DetectConflicts(permissions []string) []models.ConflictResult {
	present := make(map[string]bool, len(permissions))
	for _, id := range permissions {
		present[id] = true
	}

	conflicts := []models.ConflictResult{}
	for _, rule := range e.rs.rules {
		if !present[rule.Permission1] || !present[rule.Permission2] {
			continue
		}
		penalty, err := PenaltyForSeverity(rule.Severity)
		if err != nil {
			// Rules are validated at construction; unreachable.
			continue
		}
		conflicts = append(conflicts, models.ConflictResult{
			RuleName:    rule.RuleName,
			Severity:    rule.Severity,
			Permission1: rule.Permission1,
			Permission2: rule.Permission2,
			Penalty:     penalty,
		})
	}
	return conflicts
}

// dedupe collapses repeated IDs while preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
