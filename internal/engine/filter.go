package engine

import (
	"strings"

	"github.com/accesslens/sod-risk-engine/pkg/models"
)

// Catalog filtering for request wizards.
//
// The console narrows the permission picker by request context: emergency
// (firefighter) requests only ever grant elevated access, and free-text
// searches match a fixed keyword table. With no usable context the full
// catalog comes back unfiltered.

// contextFillerCap bounds how many unmatched permissions are appended to a
// keyword result as surrounding context. Fixed cap, not proportional.
const contextFillerCap = 3

// AvailablePermissions filters the catalog by request type and keywords.
//
//   - requestType "emergency": only high/critical permissions.
//   - keywords: union of keyword-table matches, in catalog order, plus up
//     to contextFillerCap unmatched entries when anything matched.
//   - otherwise: the full catalog.
func (e *Engine) AvailablePermissions(requestType string, keywords []string) []models.Permission {
	if strings.EqualFold(requestType, "emergency") {
		out := []models.Permission{}
		for _, p := range e.rs.catalog {
			if p.RiskLevel == models.RiskHigh || p.RiskLevel == models.RiskCritical {
				out = append(out, p)
			}
		}
		return out
	}

	matched := e.matchKeywords(keywords)
	if len(matched) == 0 {
		return e.rs.Catalog()
	}

	out := []models.Permission{}
	for _, p := range e.rs.catalog {
		if matched[p.ID] {
			out = append(out, p)
		}
	}

	filler := 0
	for _, p := range e.rs.catalog {
		if filler >= contextFillerCap {
			break
		}
		if !matched[p.ID] {
			out = append(out, p)
			filler++
		}
	}
	return out
}

// matchKeywords unions the keyword table entries hit by any of the given
// terms. Matching is case-insensitive on the keyword, not the catalog.
func (e *Engine) matchKeywords(keywords []string) map[string]bool {
	matched := map[string]bool{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		for _, id := range e.rs.keywords[kw] {
			matched[id] = true
		}
	}
	return matched
}
