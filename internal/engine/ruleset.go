package engine

import (
	"fmt"
	"log"

	"github.com/accesslens/sod-risk-engine/pkg/models"
)

// ──────────────────────────────────────────────────────────────────
// RuleSet — the injected engine configuration
//
// One immutable object holds the permission catalog, the SoD rule
// table and the keyword lookup table. It is built and validated once
// at startup and shared by every caller; nothing mutates it after
// construction, so concurrent evaluations need no locking.
// ──────────────────────────────────────────────────────────────────

// RuleSet is the static configuration the engine evaluates against.
type RuleSet struct {
	catalog  []models.Permission
	rules    []models.SoDRule
	keywords map[string][]string

	// byID gives O(1) catalog lookups during scoring.
	byID map[string]models.Permission
}

// NewRuleSet validates and freezes a rule-set. It rejects unknown risk
// levels and severities, rules that pair a permission with itself, rules
// referencing permissions absent from the catalog, and duplicate rules
// (compared as unordered pairs).
func NewRuleSet(catalog []models.Permission, rules []models.SoDRule, keywords map[string][]string) (*RuleSet, error) {
	byID := make(map[string]models.Permission, len(catalog))
	for _, p := range catalog {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %q has empty id", p.Name)
		}
		if _, err := WeightForRiskLevel(p.RiskLevel); err != nil {
			return nil, fmt.Errorf("catalog entry %s: %w", p.ID, err)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %s", p.ID)
		}
		byID[p.ID] = p
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Permission1 == "" || r.Permission2 == "" {
			return nil, fmt.Errorf("rule %q references an empty permission id", r.RuleName)
		}
		if r.Permission1 == r.Permission2 {
			return nil, fmt.Errorf("rule %q pairs %s with itself", r.RuleName, r.Permission1)
		}
		if _, err := PenaltyForSeverity(r.Severity); err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.RuleName, err)
		}
		if _, ok := byID[r.Permission1]; !ok {
			return nil, fmt.Errorf("rule %q references unknown permission %s", r.RuleName, r.Permission1)
		}
		if _, ok := byID[r.Permission2]; !ok {
			return nil, fmt.Errorf("rule %q references unknown permission %s", r.RuleName, r.Permission2)
		}
		key := pairKey(r.Permission1, r.Permission2)
		if seen[key] {
			return nil, fmt.Errorf("duplicate rule for pair %s", key)
		}
		seen[key] = true
	}

	for kw, ids := range keywords {
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				return nil, fmt.Errorf("keyword %q references unknown permission %s", kw, id)
			}
		}
	}

	rs := &RuleSet{
		catalog:  append([]models.Permission(nil), catalog...),
		rules:    append([]models.SoDRule(nil), rules...),
		keywords: keywords,
		byID:     byID,
	}
	log.Printf("[RuleSet] Loaded %d permissions, %d SoD rules, %d keyword entries",
		len(rs.catalog), len(rs.rules), len(rs.keywords))
	return rs, nil
}

// MergeCustomRules returns a new RuleSet with extra rules appended after
// the configured table, preserving scan order for the configured rules.
// Custom rules that duplicate an existing unordered pair or fail
// validation are skipped with a log line rather than aborting startup.
func (rs *RuleSet) MergeCustomRules(extra []models.SoDRule) *RuleSet {
	if len(extra) == 0 {
		return rs
	}
	merged := append([]models.SoDRule(nil), rs.rules...)
	seen := make(map[string]bool, len(merged))
	for _, r := range merged {
		seen[pairKey(r.Permission1, r.Permission2)] = true
	}

	added := 0
	for _, r := range extra {
		key := pairKey(r.Permission1, r.Permission2)
		if r.Permission1 == "" || r.Permission2 == "" || r.Permission1 == r.Permission2 || seen[key] {
			log.Printf("[RuleSet] Skipping invalid or duplicate custom rule %q", r.RuleName)
			continue
		}
		if _, err := PenaltyForSeverity(r.Severity); err != nil {
			log.Printf("[RuleSet] Skipping custom rule %q: %v", r.RuleName, err)
			continue
		}
		merged = append(merged, r)
		seen[key] = true
		added++
	}
	if added > 0 {
		log.Printf("[RuleSet] Merged %d custom SoD rules (total %d)", added, len(merged))
	}

	out := *rs
	out.rules = merged
	return &out
}

// Catalog returns the full permission catalog in declaration order.
func (rs *RuleSet) Catalog() []models.Permission {
	return append([]models.Permission(nil), rs.catalog...)
}

// Rules returns the SoD rule table in scan order.
func (rs *RuleSet) Rules() []models.SoDRule {
	return append([]models.SoDRule(nil), rs.rules...)
}

// Lookup returns the catalog entry for an ID, if present.
func (rs *RuleSet) Lookup(id string) (models.Permission, bool) {
	p, ok := rs.byID[id]
	return p, ok
}

// pairKey normalizes an unordered permission pair into a stable map key.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
