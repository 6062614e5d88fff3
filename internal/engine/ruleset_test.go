package engine

import (
	"testing"

	"github.com/accesslens/sod-risk-engine/pkg/models"
)

func miniCatalog() []models.Permission {
	return []models.Permission{
		{ID: "A", Name: "Alpha", RiskLevel: models.RiskLow},
		{ID: "B", Name: "Beta", RiskLevel: models.RiskHigh},
		{ID: "C", Name: "Gamma", RiskLevel: models.RiskCritical},
	}
}

func TestNewRuleSet_Validation(t *testing.T) {
	tests := []struct {
		name    string
		catalog []models.Permission
		rules   []models.SoDRule
		wantErr bool
	}{
		{
			"Valid",
			miniCatalog(),
			[]models.SoDRule{{Permission1: "A", Permission2: "B", RuleName: "r", Severity: models.SeverityHigh}},
			false,
		},
		{
			"Unknown Risk Level",
			[]models.Permission{{ID: "X", Name: "x", RiskLevel: "extreme"}},
			nil,
			true,
		},
		{
			"Duplicate Catalog ID",
			append(miniCatalog(), models.Permission{ID: "A", Name: "again", RiskLevel: models.RiskLow}),
			nil,
			true,
		},
		{
			"Self Pair",
			miniCatalog(),
			[]models.SoDRule{{Permission1: "A", Permission2: "A", RuleName: "r", Severity: models.SeverityHigh}},
			true,
		},
		{
			"Rule References Unknown Permission",
			miniCatalog(),
			[]models.SoDRule{{Permission1: "A", Permission2: "Z", RuleName: "r", Severity: models.SeverityHigh}},
			true,
		},
		{
			"Severity Outside High Critical",
			miniCatalog(),
			[]models.SoDRule{{Permission1: "A", Permission2: "B", RuleName: "r", Severity: "medium"}},
			true,
		},
		{
			"Duplicate Unordered Pair",
			miniCatalog(),
			[]models.SoDRule{
				{Permission1: "A", Permission2: "B", RuleName: "r1", Severity: models.SeverityHigh},
				{Permission1: "B", Permission2: "A", RuleName: "r2", Severity: models.SeverityCritical},
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet(tt.catalog, tt.rules, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRuleSet() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRuleSet_KeywordValidation(t *testing.T) {
	_, err := NewRuleSet(miniCatalog(), nil, map[string][]string{"alpha": {"A", "MISSING"}})
	if err == nil {
		t.Error("expected error for keyword referencing unknown permission")
	}
}

func TestMergeCustomRules(t *testing.T) {
	rs, err := NewRuleSet(miniCatalog(), []models.SoDRule{
		{Permission1: "A", Permission2: "B", RuleName: "configured", Severity: models.SeverityHigh},
	}, nil)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	merged := rs.MergeCustomRules([]models.SoDRule{
		{Permission1: "B", Permission2: "A", RuleName: "dup of configured", Severity: models.SeverityCritical},
		{Permission1: "B", Permission2: "C", RuleName: "custom", Severity: models.SeverityCritical},
		{Permission1: "C", Permission2: "C", RuleName: "self pair", Severity: models.SeverityHigh},
		{Permission1: "A", Permission2: "C", RuleName: "bad severity", Severity: "low"},
	})

	rules := merged.Rules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules after merge, got %d", len(rules))
	}
	if rules[0].RuleName != "configured" {
		t.Errorf("configured rules must keep scan-order priority, got %q first", rules[0].RuleName)
	}
	if rules[1].RuleName != "custom" {
		t.Errorf("expected custom rule appended, got %q", rules[1].RuleName)
	}

	// The original rule-set must be untouched.
	if len(rs.Rules()) != 1 {
		t.Errorf("MergeCustomRules mutated the source rule-set: %d rules", len(rs.Rules()))
	}
}

func TestDefaultRuleSet_Loads(t *testing.T) {
	rs := DefaultRuleSet()
	if len(rs.Catalog()) == 0 {
		t.Fatal("embedded catalog is empty")
	}
	if len(rs.Rules()) == 0 {
		t.Fatal("embedded rule table is empty")
	}
	// The two rules named by external docs/vectors must exist.
	for _, want := range []string{"Create Vendor / Execute Payment", "Create PO / Release PO"} {
		found := false
		for _, r := range rs.Rules() {
			if r.RuleName == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("embedded rule table is missing %q", want)
		}
	}
}
