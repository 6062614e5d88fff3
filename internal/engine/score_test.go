package engine

import (
	"testing"

	"github.com/accesslens/sod-risk-engine/pkg/models"
)

func TestComputeRiskScore_EmptySet(t *testing.T) {
	e := testEngine(t)

	result := e.ComputeRiskScore([]string{}, nil)
	if result.Score != 0 {
		t.Errorf("expected score 0 for empty set, got %d", result.Score)
	}
	if result.Level != "low" {
		t.Errorf("expected level low, got %s", result.Level)
	}
	if result.Conflicts == nil || len(result.Conflicts) != 0 {
		t.Errorf("expected empty non-nil conflicts, got %v", result.Conflicts)
	}
}

func TestComputeRiskScore_Scenarios(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name        string
		permissions []string
		wantScore   int
		wantLevel   string
	}{
		// (30+60)/2 = 45 base, one high conflict +15 = 60
		{"Create PO Plus Release PO", []string{"ME21N", "ME29N"}, 60, "medium"},
		// (60+100)/2 = 80 base, one critical conflict +25 = 105, clamped
		{"Create Vendor Plus Execute Payment", []string{"FK01", "F110"}, 100, "high"},
		// Single low permission, no conflicts
		{"Single Low", []string{"FBL1N"}, 10, "low"},
		// A lone critical permission carries its full weight but no penalty
		{"Single Critical", []string{"F110"}, 100, "high"},
		// Unknown IDs are excluded from numerator and denominator
		{"Only Unknown IDs", []string{"UNKNOWN_PERM"}, 0, "low"},
		{"Known Plus Unknown", []string{"FBL1N", "UNKNOWN_PERM"}, 10, "low"},
		// (10+10+30+60)/4 = 27.5 base, one high conflict +15 = 42.5, ties round half up
		{"Half Up Rounding", []string{"FBL1N", "ME23N", "ME21N", "ME29N"}, 43, "medium"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflicts := e.DetectConflicts(tt.permissions)
			result := e.ComputeRiskScore(tt.permissions, conflicts)
			if result.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", result.Score, tt.wantScore)
			}
			if result.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", result.Level, tt.wantLevel)
			}
		})
	}
}

func TestComputeRiskScore_UpperClamp(t *testing.T) {
	e := testEngine(t)

	// Three critical permissions plus two critical conflicts:
	// base (100+100+100+60)/4 = 90, penalties +25+25 = 140 before clamping.
	perms := []string{"F110", "SU01", "PFCG", "XK02"}
	conflicts := e.DetectConflicts(perms)
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d", len(conflicts))
	}

	result := e.ComputeRiskScore(perms, conflicts)
	if result.Score != 100 {
		t.Errorf("expected clamped score 100, got %d", result.Score)
	}
	if result.Level != "high" {
		t.Errorf("expected level high, got %s", result.Level)
	}
}

func TestComputeRiskScore_Determinism(t *testing.T) {
	e := testEngine(t)
	perms := []string{"FK01", "F110", "ME21N"}

	first := e.ComputeRiskScore(perms, e.DetectConflicts(perms))
	for i := 0; i < 50; i++ {
		got := e.ComputeRiskScore(perms, e.DetectConflicts(perms))
		if got.Score != first.Score || got.Level != first.Level {
			t.Fatalf("iteration %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestLevelForScore_Bands(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "low"},
		{39, "low"},
		{40, "medium"},
		{69, "medium"},
		{70, "high"},
		{100, "high"},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRecommendAction(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "auto_approve"},
		{39, "auto_approve"},
		{40, "review"},
		{69, "review"},
		{70, "escalate"},
		{100, "escalate"},
	}

	for _, tt := range tests {
		if got := RecommendAction(tt.score); got != tt.want {
			t.Errorf("RecommendAction(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestPenaltyForSeverity(t *testing.T) {
	if p, err := PenaltyForSeverity(models.SeverityCritical); err != nil || p != 25 {
		t.Errorf("critical penalty = %d (%v), want 25", p, err)
	}
	if p, err := PenaltyForSeverity(models.SeverityHigh); err != nil || p != 15 {
		t.Errorf("high penalty = %d (%v), want 15", p, err)
	}
	if _, err := PenaltyForSeverity(models.Severity("medium")); err == nil {
		t.Error("expected error for severity outside {high, critical}")
	}
}

func TestWeightForRiskLevel(t *testing.T) {
	tests := []struct {
		level models.RiskLevel
		want  int
	}{
		{models.RiskLow, 10},
		{models.RiskMedium, 30},
		{models.RiskHigh, 60},
		{models.RiskCritical, 100},
	}
	for _, tt := range tests {
		got, err := WeightForRiskLevel(tt.level)
		if err != nil || got != tt.want {
			t.Errorf("WeightForRiskLevel(%s) = %d (%v), want %d", tt.level, got, err, tt.want)
		}
	}
	if _, err := WeightForRiskLevel(models.RiskLevel("extreme")); err == nil {
		t.Error("expected error for unknown risk level")
	}
}
