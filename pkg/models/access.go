package models

import "time"

// RiskLevel is the intrinsic sensitivity of a single permission.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Severity classifies a segregation-of-duties rule. SoD rules only exist
// at high or critical severity; a "low severity SoD conflict" is not a thing.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Permission is a single grantable capability, identified by a stable ID
// (for SAP-style landscapes this is the transaction code, e.g. "F110").
type Permission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RiskLevel RiskLevel `json:"riskLevel"`
}

// SoDRule declares that two permissions must never co-occur in one
// permission set. The pair is unordered: {A,B} and {B,A} are the same rule.
type SoDRule struct {
	Permission1 string   `json:"permission1"`
	Permission2 string   `json:"permission2"`
	RuleName    string   `json:"ruleName"`
	Severity    Severity `json:"severity"`
}

// ConflictResult is one SoD rule firing against an evaluated permission set.
type ConflictResult struct {
	RuleName    string   `json:"rule_name"`
	Severity    Severity `json:"severity"`
	Permission1 string   `json:"permission1"`
	Permission2 string   `json:"permission2"`
	Penalty     int      `json:"penalty"` // severity-derived score points
}

// RiskScoreResult is the engine output for one evaluation.
type RiskScoreResult struct {
	Score     int              `json:"risk_score"` // 0-100, clamped
	Level     string           `json:"risk_level"` // low / medium / high
	Conflicts []ConflictResult `json:"sod_conflicts"`
}

// Assessment wraps a RiskScoreResult with service-level metadata for
// persistence and alerting.
type Assessment struct {
	ID                string           `json:"id"`
	Permissions       []string         `json:"permissions"`
	RequestType       string           `json:"requestType,omitempty"`
	Score             int              `json:"risk_score"`
	Level             string           `json:"risk_level"`
	Conflicts         []ConflictResult `json:"sod_conflicts"`
	Confidence        float64          `json:"ml_confidence"` // catalog coverage, 0.0-1.0
	RecommendedAction string           `json:"recommendedAction"`
	EvaluatedAt       time.Time        `json:"evaluatedAt"`
}

// AccessRequest is a submitted workflow item: a requester asking for a
// permission set, plus the assessment computed at submission time.
type AccessRequest struct {
	ID            string    `json:"id"`
	Requester     string    `json:"requester"`
	RequestType   string    `json:"requestType,omitempty"`
	Justification string    `json:"justification,omitempty"`
	Permissions   []string  `json:"permissions"`
	Score         int       `json:"risk_score"`
	Level         string    `json:"risk_level"`
	ConflictCount int       `json:"conflictCount"`
	Status        string    `json:"status"` // pending / approved / rejected
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RiskAlert is the payload broadcast on the websocket stream when an
// evaluation lands in the high band.
type RiskAlert struct {
	RequestID     string   `json:"requestId"`
	Requester     string   `json:"requester,omitempty"`
	Score         int      `json:"risk_score"`
	Level         string   `json:"risk_level"`
	ConflictCount int      `json:"conflictCount"`
	RuleNames     []string `json:"ruleNames"`
	Timestamp     string   `json:"timestamp"`
}
