package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/accesslens/sod-risk-engine/internal/engine"
	"github.com/accesslens/sod-risk-engine/internal/rescan"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	eng := engine.NewEngine(engine.DefaultRuleSet())
	hub := NewHub()
	worker := rescan.NewWorker(eng, nil, nil)
	return SetupRouter(eng, nil, hub, worker)
}

func TestEvaluateRisk_WireContract(t *testing.T) {
	r := testRouter()

	body := `{"permissions": ["ME21N", "ME29N"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/evaluate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		RiskScore    int     `json:"risk_score"`
		RiskLevel    string  `json:"risk_level"`
		MLConfidence float64 `json:"ml_confidence"`
		SodConflicts []struct {
			RuleName    string `json:"rule_name"`
			Severity    string `json:"severity"`
			Permission1 string `json:"permission1"`
			Permission2 string `json:"permission2"`
		} `json:"sod_conflicts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}

	if resp.RiskScore != 60 || resp.RiskLevel != "medium" {
		t.Errorf("score/level = %d/%s, want 60/medium", resp.RiskScore, resp.RiskLevel)
	}
	if len(resp.SodConflicts) != 1 || resp.SodConflicts[0].RuleName != "Create PO / Release PO" {
		t.Errorf("unexpected conflicts: %+v", resp.SodConflicts)
	}
	if resp.MLConfidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", resp.MLConfidence)
	}
}

func TestEvaluateRisk_RejectsMalformedBody(t *testing.T) {
	r := testRouter()

	tests := []struct {
		name string
		body string
	}{
		{"Missing Permissions Field", `{"requestType": "standard"}`},
		{"Non List Permissions", `{"permissions": "ME21N"}`},
		{"Not JSON", `permissions=ME21N`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/evaluate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestGetPermissions_EmergencyContext(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/permissions?requestType=emergency", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Permissions []struct {
			ID        string `json:"id"`
			RiskLevel string `json:"riskLevel"`
		} `json:"permissions"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Total == 0 {
		t.Fatal("emergency context returned no permissions")
	}
	for _, p := range resp.Permissions {
		if p.RiskLevel != "high" && p.RiskLevel != "critical" {
			t.Errorf("emergency context leaked %s (%s)", p.ID, p.RiskLevel)
		}
	}
}

func TestHealth(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["status"] != "operational" {
		t.Errorf("status = %v, want operational", resp["status"])
	}
	if resp["dbConnected"] != false {
		t.Errorf("dbConnected = %v, want false without a store", resp["dbConnected"])
	}
}

func TestListRequests_WithoutDatabase(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a database, got %d", w.Code)
	}
}
