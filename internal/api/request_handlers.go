package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/accesslens/sod-risk-engine/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Access Request Workflow Handlers
// ════════════════════════════════════════════════════════════════════

// POST /api/v1/requests
// Submits an access request, evaluates it synchronously and persists it.
func (h *APIHandler) handleCreateRequest(c *gin.Context) {
	var req struct {
		Requester     string   `json:"requester" binding:"required"`
		Permissions   []string `json:"permissions" binding:"required"`
		RequestType   string   `json:"requestType"`
		Justification string   `json:"justification"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if len(req.Permissions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one permission is required"})
		return
	}

	assessment := h.eng.Evaluate(req.Permissions, req.RequestType)

	now := time.Now().UTC()
	stored := models.AccessRequest{
		ID:            uuid.NewString(),
		Requester:     req.Requester,
		RequestType:   req.RequestType,
		Justification: req.Justification,
		Permissions:   assessment.Permissions,
		Score:         assessment.Score,
		Level:         assessment.Level,
		ConflictCount: len(assessment.Conflicts),
		Status:        "pending",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if h.dbStore != nil {
		ctx := c.Request.Context()
		if err := h.dbStore.SaveAccessRequest(ctx, stored); err != nil {
			log.Printf("Failed to save access request to DB: %v", err)
		} else if err := h.dbStore.SaveAssessment(ctx, assessment, stored.ID); err != nil {
			log.Printf("Failed to save assessment for request %s: %v", stored.ID, err)
		}
	}

	// High-band submissions go straight to the alert stream.
	if assessment.Level == "high" && h.wsHub != nil {
		ruleNames := make([]string, 0, len(assessment.Conflicts))
		for _, conflict := range assessment.Conflicts {
			ruleNames = append(ruleNames, conflict.RuleName)
		}
		BroadcastRiskAlert(h.wsHub)(models.RiskAlert{
			RequestID:     stored.ID,
			Requester:     stored.Requester,
			Score:         stored.Score,
			Level:         stored.Level,
			ConflictCount: stored.ConflictCount,
			RuleNames:     ruleNames,
			Timestamp:     now.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":     "created",
		"request":    stored,
		"assessment": assessment,
	})
}

// GET /api/v1/requests?page=1&limit=50
func (h *APIHandler) handleListRequests(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	// Parse pagination parameters
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	requests, totalCount, err := h.dbStore.GetAccessRequests(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch access requests", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       requests,
		"totalCount": totalCount,
		"page":       page,
		"limit":      limit,
	})
}

// GET /api/v1/requests/:id
func (h *APIHandler) handleGetRequest(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	req, err := h.dbStore.GetAccessRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch access request", "details": err.Error()})
		return
	}
	if req == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Access request not found"})
		return
	}

	c.JSON(http.StatusOK, req)
}

// PUT /api/v1/requests/:id/status { "status": "approved" }
func (h *APIHandler) handleUpdateRequestStatus(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	switch req.Status {
	case "pending", "approved", "rejected":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be pending, approved or rejected"})
		return
	}

	id := c.Param("id")
	if err := h.dbStore.UpdateRequestStatus(c.Request.Context(), id, req.Status); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "updated",
		"id":      id,
		"request": gin.H{"status": req.Status},
	})
}
