package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/accesslens/sod-risk-engine/internal/db"
	"github.com/accesslens/sod-risk-engine/internal/engine"
	"github.com/accesslens/sod-risk-engine/internal/rescan"
	"github.com/accesslens/sod-risk-engine/pkg/models"
)

type APIHandler struct {
	eng          *engine.Engine
	dbStore      *db.PostgresStore
	wsHub        *Hub
	rescanWorker *rescan.Worker
}

func SetupRouter(eng *engine.Engine, dbStore *db.PostgresStore, wsHub *Hub, rescanWorker *rescan.Worker) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://console.example.com
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			// Check if the request origin is in the allowed list
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	limiter := NewRateLimiter(120, 30)
	handler := &APIHandler{eng: eng, dbStore: dbStore, wsHub: wsHub, rescanWorker: rescanWorker}

	api := r.Group("/api/v1")
	api.Use(limiter.Middleware())
	{
		api.POST("/risk/evaluate", handler.handleEvaluateRisk)
		api.GET("/permissions", handler.handleGetPermissions)
		api.GET("/rules", handler.handleGetRules)
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)

		protected := api.Group("")
		protected.Use(AuthMiddleware())
		{
			protected.POST("/requests", handler.handleCreateRequest)
			protected.GET("/requests", handler.handleListRequests)
			protected.GET("/requests/:id", handler.handleGetRequest)
			protected.PUT("/requests/:id/status", handler.handleUpdateRequestStatus)

			// Background re-evaluation after rule-set changes
			protected.POST("/rescan", handler.handleStartRescan)
			protected.GET("/rescan/progress", handler.handleRescanProgress)
		}
	}

	return r
}

// handleEvaluateRisk runs the engine on an ad hoc permission set.
// POST /api/v1/risk/evaluate { "permissions": ["ME21N","ME29N"], "requestType": "standard" }
func (h *APIHandler) handleEvaluateRisk(c *gin.Context) {
	var req struct {
		Permissions []string `json:"permissions" binding:"required"`
		RequestType string   `json:"requestType"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {permissions: [..], requestType?}"})
		return
	}

	assessment := h.eng.Evaluate(req.Permissions, req.RequestType)

	// Persist an audit row if the database is connected
	if h.dbStore != nil {
		if err := h.dbStore.SaveAssessment(c.Request.Context(), assessment, ""); err != nil {
			log.Printf("Failed to save assessment to DB: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"risk_score":        assessment.Score,
		"risk_level":        assessment.Level,
		"sod_conflicts":     assessment.Conflicts,
		"ml_confidence":     assessment.Confidence,
		"recommendedAction": assessment.RecommendedAction,
	})
}

// handleGetPermissions filters the catalog by request type or keywords.
// GET /api/v1/permissions?requestType=emergency&q=vendor,payment
func (h *APIHandler) handleGetPermissions(c *gin.Context) {
	requestType := c.Query("requestType")

	var keywords []string
	if q := c.Query("q"); q != "" {
		keywords = strings.Split(q, ",")
	}

	perms := h.eng.AvailablePermissions(requestType, keywords)
	c.JSON(http.StatusOK, gin.H{
		"permissions": perms,
		"total":       len(perms),
	})
}

// handleGetRules returns the active SoD rule table (read-only).
func (h *APIHandler) handleGetRules(c *gin.Context) {
	rules := h.eng.RuleSet().Rules()
	c.JSON(http.StatusOK, gin.H{
		"rules": rules,
		"total": len(rules),
	})
}

// handleHealth returns engine status and capabilities for service discovery
func (h *APIHandler) handleHealth(c *gin.Context) {
	rs := h.eng.RuleSet()
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      "AccessLens SoD Risk Engine v1.0",
		"permissions": len(rs.Catalog()),
		"sodRules":    len(rs.Rules()),
		"dbConnected": h.dbStore != nil,
		"capabilities": gin.H{
			"sod_detection":     true,
			"risk_scoring":      true,
			"catalog_filtering": true,
			"rescan_worker":     h.rescanWorker != nil,
			"alert_stream":      h.wsHub != nil,
		},
	})
}

// handleStartRescan launches a background re-evaluation of stored requests.
func (h *APIHandler) handleStartRescan(c *gin.Context) {
	if h.rescanWorker == nil || h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Rescan requires a connected database"})
		return
	}

	if !h.rescanWorker.Start(context.Background()) {
		c.JSON(http.StatusConflict, gin.H{"error": "Rescan already in progress"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "rescan_started"})
}

// handleRescanProgress returns the current progress of the rescan worker.
func (h *APIHandler) handleRescanProgress(c *gin.Context) {
	if h.rescanWorker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Rescan worker not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.rescanWorker.GetProgress())
}

// BroadcastRiskAlert sends a high-risk notification via the WebSocket hub.
// This is wired as the alertFunc callback for the rescan worker and the
// request submission path.
func BroadcastRiskAlert(wsHub *Hub) func(models.RiskAlert) {
	return func(alert models.RiskAlert) {
		payload := gin.H{
			"type":  "risk_alert",
			"alert": alert,
		}
		alertBytes, _ := json.Marshal(payload)
		wsHub.Broadcast(alertBytes)
		log.Printf("[ALERT] High-risk access detected: request %s scored %d (%d conflicts)",
			alert.RequestID, alert.Score, alert.ConflictCount)
	}
}
