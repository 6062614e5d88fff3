package main

import (
	"context"
	"log"
	"os"

	"github.com/accesslens/sod-risk-engine/internal/api"
	"github.com/accesslens/sod-risk-engine/internal/db"
	"github.com/accesslens/sod-risk-engine/internal/engine"
	"github.com/accesslens/sod-risk-engine/internal/rescan"
)

func main() {
	log.Println("Starting AccessLens SoD Risk Engine (Microservice: grc-sod-risk-analytics)...")

	// ─── Rule-set configuration ─────────────────────────────────────────
	// The embedded defaults cover the standard SAP-style rule table; set
	// RULESET_PATH to a YAML file to replace catalog, rules and keywords.
	// ────────────────────────────────────────────────────────────────────

	ruleSet, err := engine.LoadRuleSet(os.Getenv("RULESET_PATH"))
	if err != nil {
		log.Fatalf("FATAL: Failed to load rule-set: %v", err)
	}

	dbUrl := requireEnv("DATABASE_URL")

	dbConn, err := db.Connect(dbUrl)
	if err != nil {
		log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting assessments. Error: %v", err)
	} else {
		defer dbConn.Close()
		if err := dbConn.InitSchema(); err != nil {
			log.Printf("Warning: DB schema init failed: %v", err)
		}

		// Merge tenant-defined rules after the configured table so the
		// configured rules keep scan-order priority.
		custom, err := dbConn.LoadCustomRules(context.Background())
		if err != nil {
			log.Printf("Warning: Failed to load custom SoD rules: %v", err)
		} else {
			ruleSet = ruleSet.MergeCustomRules(custom)
		}
	}

	eng := engine.NewEngine(ruleSet)

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Background re-evaluation worker with real-time alert broadcasting
	rescanWorker := rescan.NewWorker(eng, dbConn, api.BroadcastRiskAlert(wsHub))

	// Setup the Gin Router
	r := api.SetupRouter(eng, dbConn, wsHub, rescanWorker)

	port := getEnvOrDefault("PORT", "5460")

	// Start the server
	log.Printf("Engine running on :%s (API Node: grc-sod-risk-analytics)\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
