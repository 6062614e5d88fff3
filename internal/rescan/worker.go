package rescan

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/accesslens/sod-risk-engine/internal/db"
	"github.com/accesslens/sod-risk-engine/internal/engine"
	"github.com/accesslens/sod-risk-engine/pkg/models"
)

// Worker re-evaluates every stored access request against the current
// rule-set and rewrites rows whose score or level changed. This is what
// keeps historical requests honest after a rule-set or catalog update:
// a request approved under yesterday's rules may be a conflict today.
type Worker struct {
	eng       *engine.Engine
	dbStore   *db.PostgresStore
	alertFunc func(alert models.RiskAlert) // Optional broadcast callback

	// Progress tracking (atomic for safe concurrent reads)
	processed atomic.Int64
	updated   atomic.Int64
	newHighs  atomic.Int64
	isRunning atomic.Bool
	lastRun   atomic.Int64 // unix seconds of last completed run
}

// Progress is the worker's current state for the API.
type Progress struct {
	IsRunning     bool  `json:"isRunning"`
	Processed     int64 `json:"processed"`
	Updated       int64 `json:"updated"`
	NewHighRisk   int64 `json:"newHighRisk"`
	LastCompleted int64 `json:"lastCompleted,omitempty"` // unix seconds, 0 if never
}

const rescanPageSize = 200

func NewWorker(eng *engine.Engine, dbStore *db.PostgresStore, alertFunc func(models.RiskAlert)) *Worker {
	return &Worker{
		eng:       eng,
		dbStore:   dbStore,
		alertFunc: alertFunc,
	}
}

// GetProgress returns the current rescan progress (thread-safe).
func (w *Worker) GetProgress() Progress {
	return Progress{
		IsRunning:     w.isRunning.Load(),
		Processed:     w.processed.Load(),
		Updated:       w.updated.Load(),
		NewHighRisk:   w.newHighs.Load(),
		LastCompleted: w.lastRun.Load(),
	}
}

// Start launches a full rescan asynchronously. Returns false if a rescan
// is already in flight.
func (w *Worker) Start(ctx context.Context) bool {
	if w.dbStore == nil {
		log.Println("[Rescan] No database configured, nothing to rescan")
		return false
	}
	if !w.isRunning.CompareAndSwap(false, true) {
		log.Println("[Rescan] Rescan already in progress, ignoring duplicate request")
		return false
	}

	w.processed.Store(0)
	w.updated.Store(0)
	w.newHighs.Store(0)

	go func() {
		defer w.isRunning.Store(false)
		w.run(ctx)
	}()
	return true
}

func (w *Worker) run(ctx context.Context) {
	log.Println("[Rescan] Starting full re-evaluation of stored access requests")

	page := 1
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Rescan] Cancelled after %d requests", w.processed.Load())
			return
		default:
		}

		requests, total, err := w.dbStore.GetAccessRequests(ctx, page, rescanPageSize)
		if err != nil {
			log.Printf("[Rescan] Error fetching page %d: %v", page, err)
			return
		}
		if len(requests) == 0 {
			break
		}

		for _, req := range requests {
			w.rescanRequest(ctx, req)
		}

		if page*rescanPageSize >= total {
			break
		}
		page++
	}

	w.lastRun.Store(time.Now().Unix())
	log.Printf("[Rescan] Complete: %d requests re-evaluated, %d updated, %d newly high-risk",
		w.processed.Load(), w.updated.Load(), w.newHighs.Load())
}

func (w *Worker) rescanRequest(ctx context.Context, req models.AccessRequest) {
	a := w.eng.Evaluate(req.Permissions, req.RequestType)
	w.processed.Add(1)

	if a.Score == req.Score && a.Level == req.Level && len(a.Conflicts) == req.ConflictCount {
		return
	}

	if err := w.dbStore.UpdateRequestAssessment(ctx, req.ID, a.Score, a.Level, len(a.Conflicts)); err != nil {
		log.Printf("[Rescan] DB update error for request %s: %v", req.ID, err)
		return
	}
	w.updated.Add(1)

	// Alert only on transitions into the high band, not on requests that
	// were already known to be high risk.
	if a.Level == "high" && req.Level != "high" {
		w.newHighs.Add(1)
		if w.alertFunc != nil {
			ruleNames := make([]string, 0, len(a.Conflicts))
			for _, c := range a.Conflicts {
				ruleNames = append(ruleNames, c.RuleName)
			}
			w.alertFunc(models.RiskAlert{
				RequestID:     req.ID,
				Requester:     req.Requester,
				Score:         a.Score,
				Level:         a.Level,
				ConflictCount: len(a.Conflicts),
				RuleNames:     ruleNames,
				Timestamp:     time.Now().Format(time.RFC3339),
			})
		}
	}
}
