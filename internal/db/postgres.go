package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accesslens/sod-risk-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init works
// inside the runtime image without shipping the .sql file alongside it.
//
//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for SoD Risk Engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("SoD Risk Engine schema initialized")
	return nil
}

// SaveAssessment persists one evaluation audit row. requestID may be empty
// for ad hoc evaluations not attached to a stored access request.
func (s *PostgresStore) SaveAssessment(ctx context.Context, a models.Assessment, requestID string) error {
	sql := `
		INSERT INTO risk_assessments
			(id, request_id, permissions, request_type, risk_score, risk_level,
			 conflict_count, confidence, evaluated_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			risk_level = EXCLUDED.risk_level,
			conflict_count = EXCLUDED.conflict_count,
			confidence = EXCLUDED.confidence,
			evaluated_at = EXCLUDED.evaluated_at;
	`
	_, err := s.pool.Exec(ctx, sql, a.ID, requestID, a.Permissions, a.RequestType,
		a.Score, a.Level, len(a.Conflicts), a.Confidence, a.EvaluatedAt)
	return err
}

// SaveAccessRequest upserts a submitted access request with its assessment
// snapshot.
func (s *PostgresStore) SaveAccessRequest(ctx context.Context, req models.AccessRequest) error {
	sql := `
		INSERT INTO access_requests
			(id, requester, request_type, justification, permissions,
			 risk_score, risk_level, conflict_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			risk_level = EXCLUDED.risk_level,
			conflict_count = EXCLUDED.conflict_count,
			status = EXCLUDED.status,
			updated_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, req.ID, req.Requester, req.RequestType,
		req.Justification, req.Permissions, req.Score, req.Level,
		req.ConflictCount, req.Status, req.CreatedAt, req.UpdatedAt)
	return err
}

// UpdateRequestAssessment rewrites the stored score for a request. Used by
// the rescan worker after a rule-set change.
func (s *PostgresStore) UpdateRequestAssessment(ctx context.Context, id string, score int, level string, conflictCount int) error {
	sql := `
		UPDATE access_requests
		SET risk_score = $2, risk_level = $3, conflict_count = $4, updated_at = NOW()
		WHERE id = $1;
	`
	result, err := s.pool.Exec(ctx, sql, id, score, level, conflictCount)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("access request not found: %s", id)
	}
	return nil
}

// GetAccessRequests returns one page of stored requests, newest first.
func (s *PostgresStore) GetAccessRequests(ctx context.Context, page, limit int) ([]models.AccessRequest, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_requests`).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	sql := `
		SELECT id, requester, request_type, justification, permissions,
		       risk_score, risk_level, conflict_count, status, created_at, updated_at
		FROM access_requests
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2;
	`
	rows, err := s.pool.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests := []models.AccessRequest{}
	for rows.Next() {
		var r models.AccessRequest
		if err := rows.Scan(&r.ID, &r.Requester, &r.RequestType, &r.Justification,
			&r.Permissions, &r.Score, &r.Level, &r.ConflictCount, &r.Status,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		requests = append(requests, r)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return requests, totalCount, nil
}

// GetAccessRequest fetches a single request by ID. Returns (nil, nil) when
// the row does not exist.
func (s *PostgresStore) GetAccessRequest(ctx context.Context, id string) (*models.AccessRequest, error) {
	sql := `
		SELECT id, requester, request_type, justification, permissions,
		       risk_score, risk_level, conflict_count, status, created_at, updated_at
		FROM access_requests
		WHERE id = $1;
	`
	var r models.AccessRequest
	err := s.pool.QueryRow(ctx, sql, id).Scan(&r.ID, &r.Requester, &r.RequestType,
		&r.Justification, &r.Permissions, &r.Score, &r.Level, &r.ConflictCount,
		&r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// UpdateRequestStatus moves a request through the approval workflow.
func (s *PostgresStore) UpdateRequestStatus(ctx context.Context, id, status string) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE access_requests SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("access request not found: %s", id)
	}
	return nil
}

// LoadCustomRules loads active tenant-defined SoD rules for merging into
// the configured rule table at process boot.
func (s *PostgresStore) LoadCustomRules(ctx context.Context) ([]models.SoDRule, error) {
	sql := `
		SELECT permission1, permission2, rule_name, severity
		FROM custom_sod_rules
		WHERE active = TRUE
		ORDER BY id;
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.SoDRule, 0)
	for rows.Next() {
		var r models.SoDRule
		if err := rows.Scan(&r.Permission1, &r.Permission2, &r.RuleName, &r.Severity); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}
