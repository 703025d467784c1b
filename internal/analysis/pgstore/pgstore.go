// Package pgstore provides a PostgreSQL implementation of analysis.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/verdict/internal/analysis"
	"github.com/linnemanlabs/verdict/internal/attribution"
	"github.com/linnemanlabs/verdict/internal/narrative"
	"github.com/linnemanlabs/verdict/internal/policy"
)

var tracer = otel.Tracer("github.com/linnemanlabs/verdict/internal/analysis/pgstore")

//go:embed schema.sql
var schema string

// Store persists analyses in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const analysisColumns = `id, alert_id, verdict, confidence, probabilities, attribution,
	explanation, source, action, created_at, duration_s`

// Get retrieves an analysis by ID.
func (s *Store) Get(ctx context.Context, id string) (*analysis.Complete, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`
	r, err := scanAnalysisRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// GetByAlertID retrieves the most recent analysis for an alert.
func (s *Store) GetByAlertID(ctx context.Context, alertID string) (*analysis.Complete, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByAlertID", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE alert_id = $1 ORDER BY created_at DESC LIMIT 1`
	r, err := scanAnalysisRow(s.pool.QueryRow(ctx, query, alertID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Put upserts an analysis row.
func (s *Store) Put(ctx context.Context, r *analysis.Complete) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	probsJSON, err := json.Marshal(r.Probabilities)
	if err != nil {
		return fmt.Errorf("marshal probabilities: %w", err)
	}
	attrJSON, err := json.Marshal(r.Attribution)
	if err != nil {
		return fmt.Errorf("marshal attribution: %w", err)
	}

	query := `INSERT INTO analyses (
		id, alert_id, verdict, confidence, probabilities, attribution,
		explanation, source, action, created_at, duration_s
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	ON CONFLICT (id) DO UPDATE SET
		alert_id      = EXCLUDED.alert_id,
		verdict       = EXCLUDED.verdict,
		confidence    = EXCLUDED.confidence,
		probabilities = EXCLUDED.probabilities,
		attribution   = EXCLUDED.attribution,
		explanation   = EXCLUDED.explanation,
		source        = EXCLUDED.source,
		action        = EXCLUDED.action,
		duration_s    = EXCLUDED.duration_s`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.AlertID, r.Verdict, r.Confidence, probsJSON, attrJSON,
		r.Explanation, string(r.Source), string(r.Action), r.CreatedAt, r.Duration,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

// scanAnalysisRow scans a single row into an analysis.Complete.
// Returns (nil, nil) when no row is found.
func scanAnalysisRow(row pgx.Row) (*analysis.Complete, error) {
	var (
		r         analysis.Complete
		source    string
		action    string
		probsJSON []byte
		attrJSON  []byte
	)

	err := row.Scan(
		&r.ID, &r.AlertID, &r.Verdict, &r.Confidence, &probsJSON, &attrJSON,
		&r.Explanation, &source, &action, &r.CreatedAt, &r.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Source = narrative.Source(source)
	r.Action = policy.Action(action)

	if err := json.Unmarshal(probsJSON, &r.Probabilities); err != nil {
		return nil, fmt.Errorf("unmarshal probabilities: %w", err)
	}
	if len(attrJSON) > 0 && string(attrJSON) != "null" {
		var attr attribution.Attribution
		if err := json.Unmarshal(attrJSON, &attr); err != nil {
			return nil, fmt.Errorf("unmarshal attribution: %w", err)
		}
		r.Attribution = &attr
	}

	return &r, nil
}
