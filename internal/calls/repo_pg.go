package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"callcenter-backend/internal/shared/telemetry"
)

// PGRepo is a Postgres-backed Repo.
type PGRepo struct {
	DB *sql.DB
}

const callColumns = `id, request_id, personnel_id, name, called_at, duration_seconds, audio_url, transcript,
  language, status, score, customer_satisfaction, ai_summary, ai_recommendations, call_analysis, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, c Call) (Call, error) {
	analysis, err := EncodeAnalysis(c.Analysis)
	if err != nil {
		return Call{}, fmt.Errorf("encode analysis: %w", err)
	}
	const query = `
INSERT INTO calls (id, request_id, personnel_id, name, called_at, duration_seconds, audio_url, transcript,
  language, status, score, customer_satisfaction, ai_summary, ai_recommendations, call_analysis, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
ON CONFLICT (request_id) WHERE request_id IS NOT NULL DO NOTHING
RETURNING created_at, updated_at`
	err = r.DB.QueryRowContext(ctx, query,
		c.ID,
		nullableString(c.RequestID),
		nullableString(c.PersonnelID),
		c.Name,
		c.CalledAt,
		c.DurationSeconds,
		nullableString(c.AudioURL),
		nullableString(c.Transcript),
		c.Language,
		string(c.Status),
		nullableFloat(c.Score),
		nullableString(c.CustomerSatisfaction),
		nullableString(c.Summary),
		nullableString(c.Recommendations),
		nullableBytes(analysis),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrDuplicateRequestID
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = $1 LIMIT 1`
	return scanCall(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) GetByRequestID(ctx context.Context, requestID string) (Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE request_id = $1 LIMIT 1`
	return scanCall(r.DB.QueryRowContext(ctx, query, requestID))
}

func (r *PGRepo) List(ctx context.Context, f ListFilter) ([]Call, error) {
	f = f.normalized()
	where, args := filterClause(f.PersonnelID, f.Status)
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM calls%s ORDER BY called_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		callColumns, where, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM calls WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Stats(ctx context.Context, personnelID string, since time.Time) (Stats, error) {
	where, args := filterClause(personnelID, "")
	args = append(args, since)
	query := fmt.Sprintf(`
SELECT count(*),
  count(*) FILTER (WHERE status = 'completed'),
  COALESCE(avg(COALESCE(score, 0)), 0)::float8,
  count(*) FILTER (WHERE called_at >= $%d)
FROM calls%s`, len(args), where)

	var st Stats
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(
		&st.TotalCalls,
		&st.CompletedCalls,
		&st.AvgScore,
		&st.TodayCalls,
	); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func filterClause(personnelID string, status Status) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if personnelID != "" {
		args = append(args, personnelID)
		conds = append(conds, fmt.Sprintf("personnel_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, string(status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c                    Call
		requestID            sql.NullString
		personnelID          sql.NullString
		audioURL             sql.NullString
		transcript           sql.NullString
		status               string
		score                sql.NullFloat64
		customerSatisfaction sql.NullString
		summary              sql.NullString
		recommendations      sql.NullString
		analysis             []byte
	)
	err := row.Scan(
		&c.ID,
		&requestID,
		&personnelID,
		&c.Name,
		&c.CalledAt,
		&c.DurationSeconds,
		&audioURL,
		&transcript,
		&c.Language,
		&status,
		&score,
		&customerSatisfaction,
		&summary,
		&recommendations,
		&analysis,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	c.RequestID = requestID.String
	c.PersonnelID = personnelID.String
	c.AudioURL = audioURL.String
	c.Transcript = transcript.String
	c.Status = Status(status)
	if score.Valid {
		v := score.Float64
		c.Score = &v
	}
	c.CustomerSatisfaction = customerSatisfaction.String
	c.Summary = summary.String
	c.Recommendations = recommendations.String

	decoded, err := DecodeAnalysis(analysis)
	if err != nil {
		c.AnalysisError = err.Error()
		telemetry.Warn("calls.analysis.decode_failed", map[string]any{"call_id": c.ID, "error": err.Error()})
	} else {
		c.Analysis = decoded
	}
	return c, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableBytes(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	return string(value)
}

var _ Repo = (*PGRepo)(nil)
