package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	cerrors "github.com/hpungsan/certmail/internal/errors"
)

// Batch is one certificate batch.
type Batch struct {
	ID        string `json:"id"`
	OutputDir string `json:"output_dir"`
	Format    string `json:"format"`
	Count     int    `json:"count"`
	Template  string `json:"template,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Run is one dispatch run.
type Run struct {
	ID           string `json:"id"`
	BatchID      string `json:"batch_id,omitempty"`
	Mode         string `json:"mode"`
	Transport    string `json:"transport"`
	Subject      string `json:"subject"`
	Recipients   string `json:"recipients"`
	Total        int    `json:"total"`
	Sent         int    `json:"sent"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
	Unknown      int    `json:"unknown"`
	NotAttempted int    `json:"not_attempted"`
	Aborted      bool   `json:"aborted"`
	AbortReason  string `json:"abort_reason,omitempty"`
	StartedAt    int64  `json:"started_at"`
	FinishedAt   *int64 `json:"finished_at,omitempty"`
}

// Delivery is the recorded outcome for one row of a run.
type Delivery struct {
	RunID       string   `json:"run_id"`
	Row         int      `json:"row"`
	Line        int      `json:"line"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Status      string   `json:"status"`
	Reason      string   `json:"reason,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	RecordedAt  int64    `json:"recorded_at"`
}

// InsertBatch stores a new batch.
func InsertBatch(ctx context.Context, db *sql.DB, b *Batch) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO batches (id, output_dir, format, count, template, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.ID, b.OutputDir, b.Format, b.Count, toNullString(b.Template), b.CreatedAt)
	if err != nil {
		return cerrors.NewInternal(err)
	}
	return nil
}

// LatestBatch returns the most recent batch, or NOT_FOUND.
func LatestBatch(ctx context.Context, db *sql.DB) (*Batch, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, output_dir, format, count, template, created_at
		FROM batches
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`)

	var b Batch
	var template sql.NullString
	if err := row.Scan(&b.ID, &b.OutputDir, &b.Format, &b.Count, &template, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cerrors.NewNotFound("certificate batch")
		}
		return nil, cerrors.NewInternal(err)
	}
	b.Template = template.String
	return &b, nil
}

// InsertRun stores a run at its start.
func InsertRun(ctx context.Context, db *sql.DB, r *Run) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO dispatch_runs (
			id, batch_id, mode, transport, subject, recipients, total, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, toNullString(r.BatchID), r.Mode, r.Transport, r.Subject, r.Recipients, r.Total, r.StartedAt)
	if err != nil {
		return cerrors.NewInternal(err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func FinishRun(ctx context.Context, db *sql.DB, r *Run) error {
	res, err := db.ExecContext(ctx, `
		UPDATE dispatch_runs
		SET sent = ?, skipped = ?, failed = ?, unknown = ?, not_attempted = ?,
			aborted = ?, abort_reason = ?, finished_at = ?
		WHERE id = ?
	`, r.Sent, r.Skipped, r.Failed, r.Unknown, r.NotAttempted,
		boolToInt(r.Aborted), toNullString(r.AbortReason), r.FinishedAt, r.ID)
	if err != nil {
		return cerrors.NewInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cerrors.NewNotFound(r.ID)
	}
	return nil
}

// GetRun returns one run by id.
func GetRun(ctx context.Context, db *sql.DB, id string) (*Run, error) {
	row := db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cerrors.NewNotFound(id)
		}
		return nil, cerrors.NewInternal(err)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func ListRuns(ctx context.Context, db *sql.DB, limit, offset int) ([]Run, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatch_runs`).Scan(&total); err != nil {
		return nil, 0, cerrors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, runSelect+` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, cerrors.NewInternal(err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, cerrors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cerrors.NewInternal(err)
	}
	return runs, total, nil
}

// RecordDelivery stores or replaces the outcome for one row.
func RecordDelivery(ctx context.Context, db *sql.DB, d *Delivery) error {
	var attachments sql.NullString
	if len(d.Attachments) > 0 {
		data, err := json.Marshal(d.Attachments)
		if err != nil {
			return cerrors.NewInternal(err)
		}
		attachments = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO deliveries (
			run_id, row, line, name, email, status, reason, attachments, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.RunID, d.Row, d.Line, d.Name, d.Email, d.Status, toNullString(d.Reason), attachments, d.RecordedAt)
	if err != nil {
		return cerrors.NewInternal(err)
	}
	return nil
}

// ListDeliveries returns a run's deliveries in row order, optionally
// filtered by status.
func ListDeliveries(ctx context.Context, db *sql.DB, runID, status string) ([]Delivery, error) {
	query := `
		SELECT run_id, row, line, name, email, status, reason, attachments, recorded_at
		FROM deliveries
		WHERE run_id = ?
	`
	args := []any{runID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY row`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cerrors.NewInternal(err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		var reason, attachments sql.NullString
		if err := rows.Scan(&d.RunID, &d.Row, &d.Line, &d.Name, &d.Email, &d.Status, &reason, &attachments, &d.RecordedAt); err != nil {
			return nil, cerrors.NewInternal(err)
		}
		d.Reason = reason.String
		if attachments.Valid {
			if err := json.Unmarshal([]byte(attachments.String), &d.Attachments); err != nil {
				return nil, cerrors.NewInternal(err)
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.NewInternal(err)
	}
	return out, nil
}

const runSelect = `
	SELECT id, batch_id, mode, transport, subject, recipients, total,
		sent, skipped, failed, unknown, not_attempted, aborted, abort_reason,
		started_at, finished_at
	FROM dispatch_runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var batchID, abortReason sql.NullString
	var aborted int
	var finishedAt sql.NullInt64
	err := s.Scan(&r.ID, &batchID, &r.Mode, &r.Transport, &r.Subject, &r.Recipients, &r.Total,
		&r.Sent, &r.Skipped, &r.Failed, &r.Unknown, &r.NotAttempted, &aborted, &abortReason,
		&r.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	r.BatchID = batchID.String
	r.AbortReason = abortReason.String
	r.Aborted = aborted != 0
	if finishedAt.Valid {
		v := finishedAt.Int64
		r.FinishedAt = &v
	}
	return &r, nil
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
