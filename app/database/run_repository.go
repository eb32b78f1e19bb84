package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ RunRepository = (*SQLRunRepository)(nil)

// Fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLRunRepository struct {
	db  *DB
	now func() time.Time
}

func NewRunRepository(db *DB) *SQLRunRepository {
	return &SQLRunRepository{db: db, now: time.Now}
}

func (r *SQLRunRepository) CreateRun(sourceName, triggeredBy string) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		SourceName:  sourceName,
		TriggeredBy: triggeredBy,
		Status:      RunStatusRunning,
		StartedAt:   r.now().UTC(),
	}

	_, err := r.db.Exec(`
		INSERT INTO runs (id, source_name, triggered_by, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.SourceName, run.TriggeredBy, run.Status, formatTime(run.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

func (r *SQLRunRepository) FinishRun(runID string, result RunResult) error {
	res, err := r.db.Exec(`
		UPDATE runs
		SET status = ?, outcome = ?, reason = ?, candidates = ?, notified = ?,
			skipped = ?, failed = ?, deferred = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, result.Status, result.Outcome, result.Reason, result.Candidates, result.Notified,
		result.Skipped, result.Failed, result.Deferred, result.Error, formatTime(r.now().UTC()), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (r *SQLRunRepository) AddDocuments(runID string, documents []RunDocument) error {
	if len(documents) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_documents (run_id, position, identity, title, link, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range documents {
		if _, err := stmt.Exec(runID, doc.Position, doc.Identity, doc.Title, doc.Link, doc.Status, doc.Error); err != nil {
			return fmt.Errorf("failed to insert run document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run documents: %w", err)
	}
	return nil
}

const runColumns = `id, source_name, triggered_by, status, outcome, reason, candidates, notified,
	skipped, failed, deferred, error, started_at, finished_at`

func (r *SQLRunRepository) GetRun(runID string) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (r *SQLRunRepository) GetLastRun(sourceName string) (*Run, error) {
	runs, err := r.GetRecentRuns(sourceName, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (r *SQLRunRepository) GetRecentRuns(sourceName string, limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT `+runColumns+`
		FROM runs
		WHERE source_name = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, sourceName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func (r *SQLRunRepository) GetRunDocuments(runID string) ([]RunDocument, error) {
	rows, err := r.db.Query(`
		SELECT position, identity, title, link, status, error
		FROM run_documents
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run documents: %w", err)
	}
	defer rows.Close()

	var documents []RunDocument
	for rows.Next() {
		var doc RunDocument
		if err := rows.Scan(&doc.Position, &doc.Identity, &doc.Title, &doc.Link, &doc.Status, &doc.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run document: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run documents: %w", err)
	}

	return documents, nil
}

// GetStats aggregates history for one source, or for all sources when sourceName is empty.
func (r *SQLRunRepository) GetStats(sourceName string) (*Stats, error) {
	var (
		stats     Stats
		lastRunAt sql.NullString
	)

	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(notified), 0),
			COALESCE(SUM(failed), 0),
			MAX(started_at)
		FROM runs
		WHERE ? = '' OR source_name = ?
	`, sourceName, sourceName).Scan(&stats.Runs, &stats.FailedRuns, &stats.Notified, &stats.FailedDocs, &lastRunAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get run stats: %w", err)
	}

	var lastNotifiedAt sql.NullString
	err = r.db.QueryRow(`
		SELECT MAX(runs.started_at)
		FROM run_documents
		JOIN runs ON runs.id = run_documents.run_id
		WHERE run_documents.status = 'notified' AND (? = '' OR runs.source_name = ?)
	`, sourceName, sourceName).Scan(&lastNotifiedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get last notification: %w", err)
	}

	if stats.LastRunAt, err = parseNullTime(lastRunAt); err != nil {
		return nil, err
	}
	if stats.LastNotifiedAt, err = parseNullTime(lastNotifiedAt); err != nil {
		return nil, err
	}

	return &stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)

	err := row.Scan(&run.ID, &run.SourceName, &run.TriggeredBy, &run.Status, &run.Outcome, &run.Reason,
		&run.Candidates, &run.Notified, &run.Skipped, &run.Failed, &run.Deferred, &run.Error,
		&startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if run.FinishedAt, err = parseNullTime(finishedAt); err != nil {
		return nil, err
	}

	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}

	t, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", value.String, err)
	}
	return &t, nil
}
