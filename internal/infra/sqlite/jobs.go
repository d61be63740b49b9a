package sqlite

import (
	"database/sql"
	"time"

	"github.com/avatarstudio/avatargw/internal/domain"
)

// ─── Job History ────────────────────────────────────────────────────────────

// RecordJob inserts a job row. Re-recording the same vendor task resets it.
func (d *DB) RecordJob(rec domain.JobRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := d.db.Exec(
		`INSERT INTO jobs (id, vendor, task_id, operation, status, error, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(vendor, task_id) DO UPDATE SET
			operation=excluded.operation,
			status=excluded.status,
			error=excluded.error,
			created_at=excluded.created_at,
			finished_at=excluded.finished_at`,
		rec.ID, string(rec.Vendor), rec.TaskID, rec.Operation, string(rec.Status),
		nullableString(rec.Error), rec.CreatedAt.Unix(), nullableUnix(rec.FinishedAt),
	)
	return err
}

// FinishJob stores the terminal status of a job.
// Returns domain.ErrJobNotFound if the task was never recorded.
func (d *DB) FinishJob(vendor domain.Vendor, taskID string, status domain.PollStatus, errMsg string) error {
	result, err := d.db.Exec(
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE vendor = ? AND task_id = ?`,
		string(status), nullableString(errMsg), time.Now().Unix(), string(vendor), taskID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// GetJob retrieves a job by vendor task id.
func (d *DB) GetJob(vendor domain.Vendor, taskID string) (*domain.JobRecord, error) {
	row := d.db.QueryRow(
		`SELECT id, vendor, task_id, operation, status, error, created_at, finished_at
		 FROM jobs WHERE vendor = ? AND task_id = ?`, string(vendor), taskID,
	)
	rec, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrJobNotFound
	}
	return rec, err
}

// ListJobs returns the most recent jobs, newest first.
func (d *DB) ListJobs(limit int) ([]domain.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(
		`SELECT id, vendor, task_id, operation, status, error, created_at, finished_at
		 FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *rec)
	}
	return jobs, rows.Err()
}

func scanJob(s scanner) (*domain.JobRecord, error) {
	var rec domain.JobRecord
	var vendor, status string
	var errText sql.NullString
	var createdAt int64
	var finishedAt sql.NullInt64

	if err := s.Scan(&rec.ID, &vendor, &rec.TaskID, &rec.Operation, &status,
		&errText, &createdAt, &finishedAt); err != nil {
		return nil, err
	}

	rec.Vendor = domain.Vendor(vendor)
	rec.Status = domain.PollStatus(status)
	rec.Error = errText.String
	rec.CreatedAt = time.Unix(createdAt, 0)
	if finishedAt.Valid {
		rec.FinishedAt = time.Unix(finishedAt.Int64, 0)
	}
	return &rec, nil
}
