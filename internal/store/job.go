package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrJobConflict is returned when a second processing job is attempted for
// a company scope that already has one.
var ErrJobConflict = errors.New("a sync job is already processing for this company")

// ErrJobNotFound is returned for operations on an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ErrBadTransition is returned for a transition out of a terminal status.
var ErrBadTransition = errors.New("invalid job transition")

// validJobTransitions: jobs only move forward, terminal states are final.
var validJobTransitions = map[JobStatus][]JobStatus{
	JobProcessing: {JobCompleted, JobCancelled, JobError},
	JobCompleted:  {},
	JobCancelled:  {},
	JobError:      {},
}

// CreateJob inserts a new processing job. The partial unique index on
// (company_id) WHERE status='processing' turns a concurrent start into
// ErrJobConflict.
func (db *DB) CreateJob(job *SyncJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UnixMilli()
	job.Status = JobProcessing
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := db.Exec(`
		INSERT INTO sync_jobs (id, company_id, status, total_chunks, completed_chunks,
			total_detail_targets, completed_detail_targets, period_start, period_end,
			stage, stage_label, stage_phase, next_stage, error_count, error_message,
			created_at, updated_at, finished_at)
		VALUES (?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?, ?, 0, 0, '', ?, ?, 0)`,
		job.ID, job.CompanyID, job.Status, job.TotalChunks,
		job.PeriodStart, job.PeriodEnd,
		job.Stage, job.StageLabel, job.StagePhase, job.CreatedAt, job.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrJobConflict
	}
	return err
}

// GetJob returns a job by id, or nil if absent.
func (db *DB) GetJob(id string) (*SyncJob, error) {
	return scanJob(db.QueryRow(jobColumns+` WHERE id = ?`, id))
}

// FindProcessingJob returns the company's currently processing job, if any.
func (db *DB) FindProcessingJob(companyID string) (*SyncJob, error) {
	return scanJob(db.QueryRow(jobColumns+` WHERE company_id = ? AND status = ?`,
		companyID, JobProcessing))
}

// ListJobs returns the company's jobs, newest first.
func (db *DB) ListJobs(companyID string, limit int) ([]SyncJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(jobColumns+`
		WHERE company_id = ? ORDER BY created_at DESC LIMIT ?`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []SyncJob
	for rows.Next() {
		job, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// TransitionJob moves a job to a terminal status, enforcing forward-only
// transitions. errMessage is stored truncated to 500 characters.
func (db *DB) TransitionJob(id string, to JobStatus, errMessage string) error {
	job, err := db.GetJob(id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	allowed := false
	for _, s := range validJobTransitions[job.Status] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s to %s", ErrBadTransition, job.Status, to)
	}

	if len(errMessage) > 500 {
		errMessage = errMessage[:500]
	}
	// The status just read guards the UPDATE: a concurrent transition that
	// lands first leaves zero rows affected and this one fails cleanly
	// instead of overwriting a terminal status.
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		UPDATE sync_jobs SET status = ?, error_message = ?, updated_at = ?, finished_at = ?
		WHERE id = ? AND status = ?`, to, errMessage, now, now, id, job.Status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: job %s changed status concurrently", ErrBadTransition, id)
	}
	return nil
}

// IncrementCompletedChunks persists the per-chunk resumability checkpoint.
func (db *DB) IncrementCompletedChunks(id string) error {
	_, err := db.Exec(`
		UPDATE sync_jobs SET completed_chunks = completed_chunks + 1, updated_at = ?
		WHERE id = ?`, time.Now().UnixMilli(), id)
	return err
}

// SetDetailTargets records the phase-2 worklist estimate.
func (db *DB) SetDetailTargets(id string, total int) error {
	_, err := db.Exec(`
		UPDATE sync_jobs SET total_detail_targets = ?, updated_at = ? WHERE id = ?`,
		total, time.Now().UnixMilli(), id)
	return err
}

// SetCompletedDetailTargets persists the backfill progress counter.
func (db *DB) SetCompletedDetailTargets(id string, completed int) error {
	_, err := db.Exec(`
		UPDATE sync_jobs SET completed_detail_targets = ?, updated_at = ? WHERE id = ?`,
		completed, time.Now().UnixMilli(), id)
	return err
}

// SetJobErrorCount records the running "N periods had errors" aggregate.
func (db *DB) SetJobErrorCount(id string, count int) error {
	_, err := db.Exec(`
		UPDATE sync_jobs SET error_count = ?, updated_at = ? WHERE id = ?`,
		count, time.Now().UnixMilli(), id)
	return err
}

// SetJobStage updates the staged-run state columns.
func (db *DB) SetJobStage(id string, phase StagePhase, nextStage int) error {
	_, err := db.Exec(`
		UPDATE sync_jobs SET stage_phase = ?, next_stage = ?, updated_at = ? WHERE id = ?`,
		phase, nextStage, time.Now().UnixMilli(), id)
	return err
}

const jobColumns = `
	SELECT id, company_id, status, total_chunks, completed_chunks,
		total_detail_targets, completed_detail_targets, period_start, period_end,
		stage, stage_label, stage_phase, next_stage, error_count, error_message,
		created_at, updated_at, finished_at
	FROM sync_jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row *sql.Row) (*SyncJob, error) {
	job, err := scanJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func scanJobRow(row rowScanner) (*SyncJob, error) {
	var j SyncJob
	err := row.Scan(&j.ID, &j.CompanyID, &j.Status, &j.TotalChunks, &j.CompletedChunks,
		&j.TotalDetailTargets, &j.CompletedDetailTargets, &j.PeriodStart, &j.PeriodEnd,
		&j.Stage, &j.StageLabel, &j.StagePhase, &j.NextStage, &j.ErrorCount, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
