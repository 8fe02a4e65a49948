package store

import "time"

// AddJobFailure appends a chunk failure record to a job.
func (db *DB) AddJobFailure(f *SyncJobFailure) error {
	f.CreatedAt = time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO sync_job_failures (job_id, chunk_index, chunk_start, chunk_end,
			error_message, error_class, retry_count, retried, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.JobID, f.ChunkIndex, f.ChunkStart, f.ChunkEnd,
		f.ErrorMessage, f.ErrorClass, f.RetryCount, f.Retried, f.CreatedAt)
	return err
}

// ListJobFailures returns a job's chunk failures in chunk order.
func (db *DB) ListJobFailures(jobID string) ([]SyncJobFailure, error) {
	rows, err := db.Query(`
		SELECT id, job_id, chunk_index, chunk_start, chunk_end,
			error_message, error_class, retry_count, retried, created_at
		FROM sync_job_failures WHERE job_id = ? ORDER BY chunk_index`, jobID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var failures []SyncJobFailure
	for rows.Next() {
		var f SyncJobFailure
		if err := rows.Scan(&f.ID, &f.JobID, &f.ChunkIndex, &f.ChunkStart, &f.ChunkEnd,
			&f.ErrorMessage, &f.ErrorClass, &f.RetryCount, &f.Retried, &f.CreatedAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// CountJobFailures returns the number of failed chunks for a job.
func (db *DB) CountJobFailures(jobID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sync_job_failures WHERE job_id = ?`, jobID).Scan(&n)
	return n, err
}
