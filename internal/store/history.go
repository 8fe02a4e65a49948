package store

import "time"

// AddHistoryEntry appends an audit row for a completed phase. Write-once
// per phase-completion event.
func (db *DB) AddHistoryEntry(e *SyncHistoryEntry) error {
	e.CreatedAt = time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO sync_history (job_id, company_id, phase, item_count, error_count, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.JobID, e.CompanyID, e.Phase, e.ItemCount, e.ErrorCount, e.Summary, e.CreatedAt)
	return err
}

// ListHistory returns the company's audit entries, newest first.
func (db *DB) ListHistory(companyID string, limit int) ([]SyncHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, job_id, company_id, phase, item_count, error_count, summary, created_at
		FROM sync_history WHERE company_id = ? ORDER BY created_at DESC LIMIT ?`,
		companyID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []SyncHistoryEntry
	for rows.Next() {
		var e SyncHistoryEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.CompanyID, &e.Phase, &e.ItemCount,
			&e.ErrorCount, &e.Summary, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
