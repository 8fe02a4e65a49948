package store

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// UpdateDeclarationSummary refreshes the derived listing row for one
// declaration. Called after every successful declaration write so the
// derived aggregates stay consistent with the raw payload.
func (db *DB) UpdateDeclarationSummary(id, rawPayload string) error {
	decl, err := db.GetDeclaration(id)
	if err != nil {
		return err
	}
	if decl == nil {
		return fmt.Errorf("declaration %s not found", id)
	}

	transport := ""
	p := DecodePayload(rawPayload)
	if len(p.ListPhase) > 0 {
		var fields map[string]string
		if err := json.Unmarshal(p.ListPhase, &fields); err == nil {
			transport = fields["transport"]
		}
	}

	_, err = db.Exec(`
		INSERT INTO declaration_summaries (declaration_id, company_id, mrn, status, doc_date,
			sender, receiver, transport, has_detail, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(declaration_id) DO UPDATE SET
			mrn = excluded.mrn,
			status = excluded.status,
			doc_date = excluded.doc_date,
			sender = excluded.sender,
			receiver = excluded.receiver,
			transport = excluded.transport,
			has_detail = excluded.has_detail,
			updated_at = excluded.updated_at`,
		decl.ID, decl.CompanyID, decl.MRN(), decl.Status, decl.DocDate,
		decl.Sender, decl.Receiver, transport, p.HasDetail(), time.Now().UnixMilli())
	return err
}

// ListDeclarationSummaries returns the derived rows for a company within a
// date range, newest first.
func (db *DB) ListDeclarationSummaries(companyID string, from, to int64, limit int) ([]DeclarationSummaryRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT declaration_id, company_id, mrn, status, doc_date, sender, receiver, transport, has_detail, updated_at
		FROM declaration_summaries
		WHERE company_id = ? AND doc_date >= ? AND doc_date <= ?
		ORDER BY doc_date DESC LIMIT ?`,
		companyID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []DeclarationSummaryRow
	for rows.Next() {
		var r DeclarationSummaryRow
		if err := rows.Scan(&r.DeclarationID, &r.CompanyID, &r.MRN, &r.Status, &r.DocDate,
			&r.Sender, &r.Receiver, &r.Transport, &r.HasDetail, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
