package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ListUpsert is one list-phase item ready to merge into the store.
type ListUpsert struct {
	GUID       string
	MRNCustoms string
	MRNDate    string
	MRNNumber  string
	Status     DeclStatus
	DocDate    int64
	Sender     string
	Receiver   string
	Declarant  string
	// ListFields is the flat field map of the source item; persisted as the
	// listPhaseData portion of the payload envelope.
	ListFields map[string]string
}

// UpsertFromList merges a list-phase item, keyed by (company, guid) with a
// fallback on the registration number. Idempotent: a repeat of the same item
// never duplicates a record and never discards stored detail data. When the
// existing record already carries detail data only the status/date/name
// metadata is touched, so large payloads are not re-serialized.
func (db *DB) UpsertFromList(companyID string, item *ListUpsert) (id string, created bool, err error) {
	existing, err := db.findByKey(companyID, item.GUID, item.MRNCustoms, item.MRNDate, item.MRNNumber)
	if err != nil {
		return "", false, err
	}

	now := time.Now().UnixMilli()

	if existing == nil {
		listJSON, err := json.Marshal(item.ListFields)
		if err != nil {
			return "", false, fmt.Errorf("marshal list fields: %w", err)
		}
		payload, err := Payload{Kind: PayloadEnvelope, ListPhase: listJSON}.Encode()
		if err != nil {
			return "", false, err
		}
		id = uuid.New().String()
		_, err = db.Exec(`
			INSERT INTO declarations (id, company_id, guid, mrn_customs, mrn_date, mrn_number,
				status, doc_date, sender, receiver, declarant, raw_payload, has_detail, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			id, companyID, item.GUID, item.MRNCustoms, item.MRNDate, item.MRNNumber,
			item.Status, item.DocDate, item.Sender, item.Receiver, item.Declarant, payload, now, now)
		if err != nil {
			return "", false, fmt.Errorf("insert declaration: %w", err)
		}
		return id, true, nil
	}

	// A record found via mrn may predate the guid; fill it in.
	guid := existing.GUID
	if guid == "" {
		guid = item.GUID
	}

	p := DecodePayload(existing.RawPayload)
	if p.HasDetail() {
		_, err = db.Exec(`
			UPDATE declarations
			SET guid = ?, status = ?, doc_date = ?, sender = ?, receiver = ?, declarant = ?, updated_at = ?
			WHERE id = ?`,
			guid, item.Status, item.DocDate, item.Sender, item.Receiver, item.Declarant, now, existing.ID)
		if err != nil {
			return "", false, fmt.Errorf("update declaration metadata: %w", err)
		}
		return existing.ID, false, nil
	}

	listJSON, err := json.Marshal(item.ListFields)
	if err != nil {
		return "", false, fmt.Errorf("marshal list fields: %w", err)
	}
	p.Kind = PayloadEnvelope
	p.ListPhase = listJSON
	payload, err := p.Encode()
	if err != nil {
		return "", false, err
	}
	_, err = db.Exec(`
		UPDATE declarations
		SET guid = ?, status = ?, doc_date = ?, sender = ?, receiver = ?, declarant = ?,
			raw_payload = ?, updated_at = ?
		WHERE id = ?`,
		guid, item.Status, item.DocDate, item.Sender, item.Receiver, item.Declarant,
		payload, now, existing.ID)
	if err != nil {
		return "", false, fmt.Errorf("update declaration: %w", err)
	}
	return existing.ID, false, nil
}

// MergeDetail attaches detail-phase XML to a record, preserving the
// list-phase portion. Detail data is immutable once present: the merge is
// skipped unless force (an explicit refetch) is set.
func (db *DB) MergeDetail(id, detailXML string, force bool) (merged bool, err error) {
	decl, err := db.GetDeclaration(id)
	if err != nil {
		return false, err
	}
	if decl == nil {
		return false, fmt.Errorf("declaration %s not found", id)
	}

	p := DecodePayload(decl.RawPayload)
	if p.HasDetail() && !force {
		return false, nil
	}

	p.Kind = PayloadEnvelope
	p.DetailPhase = detailXML
	p.LegacyXML = ""
	payload, err := p.Encode()
	if err != nil {
		return false, err
	}

	_, err = db.Exec(`
		UPDATE declarations SET raw_payload = ?, has_detail = 1, updated_at = ? WHERE id = ?`,
		payload, time.Now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("merge detail: %w", err)
	}
	return true, nil
}

// GetDeclaration returns a declaration by id, or nil if absent.
func (db *DB) GetDeclaration(id string) (*Declaration, error) {
	return scanDeclaration(db.QueryRow(declarationColumns+` WHERE id = ?`, id))
}

// FindMissingDetail returns the next id-ordered page of records in the date
// range that have a guid but no detail data yet. afterID is the cursor;
// empty starts from the beginning.
func (db *DB) FindMissingDetail(companyID string, from, to int64, afterID string, limit int) ([]Declaration, error) {
	rows, err := db.Query(declarationColumns+`
		WHERE company_id = ? AND has_detail = 0 AND guid != ''
			AND doc_date >= ? AND doc_date <= ? AND id > ?
		ORDER BY id
		LIMIT ?`, companyID, from, to, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectDeclarations(rows)
}

// CountMissingDetail counts distinct external ids in the date range lacking
// detail data. A single aggregate query; treated as an estimate for
// progress display, not a contractual total.
func (db *DB) CountMissingDetail(companyID string, from, to int64) (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(DISTINCT guid) FROM declarations
		WHERE company_id = ? AND has_detail = 0 AND guid != ''
			AND doc_date >= ? AND doc_date <= ?`,
		companyID, from, to).Scan(&n)
	return n, err
}

const declarationColumns = `
	SELECT id, company_id, guid, mrn_customs, mrn_date, mrn_number,
		status, doc_date, sender, receiver, declarant, raw_payload, has_detail,
		created_at, updated_at
	FROM declarations`

func (db *DB) findByKey(companyID, guid, mrnCustoms, mrnDate, mrnNumber string) (*Declaration, error) {
	if guid != "" {
		decl, err := scanDeclaration(db.QueryRow(
			declarationColumns+` WHERE company_id = ? AND guid = ?`, companyID, guid))
		if decl != nil || err != nil {
			return decl, err
		}
	}
	if mrnCustoms == "" && mrnDate == "" && mrnNumber == "" {
		return nil, nil
	}
	return scanDeclaration(db.QueryRow(declarationColumns+`
		WHERE company_id = ? AND mrn_customs = ? AND mrn_date = ? AND mrn_number = ?`,
		companyID, mrnCustoms, mrnDate, mrnNumber))
}

func scanDeclaration(row *sql.Row) (*Declaration, error) {
	var d Declaration
	err := row.Scan(&d.ID, &d.CompanyID, &d.GUID, &d.MRNCustoms, &d.MRNDate, &d.MRNNumber,
		&d.Status, &d.DocDate, &d.Sender, &d.Receiver, &d.Declarant, &d.RawPayload, &d.HasDetail,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDeclarations(rows *sql.Rows) ([]Declaration, error) {
	var decls []Declaration
	for rows.Next() {
		var d Declaration
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.GUID, &d.MRNCustoms, &d.MRNDate, &d.MRNNumber,
			&d.Status, &d.DocDate, &d.Sender, &d.Receiver, &d.Declarant, &d.RawPayload, &d.HasDetail,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}
