package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ykovtun/declsync/internal/store"
)

type summaryRow struct {
	DeclarationID string           `json:"declarationId"`
	MRN           string           `json:"mrn,omitempty"`
	Status        store.DeclStatus `json:"status"`
	DocDate       int64            `json:"docDate,omitempty"`
	Sender        string           `json:"sender,omitempty"`
	Receiver      string           `json:"receiver,omitempty"`
	Transport     string           `json:"transport,omitempty"`
	HasDetail     bool             `json:"hasDetail"`
	UpdatedAt     int64            `json:"updatedAt"`
}

type declarationResponse struct {
	ID         string           `json:"id"`
	CompanyID  string           `json:"companyId"`
	GUID       string           `json:"guid,omitempty"`
	MRN        string           `json:"mrn,omitempty"`
	Status     store.DeclStatus `json:"status"`
	DocDate    int64            `json:"docDate,omitempty"`
	Sender     string           `json:"sender,omitempty"`
	Receiver   string           `json:"receiver,omitempty"`
	Declarant  string           `json:"declarant,omitempty"`
	HasDetail  bool             `json:"hasDetail"`
	RawPayload string           `json:"rawPayload,omitempty"`
	UpdatedAt  int64            `json:"updatedAt"`
}

// ListDeclarations handles GET /api/v1/declarations?companyId=...&from=...&to=...
// over the derived summary rows.
func (h *Handlers) ListDeclarations(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("companyId")
	if companyID == "" {
		writeError(w, http.StatusBadRequest, errors.New("companyId is required"))
		return
	}

	from, to, err := queryDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := queryInt(r, "limit", 200)

	rows, err := h.db.ListDeclarationSummaries(companyID, from, to, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]summaryRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryRow{
			DeclarationID: row.DeclarationID,
			MRN:           row.MRN,
			Status:        row.Status,
			DocDate:       row.DocDate,
			Sender:        row.Sender,
			Receiver:      row.Receiver,
			Transport:     row.Transport,
			HasDetail:     row.HasDetail,
			UpdatedAt:     row.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetDeclaration handles GET /api/v1/declarations/{declarationID}. Pass
// ?payload=1 to include the raw payload envelope.
func (h *Handlers) GetDeclaration(w http.ResponseWriter, r *http.Request) {
	decl, err := h.db.GetDeclaration(chi.URLParam(r, "declarationID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if decl == nil {
		writeError(w, http.StatusNotFound, errors.New("declaration not found"))
		return
	}

	resp := declarationResponse{
		ID:        decl.ID,
		CompanyID: decl.CompanyID,
		GUID:      decl.GUID,
		MRN:       decl.MRN(),
		Status:    decl.Status,
		DocDate:   decl.DocDate,
		Sender:    decl.Sender,
		Receiver:  decl.Receiver,
		Declarant: decl.Declarant,
		HasDetail: decl.HasDetail,
		UpdatedAt: decl.UpdatedAt,
	}
	if r.URL.Query().Get("payload") == "1" {
		resp.RawPayload = decl.RawPayload
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListHistory handles GET /api/v1/history?companyId=...&limit=N.
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("companyId")
	if companyID == "" {
		writeError(w, http.StatusBadRequest, errors.New("companyId is required"))
		return
	}
	limit := queryInt(r, "limit", 50)

	entries, err := h.db.ListHistory(companyID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]historyRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyRow{
			JobID:      e.JobID,
			Phase:      e.Phase,
			ItemCount:  e.ItemCount,
			ErrorCount: e.ErrorCount,
			Summary:    e.Summary,
			CreatedAt:  e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type historyRow struct {
	JobID      string `json:"jobId"`
	Phase      string `json:"phase"`
	ItemCount  int    `json:"itemCount"`
	ErrorCount int    `json:"errorCount"`
	Summary    string `json:"summary"`
	CreatedAt  int64  `json:"createdAt"`
}

// queryDateRange parses optional from/to query dates; absent bounds widen to
// the whole table.
func queryDateRange(r *http.Request) (from, to int64, err error) {
	to = time.Now().AddDate(0, 0, 1).UnixMilli()
	if v := r.URL.Query().Get("from"); v != "" {
		t, perr := time.Parse(dateLayout, v)
		if perr != nil {
			return 0, 0, perr
		}
		from = t.UnixMilli()
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, perr := time.Parse(dateLayout, v)
		if perr != nil {
			return 0, 0, perr
		}
		to = t.AddDate(0, 0, 1).Add(-time.Millisecond).UnixMilli()
	}
	return from, to, nil
}
