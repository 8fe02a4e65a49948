package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ykovtun/declsync/internal/store"
	"github.com/ykovtun/declsync/internal/syncjob"
)

const dateLayout = "2006-01-02"

type startPeriodRequest struct {
	CompanyID string `json:"companyId"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type startStagedRequest struct {
	CompanyID string `json:"companyId"`
	Stage     int    `json:"stage"`
}

type startResponse struct {
	JobID string `json:"jobId"`
}

type jobResponse struct {
	ID                     string          `json:"id"`
	CompanyID              string          `json:"companyId"`
	Status                 store.JobStatus `json:"status"`
	TotalChunks            int             `json:"totalChunks"`
	CompletedChunks        int             `json:"completedChunks"`
	TotalDetailTargets     int             `json:"totalDetailTargets"`
	CompletedDetailTargets int             `json:"completedDetailTargets"`
	PeriodStart            int64           `json:"periodStart"`
	PeriodEnd              int64           `json:"periodEnd"`
	Stage                  int             `json:"stage,omitempty"`
	StageLabel             string          `json:"stageLabel,omitempty"`
	StatusNote             string          `json:"statusNote,omitempty"`
	ErrorCount             int             `json:"errorCount"`
	ErrorMessage           string          `json:"errorMessage,omitempty"`
	CreatedAt              int64           `json:"createdAt"`
	FinishedAt             int64           `json:"finishedAt,omitempty"`
	Failures               []jobFailureRow `json:"failures,omitempty"`
}

type jobFailureRow struct {
	ChunkIndex   int    `json:"chunkIndex"`
	ChunkStart   int64  `json:"chunkStart"`
	ChunkEnd     int64  `json:"chunkEnd"`
	ErrorMessage string `json:"errorMessage"`
	ErrorClass   string `json:"errorClass"`
	Retried      bool   `json:"retried"`
}

func jobToResponse(job *store.SyncJob) jobResponse {
	resp := jobResponse{
		ID:                     job.ID,
		CompanyID:              job.CompanyID,
		Status:                 job.Status,
		TotalChunks:            job.TotalChunks,
		CompletedChunks:        job.CompletedChunks,
		TotalDetailTargets:     job.TotalDetailTargets,
		CompletedDetailTargets: job.CompletedDetailTargets,
		PeriodStart:            job.PeriodStart,
		PeriodEnd:              job.PeriodEnd,
		Stage:                  job.Stage,
		StageLabel:             job.StageLabel,
		ErrorCount:             job.ErrorCount,
		ErrorMessage:           job.ErrorMessage,
		CreatedAt:              job.CreatedAt,
		FinishedAt:             job.FinishedAt,
	}
	if job.Stage > 0 {
		resp.StatusNote = syncjob.StageStateOf(job).StatusNote()
	}
	return resp
}

// StartPeriodSync handles POST /api/v1/sync/period.
func (h *Handlers) StartPeriodSync(w http.ResponseWriter, r *http.Request) {
	var req startPeriodRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad from date: %w", err))
		return
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad to date: %w", err))
		return
	}

	jobID, err := h.controller.StartPeriodSync(req.CompanyID, roleFrom(r), from, to)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{JobID: jobID})
}

// StartStagedSync handles POST /api/v1/sync/staged.
func (h *Handlers) StartStagedSync(w http.ResponseWriter, r *http.Request) {
	var req startStagedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	jobID, err := h.controller.StartStagedSync(req.CompanyID, roleFrom(r), req.Stage)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{JobID: jobID})
}

// GetJob handles GET /api/v1/jobs/{jobID}. The per-chunk failure list is
// attached only once the job is terminal; a running job exposes just the
// aggregate error count.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.db.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, errors.New("job not found"))
		return
	}

	resp := jobToResponse(job)
	if job.Status != store.JobProcessing {
		failures, err := h.db.ListJobFailures(job.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, f := range failures {
			resp.Failures = append(resp.Failures, jobFailureRow{
				ChunkIndex:   f.ChunkIndex,
				ChunkStart:   f.ChunkStart,
				ChunkEnd:     f.ChunkEnd,
				ErrorMessage: f.ErrorMessage,
				ErrorClass:   f.ErrorClass,
				Retried:      f.Retried,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListJobs handles GET /api/v1/jobs?companyId=...&limit=N.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("companyId")
	limit := queryInt(r, "limit", 50)

	jobs, err := h.db.ListJobs(companyID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobToResponse(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// CancelJob handles POST /api/v1/jobs/{jobID}/cancel.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.CancelJob(chi.URLParam(r, "jobID"), roleFrom(r)); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
