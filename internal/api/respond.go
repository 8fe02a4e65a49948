package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ykovtun/declsync/internal/store"
	"github.com/ykovtun/declsync/internal/syncjob"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, syncjob.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, syncjob.ErrUnknownCompany):
		return http.StatusNotFound
	case errors.Is(err, store.ErrJobConflict), errors.Is(err, store.ErrBadTransition):
		return http.StatusConflict
	case errors.Is(err, store.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, syncjob.ErrBadPeriod),
		errors.Is(err, syncjob.ErrSpanTooLong),
		errors.Is(err, syncjob.ErrBeyondHorizon),
		errors.Is(err, syncjob.ErrUnknownStage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
