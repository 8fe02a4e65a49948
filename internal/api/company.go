package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ykovtun/declsync/internal/store"
)

type createCompanyRequest struct {
	Name    string `json:"name"`
	CliCode string `json:"cliCode"`
	Token   string `json:"token"`
}

type companyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CliCode   string `json:"cliCode"`
	CreatedAt int64  `json:"createdAt"`
}

func companyToResponse(c store.Company) companyResponse {
	return companyResponse{ID: c.ID, Name: c.Name, CliCode: c.CliCode, CreatedAt: c.CreatedAt}
}

// CreateCompany handles POST /api/v1/companies. The upstream token is sealed
// before it touches the database and never leaves it again.
func (h *Handlers) CreateCompany(w http.ResponseWriter, r *http.Request) {
	if !roleFrom(r).CanSync() {
		writeError(w, http.StatusForbidden, errors.New("role is not authorized to manage companies"))
		return
	}

	var req createCompanyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" || req.CliCode == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, errors.New("name, cliCode and token are required"))
		return
	}

	cipher, nonce, err := h.creds.Seal(req.Token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	company := &store.Company{
		Name:        req.Name,
		CliCode:     req.CliCode,
		TokenCipher: cipher,
		TokenNonce:  nonce,
	}
	if err := h.db.CreateCompany(company); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.logger.Info("company registered",
		zap.String("company_id", company.ID), zap.String("cli_code", company.CliCode))
	writeJSON(w, http.StatusCreated, companyToResponse(*company))
}

// ListCompanies handles GET /api/v1/companies.
func (h *Handlers) ListCompanies(w http.ResponseWriter, _ *http.Request) {
	companies, err := h.db.ListCompanies()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]companyResponse, 0, len(companies))
	for _, c := range companies {
		out = append(out, companyToResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}
