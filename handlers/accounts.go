package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"nextreel/api"
	"nextreel/models"
	"nextreel/services/accounts"
)

// accountAdminService is the slice of the accounts service the handler needs.
type accountAdminService interface {
	List() ([]models.Account, error)
}

var _ accountAdminService = (*accounts.Service)(nil)

// AccountsHandler exposes the account administration surface, restricted to
// the master account.
type AccountsHandler struct {
	accounts accountAdminService
}

// NewAccountsHandler creates an accounts admin handler.
func NewAccountsHandler(accountsSvc accountAdminService) *AccountsHandler {
	return &AccountsHandler{accounts: accountsSvc}
}

// RegisterRoutes attaches the admin endpoints. The router must already run
// the session auth middleware.
func (h *AccountsHandler) RegisterRoutes(r *mux.Router) {
	admin := r.PathPrefix("/api/accounts").Subrouter()
	admin.Use(api.MasterOnlyMiddleware())
	admin.HandleFunc("", h.List).Methods(http.MethodGet, http.MethodOptions)
}

// List returns every registered account, master first.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	if list == nil {
		list = []models.Account{}
	}
	writeJSON(w, http.StatusOK, list)
}
