package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loyaltyledger/engine/model"
)

// handleBalances implements GET /v1/accounts/{account_id}/balances
//: account_id "merchant"/"merchant_liability" resolves to the
// tenant's merchant liability account, otherwise a customer account.
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "x-tenant-id header is required")
		return
	}
	raw := chi.URLParam(r, "accountID")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "malformed account id")
		return
	}
	accountID := resolveAccountID(tenant, raw)
	programID := r.URL.Query().Get("program_id")

	balances, err := s.store.AccountBalances(r.Context(), tenant, accountID, programID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "balance lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// resolveAccountID applies the balance-query merchant-alias shorthand.
func resolveAccountID(tenant, accountID string) string {
	if accountID == "merchant" || accountID == "merchant_liability" {
		return model.MerchantLiabilityAccountID(tenant)
	}
	return model.CustomerAccountID(tenant, accountID)
}
