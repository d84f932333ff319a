package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// createRedeemRequest is the wire shape of POST /v1/redeem.
type createRedeemRequest struct {
	AccountID      string `json:"account_id"`
	ProgramID      string `json:"program_id"`
	Unit           string `json:"unit"`
	Qty            int64  `json:"qty"`
	Memo           string `json:"memo,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	BurnMerchantID string `json:"burn_merchant_id,omitempty"`
}

func (req createRedeemRequest) validate() string {
	switch {
	case req.AccountID == "":
		return "account_id is required"
	case req.ProgramID == "":
		return "program_id is required"
	case req.Unit == "":
		return "unit is required"
	case req.Qty <= 0:
		return "qty must be > 0"
	default:
		return ""
	}
}

func (s *Server) handleCreateRedeem(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "x-tenant-id header is required")
		return
	}

	var req createRedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed json body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	ctx := r.Context()
	if existing, ok, err := s.store.FindRedeemByIdempotency(ctx, tenant, req.IdempotencyKey); err != nil {
		writeError(w, http.StatusInternalServerError, "redeem lookup failed")
		return
	} else if ok {
		s.respondDuplicateRedeem(w, ctx, tenant, existing)
		return
	}

	request := model.RedeemRequest{
		RequestID:      s.newID(),
		Tenant:         tenant,
		IdempotencyKey: req.IdempotencyKey,
		AccountID:      req.AccountID,
		ProgramID:      req.ProgramID,
		Unit:           req.Unit,
		Qty:            amount.FromInt64(req.Qty),
		Memo:           req.Memo,
		BurnMerchantID: req.BurnMerchantID,
		CreatedAt:      s.now(),
	}
	if err := s.store.PutRedeemRequest(ctx, request); errors.Is(err, ErrIdempotencyConflict) {
		existing, ok, lookupErr := s.store.FindRedeemByIdempotency(ctx, tenant, req.IdempotencyKey)
		if lookupErr != nil || !ok {
			writeError(w, http.StatusConflict, "duplicate redeem request")
			return
		}
		s.respondDuplicateRedeem(w, ctx, tenant, existing)
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "redeem write failed")
		return
	}

	job := model.Job{
		JobID:       s.newID(),
		Tenant:      tenant,
		ReferenceID: request.RequestID,
		Status:      model.JobPending,
		AvailableAt: s.now(),
		CreatedAt:   s.now(),
	}
	if err := s.store.EnqueueRedeemJob(ctx, job); err != nil {
		writeError(w, http.StatusInternalServerError, "job enqueue failed")
		return
	}

	writeJSON(w, http.StatusAccepted, redeemHandleResponse{
		RedemptionID:    request.RequestID,
		ProcessingJobID: job.JobID,
		Status:          job.Status,
	})
}

type redeemHandleResponse struct {
	RedemptionID    string          `json:"redemption_id"`
	ProcessingJobID string          `json:"processing_job_id"`
	Status          model.JobStatus `json:"status"`
}

func (s *Server) respondDuplicateRedeem(w http.ResponseWriter, ctx context.Context, tenant string, existing *model.RedeemRequest) {
	job, _, _ := s.store.FindRedeemJobByReference(ctx, tenant, existing.RequestID)
	resp := redeemHandleResponse{RedemptionID: existing.RequestID}
	if job != nil {
		resp.ProcessingJobID = job.JobID
		resp.Status = job.Status
	}
	writeJSON(w, http.StatusConflict, resp)
}

func (s *Server) handleRedeemStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "x-tenant-id header is required")
		return
	}
	requestID := chi.URLParam(r, "redemptionID")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "malformed redemption id")
		return
	}
	job, ok, err := s.store.FindRedeemJobByReference(r.Context(), tenant, requestID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no job for redemption")
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{
		RedemptionID:    requestID,
		ProcessingJobID: job.JobID,
		Status:          job.Status,
		Attempts:        job.Attempts,
		LastError:       job.LastError,
		Summary:         job.ResultSummary,
		CompletedAt:     job.CompletedAt,
		AvailableAt:     job.AvailableAt,
		CreatedAt:       job.CreatedAt,
	})
}
