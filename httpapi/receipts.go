package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// createReceiptRequest is the wire shape of POST /v1/receipts.
type createReceiptRequest struct {
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	MerchantID      string          `json:"merchant_id"`
	StoreID         string          `json:"store_id,omitempty"`
	AccountRef      string          `json:"account_ref"`
	ProgramID       string          `json:"program_id"`
	GrandTotalCents int64           `json:"grand_total_cents"`
	ProcessorTxnID  string          `json:"processor_txn_id,omitempty"`
	IssuedAt        *time.Time      `json:"issued_at,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

func (req createReceiptRequest) validate() string {
	switch {
	case req.MerchantID == "":
		return "merchant_id is required"
	case req.AccountRef == "":
		return "account_ref is required"
	case req.ProgramID == "":
		return "program_id is required"
	case req.GrandTotalCents < 0:
		return "grand_total_cents must be >= 0"
	default:
		return ""
	}
}

type jobHandleResponse struct {
	ReceiptID        string          `json:"receipt_id"`
	ProcessingJobID  string          `json:"processing_job_id"`
	Status           model.JobStatus `json:"status"`
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "x-tenant-id header is required")
		return
	}

	var req createReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed json body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	issuedAt := s.now()
	if req.IssuedAt != nil {
		issuedAt = *req.IssuedAt
	}
	total := amount.FromInt64(req.GrandTotalCents)
	fingerprint := model.ComputeFingerprint(tenant, req.IdempotencyKey, req.MerchantID, req.StoreID, req.AccountRef, total, req.ProcessorTxnID, issuedAt)

	ctx := r.Context()
	if existing, ok, err := s.store.FindReceiptByIdempotency(ctx, tenant, req.IdempotencyKey); err != nil {
		writeError(w, http.StatusInternalServerError, "receipt lookup failed")
		return
	} else if ok {
		s.respondDuplicateReceipt(w, ctx, tenant, existing)
		return
	}
	if existing, ok, err := s.store.FindReceiptByFingerprint(ctx, tenant, fingerprint); err != nil {
		writeError(w, http.StatusInternalServerError, "receipt lookup failed")
		return
	} else if ok {
		s.respondDuplicateReceipt(w, ctx, tenant, existing)
		return
	}

	receipt := model.Receipt{
		ReceiptID:       s.newID(),
		Tenant:          tenant,
		IdempotencyKey:  req.IdempotencyKey,
		Fingerprint:     fingerprint,
		MerchantID:      req.MerchantID,
		StoreID:         req.StoreID,
		AccountRef:      req.AccountRef,
		ProgramID:       req.ProgramID,
		GrandTotalCents: total,
		ProcessorTxnID:  req.ProcessorTxnID,
		IssuedAt:        issuedAt,
		Payload:         req.Payload,
		CreatedAt:       s.now(),
	}
	if err := s.store.PutReceipt(ctx, receipt); errors.Is(err, ErrIdempotencyConflict) {
		existing, ok, lookupErr := s.store.FindReceiptByIdempotency(ctx, tenant, req.IdempotencyKey)
		if lookupErr != nil || !ok {
			writeError(w, http.StatusConflict, "duplicate receipt")
			return
		}
		s.respondDuplicateReceipt(w, ctx, tenant, existing)
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "receipt write failed")
		return
	}

	job := model.Job{
		JobID:       s.newID(),
		Tenant:      tenant,
		ReferenceID: receipt.ReceiptID,
		Status:      model.JobPending,
		AvailableAt: s.now(),
		CreatedAt:   s.now(),
	}
	if err := s.store.EnqueueReceiptJob(ctx, job); err != nil {
		writeError(w, http.StatusInternalServerError, "job enqueue failed")
		return
	}

	writeJSON(w, http.StatusAccepted, jobHandleResponse{
		ReceiptID:       receipt.ReceiptID,
		ProcessingJobID: job.JobID,
		Status:          job.Status,
	})
}

func (s *Server) respondDuplicateReceipt(w http.ResponseWriter, ctx context.Context, tenant string, existing *model.Receipt) {
	job, _, _ := s.store.FindReceiptJobByReference(ctx, tenant, existing.ReceiptID)
	resp := jobHandleResponse{ReceiptID: existing.ReceiptID}
	if job != nil {
		resp.ProcessingJobID = job.JobID
		resp.Status = job.Status
	}
	writeJSON(w, http.StatusConflict, resp)
}

type jobStatusResponse struct {
	ReceiptID       string          `json:"receipt_id,omitempty"`
	RedemptionID    string          `json:"redemption_id,omitempty"`
	ProcessingJobID string          `json:"processing_job_id"`
	Status          model.JobStatus `json:"status"`
	Attempts        int             `json:"attempts"`
	LastError       string          `json:"last_error,omitempty"`
	Summary         json.RawMessage `json:"summary,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	AvailableAt     time.Time       `json:"available_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (s *Server) handleReceiptStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "x-tenant-id header is required")
		return
	}
	receiptID := chi.URLParam(r, "receiptID")
	if receiptID == "" {
		writeError(w, http.StatusBadRequest, "malformed receipt id")
		return
	}
	job, ok, err := s.store.FindReceiptJobByReference(r.Context(), tenant, receiptID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no job for receipt")
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{
		ReceiptID:       receiptID,
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
