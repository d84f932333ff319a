// Package httpapi implements the ingress surface: a thin chi router that
// validates requests, enqueues jobs, and answers status and balance
// queries. It never runs a plugin chain itself; clients learn terminal job
// status from the status endpoints or the webhook, not from ingress.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loyaltyledger/engine/model"
)

// ErrIdempotencyConflict is returned by Store.PutReceipt/PutRedeemRequest
// when a concurrent request already committed the same (tenant,
// idempotency_key). Handlers treat it as a 409 rather than a 500, falling
// back to the idempotency lookup to build the response.
var ErrIdempotencyConflict = errors.New("httpapi: idempotency conflict")

// Balance is one (program_id, unit) row of an account balances response.
type Balance struct {
	ProgramID string `json:"program_id"`
	Unit      string `json:"unit"`
	Qty       int64  `json:"qty"`
}

// Store is the persistence surface ingress depends on directly — narrow
// lookups and inserts, never a transaction, since enqueueing a job is the
// full extent of ingress's write surface; the job processor owns
// everything downstream of the job row.
type Store interface {
	FindReceiptByIdempotency(ctx context.Context, tenant, idempotencyKey string) (*model.Receipt, bool, error)
	FindReceiptByFingerprint(ctx context.Context, tenant, fingerprint string) (*model.Receipt, bool, error)
	PutReceipt(ctx context.Context, r model.Receipt) error
	EnqueueReceiptJob(ctx context.Context, j model.Job) error
	GetReceiptJob(ctx context.Context, tenant, jobID string) (*model.Job, bool, error)
	FindReceiptJobByReference(ctx context.Context, tenant, receiptID string) (*model.Job, bool, error)

	FindRedeemByIdempotency(ctx context.Context, tenant, idempotencyKey string) (*model.RedeemRequest, bool, error)
	PutRedeemRequest(ctx context.Context, r model.RedeemRequest) error
	EnqueueRedeemJob(ctx context.Context, j model.Job) error
	GetRedeemJob(ctx context.Context, tenant, jobID string) (*model.Job, bool, error)
	FindRedeemJobByReference(ctx context.Context, tenant, requestID string) (*model.Job, bool, error)

	AccountBalances(ctx context.Context, tenant, accountID, programID string) ([]Balance, error)

	Get(ctx context.Context, tx any, tenant, programID string) (json.RawMessage, bool, error)
	Put(ctx context.Context, tenant, programID string, cfg json.RawMessage) error
}

// Clock supplies wall time.
type Clock func() time.Time

// IDGenerator supplies fresh identifiers.
type IDGenerator func() string

// Server bundles the store and dependencies every handler needs.
type Server struct {
	store  Store
	now    Clock
	newID  IDGenerator
	logger *log.Logger
}

// New constructs a Server.
func New(store Store, now Clock, newID IDGenerator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{store: store, now: now, newID: newID, logger: logger.WithPrefix("httpapi")}
}

// Router builds the ingress chi.Router, plus the supplemental /healthz
// and /metrics endpoints operators expect of any service in this stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/receipts", s.handleCreateReceipt)
		r.Get("/receipts/{receiptID}/status", s.handleReceiptStatus)
		r.Post("/redeem", s.handleCreateRedeem)
		r.Get("/redeem/{redemptionID}/status", s.handleRedeemStatus)
		r.Get("/accounts/{accountID}/balances", s.handleBalances)
		r.Put("/programs/{programID}/config", s.handlePutConfig)
		r.Get("/programs/{programID}/config", s.handleGetConfig)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", s.now().Sub(start))
	})
}

func tenantID(r *http.Request) string {
	return r.Header.Get("x-tenant-id")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
