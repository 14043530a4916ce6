package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"efrn/internal/ledger"
	"efrn/internal/orchestrator"
	"efrn/internal/override"
	"efrn/internal/transaction/models"
	dErrors "efrn/pkg/domain-errors"
	"efrn/pkg/platform/httputil"
	"efrn/pkg/platform/middleware/auth"
	request "efrn/pkg/platform/middleware/request"
)

// Service defines the orchestrator operations exposed over HTTP.
type Service interface {
	CreateTransaction(ctx context.Context, in orchestrator.CreateRequest) (*models.Transaction, error)
	ListLedger(ctx context.Context) ([]ledger.Entry, error)
	VerifyLedger(ctx context.Context) (ledger.VerifyResult, error)
	SubmitOverride(ctx context.Context, in override.Request) (*models.Transaction, error)
}

// Handler serves the /api routes.
type Handler struct {
	service   Service
	logger    *slog.Logger
	approvers auth.TokenValidator
}

// New creates a Handler. A nil validator leaves the override route open to
// the approver allow-list check alone.
func New(service Service, logger *slog.Logger, approvers auth.TokenValidator) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		approvers: approvers,
	}
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/transaction", h.HandleCreateTransaction)
		r.Get("/ledger", h.HandleListLedger)
		r.Get("/ledger/verify", h.HandleVerifyLedger)
		r.With(auth.RequireApprover(h.approvers, h.logger)).Post("/override", h.HandleSubmitOverride)
	})
}

// HandleCreateTransaction evaluates a new transaction. A business rejection
// is a 200 with final_status REJECTED.
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateTransactionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tx, err := h.service.CreateTransaction(ctx, req.toService())
	if err != nil {
		h.logFailure(ctx, "create transaction failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// HandleListLedger returns every ledger entry in append order.
func (h *Handler) HandleListLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.service.ListLedger(ctx)
	if err != nil {
		h.logFailure(ctx, "list ledger failed", request.GetRequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLedgerResponse(entries))
}

// HandleVerifyLedger reports whether the hash chain is intact. A broken
// chain is a 200 with valid=false.
func (h *Handler) HandleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.service.VerifyLedger(ctx)
	if err != nil {
		h.logFailure(ctx, "verify ledger failed", request.GetRequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerifyResponse(res))
}

// HandleSubmitOverride applies an approver override.
func (h *Handler) HandleSubmitOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	tx, err := h.service.SubmitOverride(ctx, req.toService())
	if err != nil {
		h.logFailure(ctx, "override failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "override submitted",
		"request_id", requestID,
		"transaction_id", tx.ID,
		"approver", req.Approver,
		"final_status", tx.FinalStatus,
	)
	httputil.WriteJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// logFailure logs client errors at warn and faults at error.
func (h *Handler) logFailure(ctx context.Context, msg, requestID string, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
}
