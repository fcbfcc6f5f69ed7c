package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"warden/internal/domain"
	"warden/internal/governor"
	derrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

// Service defines the governor operations the HTTP layer exposes.
type Service interface {
	InterceptChange(ctx context.Context, req governor.InterceptRequest) (*domain.ChangeRequest, error)
	ApproveChange(ctx context.Context, id, approver, reason string) (*domain.ChangeRequest, error)
	RejectChange(ctx context.Context, id, approver, reason string) (*domain.ChangeRequest, error)
	GetRequest(ctx context.Context, id string) (*domain.ChangeRequest, error)
	GetAuditTrail(ctx context.Context, q governor.TrailQuery) ([]*domain.ChangeRequest, error)
	GetPendingRequests(ctx context.Context) ([]*domain.ChangeRequest, error)
	GetSummary(ctx context.Context, since, until *time.Time) (*governor.Summary, error)
}

// Handler wires governance endpoints to the governor service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a governance handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the endpoints. requireAuth guards the resolution routes;
// interception and queries are typically called by in-cluster automation
// behind the same gateway.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/changes/intercept", h.HandleIntercept)
	r.Get("/changes", h.HandleTrail)
	r.Get("/changes/pending", h.HandlePending)
	r.Get("/changes/summary", h.HandleSummary)
	r.Get("/changes/{id}", h.HandleGet)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/changes/{id}/approve", h.HandleApprove)
		r.Post("/changes/{id}/reject", h.HandleReject)
	})
}

// HandleIntercept handles POST /changes/intercept.
func (h *Handler) HandleIntercept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InterceptRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	domainReq, err := req.ToDomain()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	change, err := h.service.InterceptChange(ctx, domainReq)
	if err != nil {
		h.logger.ErrorContext(ctx, "change interception failed",
			"request_id", requestID,
			"target_id", req.TargetID,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, change)
}

// HandleApprove handles POST /changes/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, h.service.ApproveChange, false)
}

// HandleReject handles POST /changes/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, h.service.RejectChange, true)
}

func (h *Handler) handleResolve(
	w http.ResponseWriter,
	r *http.Request,
	resolve func(ctx context.Context, id, approver, reason string) (*domain.ChangeRequest, error),
	reasonRequired bool,
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	approver := requestcontext.Actor(ctx)
	if approver == "" {
		httputil.WriteError(w, derrors.New(derrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if reasonRequired && req.Reason == "" {
		httputil.WriteError(w, derrors.New(derrors.CodeInvalidInput, "a rejection reason is required"))
		return
	}

	change, err := resolve(ctx, id, approver, req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "change resolution failed",
			"request_id", requestID,
			"change_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if change == nil {
		httputil.WriteError(w, derrors.New(derrors.CodeConflict, "request does not exist or is already resolved"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, change)
}

// HandleGet handles GET /changes/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	change, err := h.service.GetRequest(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if change == nil {
		httputil.WriteError(w, derrors.New(derrors.CodeNotFound, "unknown change request"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, change)
}

// HandleTrail handles GET /changes with filter query parameters.
func (h *Handler) HandleTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := trailQueryFromURL(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	changes, err := h.service.GetAuditTrail(ctx, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, trailResponse{Requests: changes, Count: len(changes)})
}

// HandlePending handles GET /changes/pending.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	changes, err := h.service.GetPendingRequests(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trailResponse{Requests: changes, Count: len(changes)})
}

// HandleSummary handles GET /changes/summary?since=...&until=...
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	since, err := timeParam(r, "since")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	until, err := timeParam(r, "until")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.service.GetSummary(r.Context(), since, until)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}
