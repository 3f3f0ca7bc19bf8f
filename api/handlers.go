/*
handlers.go - HTTP API handlers for the receive reconciliation engine

PURPOSE:
  Exposes reconcile.Service via REST. Handles HTTP request/response, JSON
  serialization and delegates everything else to the service.

ENDPOINTS:
  Receives:
    POST   /api/receives                      Submit a receive (201)
    GET    /api/shipments/{id}/receives       Receives of a shipment
    GET    /api/receives/{id}/diffs           Diffs of a receive

  Diffs:
    GET    /api/diffs/pending                 All pending diffs
    POST   /api/diffs/{id}/resolve            Manual acknowledgement

  Abnormal:
    POST   /api/abnormal/process              Apply M1-M4 corrections
    DELETE /api/abnormal/{logisticNum}        Close out (?receiveDate=)
    GET    /api/abnormal                      List (?status=)
    GET    /api/abnormal/{logisticNum}        Detail + summary
    GET    /api/abnormal/{logisticNum}/history Event trail

  Ledger:
    GET    /api/fifo/layers                   Cost layers (?sku=)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate shape (validator tags)
  3. Call reconcile.Service with the authenticated operator
  4. Serialize response
  5. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found, diff already resolved
  - 409: Conflict (event sequence race, lock busy)
  - 500: Internal errors (logged, details withheld)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/receive-engine/lock"
	"github.com/warp/receive-engine/reconcile"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	svc      *reconcile.Service
	logger   *zap.Logger
	validate *validator.Validate

	// ping reports storage health for /healthz.
	ping func(ctx context.Context) error
}

func NewHandler(svc *reconcile.Service, logger *zap.Logger, ping func(ctx context.Context) error) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:      svc,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		ping:     ping,
	}
}

// =============================================================================
// RECEIVES
// =============================================================================

func (h *Handler) SubmitReceive(w http.ResponseWriter, r *http.Request) {
	var req SubmitReceiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	receives, err := h.svc.SubmitReceive(r.Context(), req.toSubmission(OperatorFrom(r.Context())))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receives)
}

func (h *Handler) ListShipmentReceives(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	receives, err := h.svc.ReceivesByShipment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receives)
}

func (h *Handler) ListReceiveDiffs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	diffs, err := h.svc.DiffsByReceive(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diffs)
}

// =============================================================================
// DIFFS
// =============================================================================

func (h *Handler) ListPendingDiffs(w http.ResponseWriter, r *http.Request) {
	diffs, err := h.svc.PendingDiffs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diffs)
}

func (h *Handler) ResolveDiff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ResolveDiffRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.svc.ResolveDiff(r.Context(), id, req.ResolutionNote)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// =============================================================================
// ABNORMAL
// =============================================================================

func (h *Handler) ProcessAbnormal(w http.ResponseWriter, r *http.Request) {
	var req ProcessAbnormalRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.ProcessAbnormal(r.Context(), req.toRequest(OperatorFrom(r.Context())))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteAbnormal(w http.ResponseWriter, r *http.Request) {
	var receiveDate *Date
	if raw := r.URL.Query().Get("receiveDate"); raw != "" {
		t, err := ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid receiveDate", err)
			return
		}
		receiveDate = &Date{Time: t}
	}

	res, err := h.svc.DeleteAbnormal(r.Context(), chi.URLParam(r, "logisticNum"), receiveDate.ptr(), OperatorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListAbnormal(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAbnormal(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetAbnormalDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.AbnormalDetail(r.Context(), chi.URLParam(r, "logisticNum"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) GetAbnormalHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.History(r.Context(), chi.URLParam(r, "logisticNum"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// =============================================================================
// LEDGER / HEALTH
// =============================================================================

func (h *Handler) ListFifoLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := h.svc.FifoLayers(r.Context(), r.URL.Query().Get("sku"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, layers)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and runs the validator tags. On failure
// the response is written and false returned.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "Validation failed",
				Fields: validationFields(verrs),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func validationFields(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}

// fail maps a service error to its HTTP status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case reconcile.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case reconcile.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case reconcile.IsConflict(err), errors.Is(err, lock.ErrNotObtained):
		writeError(w, http.StatusConflict, "Conflict, retry the request", err)
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
