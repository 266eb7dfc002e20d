package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"sentrydesk/internal/apierr"
	"sentrydesk/internal/types"
)

// handleHealthz handles the liveness probe.
func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	resp := types.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReadyz handles the readiness probe, consulting whatever
// collaborator checks were wired in at startup (store connectivity,
// policy document freshness).
func (r *Router) handleReadyz(w http.ResponseWriter, req *http.Request) {
	checks := r.ready()
	if checks == nil {
		checks = map[string]string{}
	}

	allOK := true
	for _, status := range checks {
		if status != "ok" {
			allOK = false
			break
		}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	resp := types.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
	writeJSON(w, httpStatus, resp)
}

// handleEvaluateLogin is the decision core's single externally visible
// operation: validate the inbound InputContext, run it through the
// decision flow, and render the five allowed response fields. No
// internal score, factor tag, or agent identity ever reaches the
// response body (spec §7).
func (r *Router) handleEvaluateLogin(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	requestID := middleware.GetReqID(ctx)

	body, err := io.ReadAll(io.LimitReader(req.Body, r.maxBytes))
	if err != nil {
		r.writeAPIError(w, http.StatusBadRequest, apierr.Validation("failed to read request body: %v", err), requestID)
		return
	}

	var evalReq types.EvaluateLoginRequest
	if err := json.Unmarshal(body, &evalReq); err != nil {
		r.writeAPIError(w, http.StatusBadRequest, apierr.Validation("invalid JSON: %v", err), requestID)
		return
	}

	if err := r.validator.Struct(evalReq.InputContext); err != nil {
		r.writeAPIError(w, http.StatusBadRequest, apierr.Validation("invalid input context: %v", err), requestID)
		return
	}
	if crossErrs := evalReq.InputContext.CrossFieldErrors(); len(crossErrs) > 0 {
		r.writeAPIError(w, http.StatusBadRequest, apierr.Validation("inconsistent identifiers: %v", crossErrs), requestID)
		return
	}

	outcome, err := r.flow.Evaluate(ctx, evalReq.InputContext)
	if err != nil {
		r.logger.Error("decision flow failed",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			r.writeAPIError(w, http.StatusInternalServerError, apiErr, requestID)
			return
		}
		r.writeAPIError(w, http.StatusInternalServerError, apierr.Wrap(apierr.CodeAgent, "evaluation failed", err), requestID)
		return
	}

	writeJSON(w, http.StatusOK, outcome.Response)
}

// writeAPIError renders err as the typed ErrorResponse of spec §7.
func (r *Router) writeAPIError(w http.ResponseWriter, status int, err *apierr.Error, requestID string) {
	resp := types.ErrorResponse{
		Code:      string(err.Code),
		Message:   err.Message,
		RequestID: requestID,
	}
	writeJSON(w, status, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
