package payments

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/shopflow/internal/domain"
	"github.com/joao-fontenele/shopflow/internal/gateway"
)

// Handler receives the gateway's server-to-server payment notifications.
type Handler struct {
	service *Service
	gateway *gateway.Client
	logger  *slog.Logger
}

func NewHandler(service *Service, gw *gateway.Client, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		gateway: gw,
		logger:  logger,
	}
}

type callbackRequest struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

// HandleCallback verifies the callback signature before anything else touches
// order state. A bad signature is treated as a potential security event, not a
// transient failure: it is logged and rejected, and the gateway is told via an
// error status so its retry policy applies only to genuine failures.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Data == "" || req.Signature == "" {
		h.writeError(w, http.StatusBadRequest, "data and signature are required")
		return
	}

	if !h.gateway.VerifyCallback(req.Data, req.Signature) {
		h.logger.Warn("callback signature mismatch", "remote_addr", r.RemoteAddr)
		h.writeError(w, http.StatusForbidden, domain.ErrBadSignature.Error())
		return
	}

	payload, err := h.gateway.DecodePayload(req.Data)
	if err != nil {
		h.logger.Warn("undecodable callback payload", "error", err)
		h.writeError(w, http.StatusBadRequest, domain.ErrMalformedPayload.Error())
		return
	}

	err = h.service.UpdatePaymentStatus(r.Context(), payload.OrderID, payload.TransactionID, payload.Status, payload.ErrDescription)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to apply payment callback", "error", err, "order_id", payload.OrderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("payment callback processed", "order_id", payload.OrderID, "status", payload.Status)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
