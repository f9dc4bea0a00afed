package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type placeOrderRequest struct {
	UserID         int64   `json:"user_id"`
	DeliveryMethod int     `json:"delivery_method"`
	PaymentMethod  int     `json:"payment_method"`
	AddressID      int64   `json:"address_id"`
	Discount       *string `json:"discount,omitempty"`
	Items          []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

// Wire ordinals for the method enums, matching what the clients send.
var deliveryMethods = []domain.DeliveryMethod{
	domain.DeliveryMethodPickup,
	domain.DeliveryMethodCourier,
	domain.DeliveryMethodPost,
}

var paymentMethods = []domain.PaymentMethod{
	domain.PaymentMethodCash,
	domain.PaymentMethodCard,
}

func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DeliveryMethod < 0 || req.DeliveryMethod >= len(deliveryMethods) {
		h.writeError(w, http.StatusBadRequest, "unknown delivery method")
		return
	}
	if req.PaymentMethod < 0 || req.PaymentMethod >= len(paymentMethods) {
		h.writeError(w, http.StatusBadRequest, "unknown payment method")
		return
	}

	discount := decimal.Zero
	if req.Discount != nil {
		var err error
		discount, err = decimal.NewFromString(*req.Discount)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid discount")
			return
		}
	}

	svcReq := PlaceOrderRequest{
		UserID:         req.UserID,
		DeliveryMethod: deliveryMethods[req.DeliveryMethod],
		PaymentMethod:  paymentMethods[req.PaymentMethod],
		AddressID:      req.AddressID,
		Discount:       discount,
	}
	for _, item := range req.Items {
		svcReq.Items = append(svcReq.Items, ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	placement, err := h.service.PlaceOrder(r.Context(), svcReq)
	if err != nil {
		h.respondServiceError(w, err, "failed to place order")
		return
	}

	h.logger.Info("order placed", "order_id", placement.Order.ID, "user_id", req.UserID)
	h.writeJSON(w, http.StatusCreated, placement)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	userOrders, err := h.service.GetUserOrders(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err, "failed to list orders")
		return
	}

	h.writeJSON(w, http.StatusOK, userOrders)
}

func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.CancelOrder(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "failed to cancel order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.AdvanceStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, err, "failed to update order status")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// respondServiceError maps the service error taxonomy onto HTTP statuses with
// a machine-readable code and a human-readable message.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		h.writeErrorCode(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrAddressNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		h.writeErrorCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		h.writeErrorCode(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		h.writeErrorCode(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrGatewayUnavailable):
		h.writeErrorCode(w, http.StatusBadGateway, "gateway_error", err.Error())
	default:
		h.logger.Error(logMsg, "error", err)
		h.writeErrorCode(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
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

func (h *Handler) writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": code, "message": message})
}
