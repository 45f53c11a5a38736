package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"seller-portal/internal/auth"
	"seller-portal/internal/logger"
	"seller-portal/internal/models"
	"seller-portal/internal/order"
	"seller-portal/internal/sse"
	"seller-portal/internal/utils"
	"seller-portal/internal/workflow"
)

// maxBodyBytes bounds request bodies; pickup assignments are the largest.
const maxBodyBytes = 64 << 10

type Handler struct {
	OrderService *order.OrderService
	Hub          *sse.Hub
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, hub *sse.Hub, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Hub:          hub,
		Logger:       log,
	}
}

// RegisterRoutes expects auth.Middleware to have run already.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.ListMyOrders)
	r.Post("/orders/accept", h.AcceptOrder)
	r.Post("/orders/mark-dispatched", h.MarkDispatched)
	r.Get("/orders/invoice", h.GetInvoice)
	r.Get("/orders/stream", h.StreamMyOrders)
	r.Get("/orders/{orderId}", h.GetOrder)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin(h.Logger))
		r.Post("/admin/assign-pickup", h.AssignPickup)
		r.Get("/admin/orders", h.ListOrders)
		r.Get("/admin/orders/stream", h.StreamAllOrders)
	})
}

func actorFrom(r *http.Request) workflow.Actor {
	id, _ := auth.FromContext(r.Context())
	return workflow.Actor{UserID: id.UserID, Admin: id.Admin}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return workflow.Invalid("", "invalid request body")
	}
	return nil
}

// writeError maps workflow failures to status codes. Anything unclassified
// is logged and reported as a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, orderID string, err error) {
	werr, ok := workflow.AsError(err)
	if !ok {
		h.Logger.Error("API", fmt.Sprintf("%s %s order=%s: %v", r.Method, r.URL.Path, orderID, err))
		utils.ErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrForbidden):
		status = http.StatusForbidden
		h.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("user %q on order %s: %s", auth.UserID(r.Context()), orderID, werr.Message))
	case errors.Is(err, workflow.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrExpired):
		status = http.StatusGone
	}
	h.Logger.Debug("API", fmt.Sprintf("%s %s order=%s rejected: %v", r.Method, r.URL.Path, orderID, err))

	utils.WriteError(w, status, models.ErrorResponse{
		Error:          werr.Message,
		CurrentStatus:  werr.Current,
		RequiredStatus: werr.Required,
		Field:          werr.Field,
	})
}

func (h *Handler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, "", err)
		return
	}

	resp, err := h.OrderService.Accept(r.Context(), actorFrom(r), req.OrderID)
	if err != nil {
		h.writeError(w, r, req.OrderID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) AssignPickup(w http.ResponseWriter, r *http.Request) {
	var req models.AssignPickupRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, "", err)
		return
	}

	resp, err := h.OrderService.AssignPickup(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeError(w, r, req.OrderID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) MarkDispatched(w http.ResponseWriter, r *http.Request) {
	var req models.OrderIDRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, "", err)
		return
	}

	resp, err := h.OrderService.MarkDispatched(r.Context(), actorFrom(r), req.OrderID)
	if err != nil {
		h.writeError(w, r, req.OrderID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

// GetInvoice streams the billing slip, or returns the invoice record when
// format=json.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")

	doc, err := h.OrderService.Invoice(r.Context(), actorFrom(r), orderID)
	if err != nil {
		h.writeError(w, r, orderID, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		utils.WriteJSON(w, http.StatusOK, models.InvoiceResponse{OK: true, Invoice: doc.Order.Invoice})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.PDF)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.PDF); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetInvoice: write failed for order %s: %v", orderID, err))
	}
}

type orderDetailResponse struct {
	OK    bool          `json:"ok"`
	Order *models.Order `json:"order"`
	View  workflow.View `json:"view"`
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	o, view, err := h.OrderService.GetOrder(r.Context(), actorFrom(r), orderID)
	if err != nil {
		h.writeError(w, r, orderID, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orderDetailResponse{OK: true, Order: o, View: view})
}

type orderListResponse struct {
	OK     bool                  `json:"ok"`
	Orders []models.OrderSummary `json:"orders"`
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.OrderService.ListMerchantOrders(r.Context(), actorFrom(r), queryLimit(r))
	if err != nil {
		h.writeError(w, r, "", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orderListResponse{OK: true, Orders: orders})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := models.WorkflowStatus(r.URL.Query().Get("status"))

	orders, err := h.OrderService.ListOrdersForAdmin(r.Context(), actorFrom(r), status, queryLimit(r))
	if err != nil {
		h.writeError(w, r, "", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orderListResponse{OK: true, Orders: orders})
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
