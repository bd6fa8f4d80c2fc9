package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UpdateStatusRequest moves an order to a new status. A missing admin_notes
// keeps the existing note.
type UpdateStatusRequest struct {
	Status     string  `json:"status" validate:"required"`
	AdminNotes *string `json:"admin_notes" validate:"omitempty,max=2000"`
}

// OrderHandler serves checkout, order history and the admin order desk
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(guards.Authenticated)
		r.Post("/checkout", h.Checkout)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(guards.Admin)
			r.Get("/all", h.ListAllOrders)
			r.Get("/{id}", h.AdminGetOrder)
			r.Put("/{id}/status", h.UpdateStatus)
		})
	})
}

// Checkout turns the caller's cart into a Pending order
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.orderService.Checkout(r.Context(), userID)
	if err != nil {
		h.logger.Debug("Checkout rejected", zap.String("user_id", userID.String()), zap.Error(err))
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("total", order.Total.StringFixed(2)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orderService.ListUserOrders(r.Context(), userID)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// GetOrder returns one of the caller's orders. Admins may read any order here.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	order, err := h.orderService.GetUserOrder(r.Context(), middleware.GetViewer(r.Context()), id)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// ListAllOrders handles GET /orders/admin/all?status=...
func (h *OrderHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	var filter domain.OrderFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			middleware.RespondWithServiceError(w, r, err, h.logger)
			return
		}
		filter.Status = &status
	}

	orders, err := h.orderService.ListAllOrders(r.Context(), filter)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	var req UpdateStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), id, status, req.AdminNotes)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("Order status updated",
		zap.String("order_id", id.String()),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
