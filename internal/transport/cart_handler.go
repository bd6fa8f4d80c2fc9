package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AddCartItemRequest struct {
	ProductID       uuid.UUID              `json:"product_id" validate:"required"`
	Quantity        int                    `json:"quantity" validate:"required,gte=1,lte=999"`
	SelectedOptions domain.SelectedOptions `json:"selected_options"`
}

// UpdateCartItemRequest changes a line's quantity and, when present, its options
type UpdateCartItemRequest struct {
	Quantity        int                     `json:"quantity" validate:"required,gte=1,lte=999"`
	SelectedOptions *domain.SelectedOptions `json:"selected_options"`
}

type ClearCartResponse struct {
	RemovedItems int64 `json:"removed_items"`
}

// CartHandler serves the caller's own cart
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

func (h *CartHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(guards.Authenticated)
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{id}", h.UpdateItem)
		r.Delete("/items/{id}", h.RemoveItem)
	})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.cartService.GetCart(r.Context(), userID)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// AddItem merges into an existing line with the same options
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var req AddCartItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	item, err := h.cartService.AddItem(r.Context(), userID, service.CartItemInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		SelectedOptions: req.SelectedOptions,
	})
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, item)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	itemID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	var req UpdateCartItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	item, err := h.cartService.UpdateItem(r.Context(), userID, itemID, req.Quantity, req.SelectedOptions)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	itemID, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	if err := h.cartService.RemoveItem(r.Context(), userID, itemID); err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	removed, err := h.cartService.ClearCart(r.Context(), userID)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ClearCartResponse{RemovedItems: removed})
}
