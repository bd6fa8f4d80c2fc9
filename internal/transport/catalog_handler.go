package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the body of POST /products. Price is checked by the
// catalog service so the message matches other business errors.
type ProductRequest struct {
	CategoryID  uuid.UUID       `json:"category_id" validate:"required"`
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description"`
	Image       string          `json:"image" validate:"max=500"`
	Price       decimal.Decimal `json:"base_price"`
	Options     domain.Options  `json:"options"`
	Stock       int             `json:"stock_quantity"`
	Active      *bool           `json:"is_active"`
}

// ProductPatchRequest is the body of PUT /products/{id}
type ProductPatchRequest struct {
	CategoryID  *uuid.UUID       `json:"category_id"`
	Title       *string          `json:"title" validate:"omitempty,max=200"`
	Description *string          `json:"description"`
	Image       *string          `json:"image" validate:"omitempty,max=500"`
	Price       *decimal.Decimal `json:"base_price"`
	Options     *domain.Options  `json:"options"`
	Stock       *int             `json:"stock_quantity"`
	Active      *bool            `json:"is_active"`
}

// CatalogHandler serves categories and products
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/categories", h.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(guards.Optional)
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(guards.Authenticated, guards.Admin)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// parseProductFilter reads category_id and active. active defaults to true;
// "all" lifts the filter. Non-admins are forced back to active products by
// the catalog service whatever they ask for.
func parseProductFilter(r *http.Request) (domain.ProductFilter, error) {
	var filter domain.ProductFilter
	query := r.URL.Query()

	if raw := query.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, domain.NewValidationError("invalid category_id")
		}
		filter.CategoryID = &id
	}

	switch query.Get("active") {
	case "", "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	case "all":
	default:
		return filter, domain.NewValidationError("active must be true, false or all")
	}
	return filter, nil
}

// ListProducts handles GET /products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	products, err := h.catalogService.ListProducts(r.Context(), middleware.GetViewer(r.Context()), filter)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), middleware.GetViewer(r.Context()), id)
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalogService.CreateProduct(r.Context(), service.ProductInput{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
		Options:     req.Options,
		Stock:       req.Stock,
		Active:      req.Active,
	})
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	var req ProductPatchRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalogService.UpdateProduct(r.Context(), id, service.ProductPatch{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
		Options:     req.Options,
		Stock:       req.Stock,
		Active:      req.Active,
	})
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	if err := h.catalogService.DeleteProduct(r.Context(), id); err != nil {
		middleware.RespondWithServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}
