package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
	"github.com/vasiliy-maslov/inventory-service/internal/money"
)

type ProductRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	SKU         string           `json:"sku" validate:"required,max=64"`
	Category    string           `json:"category" validate:"max=255"`
	Quantity    int              `json:"quantity" validate:"gte=0"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Description string           `json:"description"`
}

func (p ProductRequest) toProduct(id uuid.UUID) *inventory.Product {
	return &inventory.Product{
		ID:          id,
		Name:        p.Name,
		SKU:         p.SKU,
		Category:    p.Category,
		Quantity:    p.Quantity,
		Price:       *p.Price,
		Description: p.Description,
	}
}

type ProductResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Category    string    `json:"category"`
	Quantity    int       `json:"quantity"`
	Price       string    `json:"price"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProductResponse(p *inventory.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		SKU:         p.SKU,
		Category:    p.Category,
		Quantity:    p.Quantity,
		Price:       money.Format(p.Price),
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type ProductHandler struct {
	service  inventory.Service
	validate *validator.Validate
}

func NewProductHandler(service inventory.Service) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *ProductHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)
	router.Post("/products", h.handleCreateProduct)
	router.Get("/products/{id}", h.handleGetProductByID)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products via service")
		respondWithServiceError(w, err, "Failed to list products")
		return
	}

	resp := make([]ProductResponse, 0, len(products))
	for i := range products {
		resp = append(resp, newProductResponse(&products[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var requestPayload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.CreateProduct(r.Context(), requestPayload.toProduct(uuid.Nil))
	if err != nil {
		log.Warn().Err(err).Str("sku", requestPayload.SKU).Msg("Failed to create product via service")
		respondWithServiceError(w, err, "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, newProductResponse(created))
}

func (h *ProductHandler) handleGetProductByID(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.service.GetProductByID(r.Context(), productID)
	if err != nil {
		log.Warn().Err(err).Stringer("product_id", productID).Msg("Failed to get product by id via service")
		respondWithServiceError(w, err, "Failed to get product")
		return
	}

	respondWithJSON(w, http.StatusOK, newProductResponse(found))
}

func (h *ProductHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var requestPayload ProductRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), requestPayload.toProduct(productID))
	if err != nil {
		log.Warn().Err(err).Stringer("product_id", productID).Msg("Failed to update product via service")
		respondWithServiceError(w, err, "Failed to update product")
		return
	}

	respondWithJSON(w, http.StatusOK, newProductResponse(updated))
}

func (h *ProductHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), productID); err != nil {
		log.Warn().Err(err).Stringer("product_id", productID).Msg("Failed to delete product via service")
		respondWithServiceError(w, err, "Failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
