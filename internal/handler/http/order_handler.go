package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/auth"
	"github.com/vasiliy-maslov/inventory-service/internal/money"
	"github.com/vasiliy-maslov/inventory-service/internal/order"
)

const (
	guestName       = "Guest"
	unknownProduct  = "Unknown"
	notAvailable    = "N/A"
	orderTimeLayout = "2006-01-02 15:04:05"
)

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing completed cancelled"`
}

type OrderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	SKU         string    `json:"sku"`
	Quantity    int       `json:"quantity"`
	Price       string    `json:"price"`
	Subtotal    string    `json:"subtotal"`
}

type OrderResponse struct {
	ID         uuid.UUID           `json:"id"`
	User       string              `json:"user"`
	UserEmail  string              `json:"user_email"`
	TotalPrice string              `json:"total_price"`
	Status     string              `json:"status"`
	Items      []OrderItemResponse `json:"items"`
	CreatedAt  string              `json:"created_at"`
}

type OrderEnvelope struct {
	Message string        `json:"message"`
	Order   OrderResponse `json:"order"`
}

func newOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:         o.ID,
		User:       guestName,
		UserEmail:  notAvailable,
		TotalPrice: money.Format(o.TotalPrice),
		Status:     o.Status.String(),
		Items:      make([]OrderItemResponse, 0, len(o.Items)),
		CreatedAt:  o.CreatedAt.UTC().Format(orderTimeLayout),
	}
	if o.Owner != nil {
		resp.User = o.Owner.Name
		resp.UserEmail = o.Owner.Email
	}

	for _, item := range o.Items {
		line := OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: unknownProduct,
			SKU:         notAvailable,
			Quantity:    item.Quantity,
			Price:       money.Format(item.Price),
			Subtotal:    money.Format(item.Subtotal()),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.SKU = item.Product.SKU
		}
		resp.Items = append(resp.Items, line)
	}

	return resp
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes expects the router to run behind Authenticate.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders/{id}", h.handleGetOrderByID)
	router.Put("/orders/{id}", h.handleUpdateOrderStatus)
	router.Delete("/orders/{id}", h.handleDeleteOrder)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list orders via service")
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var requestPayload CreateOrderRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	items := make([]order.ItemRequest, 0, len(requestPayload.Items))
	for _, item := range requestPayload.Items {
		items = append(items, order.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	created, err := h.service.CreateOrder(r.Context(), principal, items)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", principal.UserID).Msg("Failed to create order via service")
		respondWithServiceError(w, err, "Failed to create order")
		return
	}

	respondWithJSON(w, http.StatusCreated, OrderEnvelope{
		Message: "Order created successfully",
		Order:   newOrderResponse(created),
	})
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", orderID).Msg("Failed to get order by id via service")
		respondWithServiceError(w, err, "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, newOrderResponse(found))
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var requestPayload UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.UpdateOrderStatus(r.Context(), orderID, order.OrderStatus(requestPayload.Status))
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", orderID).Msg("Failed to update order status via service")
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}

	respondWithJSON(w, http.StatusOK, OrderEnvelope{
		Message: "Order status updated successfully",
		Order:   newOrderResponse(updated),
	})
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(r.Context(), orderID); err != nil {
		log.Warn().Err(err).Stringer("order_id", orderID).Msg("Failed to delete order via service")
		respondWithServiceError(w, err, "Failed to delete order")
		return
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Order deleted successfully"})
}
