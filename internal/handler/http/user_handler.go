package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/auth"
	"github.com/vasiliy-maslov/inventory-service/internal/user"
)

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=admin manager staff"`
}

type UpdateUserRequest struct {
	Name     string  `json:"name" validate:"required,min=2,max=255"`
	Email    string  `json:"email" validate:"required,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
	Role     string  `json:"role" validate:"required,oneof=admin manager staff"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type UserHandler struct {
	service  user.Service
	validate *validator.Validate
}

func NewUserHandler(service user.Service) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Get("/users", h.handleListUsers)
	router.Post("/users", h.handleCreateUser)
	router.Get("/users/{id}", h.handleGetUserByID)
	router.Put("/users/{id}", h.handleUpdateUser)
	router.Delete("/users/{id}", h.handleDeleteUser)
}

func (h *UserHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users via service")
		respondWithServiceError(w, err, "Failed to list users")
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, newUserResponse(&users[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreateUserRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	domainUser := user.User{
		Name:         requestPayload.Name,
		Email:        requestPayload.Email,
		PasswordHash: requestPayload.Password,
		Role:         user.Role(requestPayload.Role),
	}

	createdUser, err := h.service.CreateUser(r.Context(), &domainUser)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create user via service")
		respondWithServiceError(w, err, "Failed to create user")
		return
	}

	respondWithJSON(w, http.StatusCreated, newUserResponse(createdUser))
}

func (h *UserHandler) handleGetUserByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	foundUser, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", userID).Msg("Failed to get user by id via service")
		respondWithServiceError(w, err, "Failed to get user by id")
		return
	}

	respondWithJSON(w, http.StatusOK, newUserResponse(foundUser))
}

func (h *UserHandler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var requestPayload UpdateUserRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	domainUser := user.User{
		ID:    userID,
		Name:  requestPayload.Name,
		Email: requestPayload.Email,
		Role:  user.Role(requestPayload.Role),
	}
	if requestPayload.Password != nil {
		domainUser.PasswordHash = *requestPayload.Password
	}

	updatedUser, err := h.service.UpdateUser(r.Context(), &domainUser)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to update user via service")
		respondWithServiceError(w, err, "Failed to update user")
		return
	}

	respondWithJSON(w, http.StatusOK, newUserResponse(updatedUser))
}

func (h *UserHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if principal, ok := auth.PrincipalFromContext(r.Context()); ok && principal.UserID == userID {
		respondWithError(w, http.StatusForbidden, "Cannot delete your own account")
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to delete user via service")
		respondWithServiceError(w, err, "Failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
