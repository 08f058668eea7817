package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/auth"
	"github.com/vasiliy-maslov/inventory-service/internal/user"
)

const tokenName = "api"

type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,min=2,max=255"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

type AuthHandler struct {
	users    user.Service
	tokens   auth.Service
	validate *validator.Validate
}

func NewAuthHandler(users user.Service, tokens auth.Service) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tokens:   tokens,
		validate: newValidator(),
	}
}

// RegisterPublicRoutes mounts the endpoints that do not need a token.
func (h *AuthHandler) RegisterPublicRoutes(router chi.Router) {
	router.Post("/register", h.handleRegister)
	router.Post("/login", h.handleLogin)
}

// RegisterRoutes mounts the endpoints that run behind Authenticate.
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Post("/logout", h.handleLogout)
	router.Get("/user", h.handleCurrentUser)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var requestPayload RegisterRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.users.CreateUser(r.Context(), &user.User{
		Name:         requestPayload.Name,
		Email:        requestPayload.Email,
		PasswordHash: requestPayload.Password,
		Role:         user.RoleStaff,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to register user via service")
		respondWithServiceError(w, err, "Failed to register user")
		return
	}

	token, err := h.tokens.IssueToken(r.Context(), created, tokenName)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", created.ID).Msg("Failed to issue token after registration")
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusCreated, TokenResponse{User: newUserResponse(created), Token: token})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var requestPayload LoginRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	authenticated, err := h.users.Authenticate(r.Context(), requestPayload.Email, requestPayload.Password)
	if err != nil {
		log.Warn().Err(err).Msg("Failed login attempt")
		respondWithServiceError(w, err, "Failed to log in")
		return
	}

	token, err := h.tokens.IssueToken(r.Context(), authenticated, tokenName)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", authenticated.ID).Msg("Failed to issue token on login")
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, TokenResponse{User: newUserResponse(authenticated), Token: token})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Revoke(r.Context(), bearerToken(r)); err != nil {
		log.Error().Err(err).Msg("Failed to revoke token")
		respondWithServiceError(w, err, "Failed to log out")
		return
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	respondWithJSON(w, http.StatusOK, principal)
}
