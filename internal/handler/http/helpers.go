package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/auth"
	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
	"github.com/vasiliy-maslov/inventory-service/internal/order"
	"github.com/vasiliy-maslov/inventory-service/internal/user"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, inventory.ErrValidation),
		errors.Is(err, user.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidStatusTransition),
		errors.Is(err, inventory.ErrSKUExists),
		errors.Is(err, user.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage picks the text shown to the caller. Domain errors are safe to
// expose; anything else is replaced by fallback.
func clientMessage(err error, fallback string) string {
	var stockErr *order.InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.Error()
	}

	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, inventory.ErrNotFound):
		return "Product not found"
	case errors.Is(err, user.ErrNotFound):
		return "User not found"
	case errors.Is(err, inventory.ErrSKUExists):
		return "SKU already exists"
	case errors.Is(err, user.ErrEmailExists):
		return "Email already exists"
	case errors.Is(err, user.ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, auth.ErrUnauthenticated):
		return "Unauthenticated"
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, order.ErrInvalidStatusTransition),
		errors.Is(err, inventory.ErrValidation),
		errors.Is(err, user.ErrValidation):
		return err.Error()
	}
	return fallback
}

func respondWithServiceError(w http.ResponseWriter, err error, fallback string) {
	respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, fallback))
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "email":
			msg = "must be a valid email address"
		case "min":
			if fe.Kind() == reflect.String {
				msg = fmt.Sprintf("must be at least %s characters long", fe.Param())
			} else if fe.Kind() == reflect.Slice {
				msg = fmt.Sprintf("must contain at least %s item(s)", fe.Param())
			} else {
				msg = fmt.Sprintf("must be at least %s", fe.Param())
			}
		case "gte":
			msg = fmt.Sprintf("must be greater than or equal to %s", fe.Param())
		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", fe.Param())
		case "eqfield":
			msg = "does not match"
		default:
			msg = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		}
		details[field] = msg
	}
	return details
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, validate *validator.Validate, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return false
	}

	return true
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}
