package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vasiliy-maslov/inventory-service/internal/auth"
	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
	"github.com/vasiliy-maslov/inventory-service/internal/order"
	"github.com/vasiliy-maslov/inventory-service/internal/report"
	"github.com/vasiliy-maslov/inventory-service/internal/user"
)

const requestTimeout = 60 * time.Second

// Services groups everything the HTTP layer calls into.
type Services struct {
	Auth      auth.Service
	Users     user.Service
	Inventory inventory.Service
	Orders    order.Service
	Reports   report.Service
}

func NewRouter(services Services, allowedOrigins []string) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(CORS(allowedOrigins))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := NewAuthHandler(services.Users, services.Auth)
	orderHandler := NewOrderHandler(services.Orders)
	productHandler := NewProductHandler(services.Inventory)
	userHandler := NewUserHandler(services.Users)
	reportHandler := NewReportHandler(services.Reports)

	router.Route("/api", func(r chi.Router) {
		authHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(services.Auth))

			authHandler.RegisterRoutes(r)
			orderHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(user.RoleAdmin, user.RoleManager))
				productHandler.RegisterRoutes(r)
				reportHandler.RegisterRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(user.RoleAdmin))
				userHandler.RegisterRoutes(r)
			})
		})
	})

	return router
}
