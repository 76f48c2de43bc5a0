package router

import (
	"net/http"

	"foodorder/internal/handler"
	"foodorder/internal/identity"
	"foodorder/internal/middleware"
	"foodorder/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Menu  *handler.MenuHandler
	Cart  *handler.CartHandler
	Order *handler.OrderHandler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, resolver identity.Resolver, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Applied in order: Recovery -> CorrelationID -> Logging -> CORS
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(resolver, logger))

		r.Get("/menu/{id}", h.Menu.GetByID)

		r.Route("/branches/{branchID}", func(r chi.Router) {
			r.Get("/menu", h.Menu.ListByBranch)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleCustomer))

				r.Get("/cart", h.Cart.Get)
				r.Delete("/cart", h.Cart.Clear)
				r.Put("/cart/items/{menuItemID}", h.Cart.PutItem)
				r.Delete("/cart/items/{menuItemID}", h.Cart.DeleteItem)
				r.Post("/orders", h.Order.Place)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Order.List)
			r.Get("/{id}", h.Order.GetByID)
			r.Get("/{id}/events", h.Order.Events)
			r.Post("/{id}/transitions", h.Order.Transition)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleDeliveryman))

				r.Post("/{id}/claim", h.Order.Claim)
				r.Post("/{id}/complete", h.Order.Complete)
			})
		})
	})

	return r
}
