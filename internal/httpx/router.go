package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pressandpolish/storefront/internal/httpx/middlewares"
)

// NewRouter assembles the storefront routes. staticDir holds the browser
// assets (checkout widget driver); pass "" to disable static serving.
func NewRouter(handler *Handler, jwtSecret, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Public catalog.
	r.Get("/products", handler.ListProducts)
	r.Get("/products/{slug}", handler.GetProduct)

	// Gateway-facing: signature is the authentication.
	r.Post("/webhooks/razorpay", handler.RazorpayWebhook)

	// Customer routes.
	r.Group(func(r chi.Router) {
		r.Use(middlewares.Auth(jwtSecret))

		r.Post("/cart/add", handler.AddCartItem)
		r.Post("/cart/validate", handler.ValidateCart)
		r.Post("/cart/create-razorpay-order", handler.Checkout)
		r.Post("/cart/verify-payment", handler.VerifyPayment)

		r.Get("/orders", handler.ListOrders)
		r.Get("/orders/{id}", handler.GetOrder)

		r.Group(func(r chi.Router) {
			r.Use(middlewares.AdminOnly)
			r.Put("/orders/{id}/status", handler.UpdateOrderStatus)
		})
	})

	if staticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	// Wrap the whole router so every request gets a server span and W3C
	// trace propagation.
	return otelhttp.NewHandler(r, "storefront")
}
