package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bakeshop-backend/api/controllers"
	"github.com/angelmondragon/bakeshop-backend/api/middleware"
	"github.com/angelmondragon/bakeshop-backend/internal/cart"
	"github.com/angelmondragon/bakeshop-backend/internal/catalog"
	"github.com/angelmondragon/bakeshop-backend/internal/kit"
	"github.com/angelmondragon/bakeshop-backend/pkg/config"
	"github.com/angelmondragon/bakeshop-backend/pkg/logger"
)

// Deps bundles what the router wires into controllers.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Catalog catalog.Service
	Carts   cart.Service
	Kits    kit.Service
	Health  map[string]controllers.Pinger
	// Metrics exposes /metrics when set.
	Metrics prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, deps.Health))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ProductsList(deps.Catalog, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(deps.Catalog, logg))
		r.Post("/pricing/quote", controllers.PricingQuote(deps.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.CartID(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(deps.Carts, logg))
				r.Delete("/", controllers.CartClear(deps.Carts, logg))
				r.Post("/items", controllers.CartAddItem(deps.Carts, logg))
				r.Patch("/items/quantity", controllers.CartSetQuantity(deps.Carts, logg))
				r.Patch("/items/unit-quantity", controllers.CartSetUnitQuantity(deps.Carts, logg))
				r.Delete("/items", controllers.CartRemoveItem(deps.Carts, logg))
			})
		})

		r.Route("/kits", func(r chi.Router) {
			r.Post("/", controllers.KitStart(deps.Kits, logg))
			r.Route("/{kitId}", func(r chi.Router) {
				r.Get("/", controllers.KitGet(deps.Kits, logg))
				r.Post("/items", controllers.KitSelectItem(deps.Kits, logg))
				r.Patch("/items/{index}", controllers.KitUpdateItem(deps.Kits, logg))
				r.Delete("/items/{index}", controllers.KitRemoveItem(deps.Kits, logg))
				r.Post("/next", controllers.KitNext(deps.Kits, logg))
				r.Post("/back", controllers.KitBack(deps.Kits, logg))
				r.Post("/cancel", controllers.KitCancel(deps.Kits, logg))
				r.With(middleware.CartID(logg)).Post("/complete", controllers.KitComplete(deps.Kits, logg))
			})
		})
	})

	return r
}
