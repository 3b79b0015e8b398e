package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streetfoodconnect/marketplace-backend/api/controllers"
	analyticscontrollers "github.com/streetfoodconnect/marketplace-backend/api/controllers/analytics"
	ordercontrollers "github.com/streetfoodconnect/marketplace-backend/api/controllers/orders"
	"github.com/streetfoodconnect/marketplace-backend/api/middleware"
	"github.com/streetfoodconnect/marketplace-backend/internal/analytics"
	"github.com/streetfoodconnect/marketplace-backend/internal/auth"
	"github.com/streetfoodconnect/marketplace-backend/internal/inventory"
	"github.com/streetfoodconnect/marketplace-backend/internal/orders"
	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/internal/reviews"
	"github.com/streetfoodconnect/marketplace-backend/internal/search"
	"github.com/streetfoodconnect/marketplace-backend/internal/users"
	"github.com/streetfoodconnect/marketplace-backend/pkg/auth/session"
	"github.com/streetfoodconnect/marketplace-backend/pkg/config"
	"github.com/streetfoodconnect/marketplace-backend/pkg/enums"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
	"github.com/streetfoodconnect/marketplace-backend/pkg/metrics"
	pkgredis "github.com/streetfoodconnect/marketplace-backend/pkg/redis"
)

// Store backs idempotency replay and auth rate limiting.
type Store interface {
	pkgredis.IdempotencyStore
	middleware.RateLimitStore
}

// Deps carries everything the router hands to middleware and controllers.
// Nil services produce 500s from their handlers rather than missing routes.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Health   map[string]controllers.Pinger
	Store    Store
	Sessions session.AccessSessionChecker

	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Auth      auth.Service
	Register  auth.RegisterService
	Users     users.Service
	Search    search.Service
	Orders    orders.Service
	Inventory inventory.Service
	Reviews   reviews.Service
	Analytics analytics.Service
	Hub       controllers.WSServer
	Realtime  realtime.Publisher
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.Realtime.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	var (
		rateStore        middleware.RateLimitStore
		idempotencyStore pkgredis.IdempotencyStore
	)
	if d.Store != nil {
		rateStore = d.Store
		idempotencyStore = d.Store
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Health))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).
			Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.With(
			middleware.AuthRateLimit(registerPolicy, rateStore, logg),
			middleware.Idempotency(idempotencyStore, logg),
		).Post("/register", controllers.AuthRegister(d.Register, logg))
		r.Post("/logout", controllers.AuthLogout(d.Auth, d.Realtime, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
	})

	r.Route("/api/v1/session", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, d.Sessions, logg))
		r.Get("/", controllers.SessionCurrent())
		r.Get("/gate", controllers.SessionGate())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/realtime", controllers.RealtimeConnect(d.Hub, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.UserMe(d.Users, logg))
			r.Patch("/me", controllers.UserUpdateMe(d.Users, logg))
			r.Get("/{userId}", controllers.UserGet(d.Users, logg))
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", controllers.SupplierSearch(d.Search, logg))
			r.Get("/{supplierId}", controllers.SupplierProfile(d.Users, logg))
			r.Get("/{supplierId}/inventory", controllers.SupplierInventory(d.Inventory, logg))
			r.Get("/{supplierId}/reviews", controllers.SupplierReviews(d.Reviews, logg))
		})

		r.Get("/orders/{orderId}", ordercontrollers.Detail(d.Orders, logg))

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleVendor))
			r.Get("/orders", ordercontrollers.VendorList(d.Orders, logg))
			r.Post("/orders", ordercontrollers.VendorCreate(d.Orders, logg))
			r.Post("/reviews", controllers.VendorAddReview(d.Reviews, logg))
			r.Get("/analytics", analyticscontrollers.VendorSummary(d.Analytics, logg))
			r.Get("/compare", controllers.VendorCompareList(d.Search, logg))
			r.Post("/compare", controllers.VendorCompareAdd(d.Search, logg))
			r.Delete("/compare", controllers.VendorCompareClear(d.Search, logg))
			r.Delete("/compare/{supplierId}", controllers.VendorCompareRemove(d.Search, logg))
		})

		r.Route("/supplier", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleSupplier))
			r.Get("/orders", ordercontrollers.SupplierList(d.Orders, logg))
			r.Patch("/orders/{orderId}/status", ordercontrollers.SupplierUpdateStatus(d.Orders, logg))
			r.Post("/orders/{orderId}/accept", ordercontrollers.SupplierAccept(d.Orders, logg))
			r.Post("/orders/{orderId}/reject", ordercontrollers.SupplierReject(d.Orders, logg))
			r.Get("/inventory", controllers.SupplierOwnInventory(d.Inventory, logg))
			r.Post("/inventory", controllers.SupplierCreateInventoryItem(d.Inventory, logg))
			r.Patch("/inventory/{itemId}", controllers.SupplierUpdateInventoryItem(d.Inventory, logg))
			r.Delete("/inventory/{itemId}", controllers.SupplierDeleteInventoryItem(d.Inventory, logg))
			r.Get("/analytics", analyticscontrollers.SupplierSummary(d.Analytics, logg))
			r.Get("/customers", analyticscontrollers.SupplierCustomers(d.Analytics, logg))
		})
	})

	return r
}
