package handlers

import (
	"net/http"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"drinkMenuAPI/internal/response"
	"drinkMenuAPI/middleware"
	"drinkMenuAPI/services"
)

// Permissions a token must carry for each guarded route.
const (
	PermReadDrinksDetail = "read:drinks-detail"
	PermCreateDrinks     = "create:drinks"
	PermUpdateDrinks     = "update:drinks"
	PermDeleteDrinks     = "delete:drinks"
)

type RouterConfig struct {
	AllowedOrigins  []string
	MetricsUser     string
	MetricsPassword string
	RequestTimeout  time.Duration
	// TrustProxy rewrites the remote address from forwarding headers.
	TrustProxy bool
}

// App is everything the route table needs, built once at startup.
type App struct {
	Config   RouterConfig
	Logger   *logrus.Logger
	Drinks   *services.DrinkService
	Verifier *middleware.Verifier
	Metrics  *middleware.Metrics
	Limiter  *middleware.RateLimiter
	Gatherer prometheus.Gatherer
}

func NewRouter(app *App) http.Handler {
	drinkHandler := NewDrinkHandler(app.Drinks, app.Logger, app.Config.RequestTimeout)
	healthHandler := NewHealthHandler(app.Drinks, app.Logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed)
	})

	r.Use(middleware.RequestLogger(app.Logger))
	r.Use(middleware.Recoverer(app.Logger))
	if app.Metrics != nil {
		r.Use(app.Metrics.Monitor)
	}
	if app.Limiter != nil {
		r.Use(app.Limiter.Middleware)
	}

	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	if app.Gatherer != nil {
		metricsAuth := middleware.BasicAuth(app.Config.MetricsUser, app.Config.MetricsPassword)
		r.Handle("/metrics", metricsAuth(promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{}))).Methods(http.MethodGet)
	}

	guard := app.Verifier.RequirePermission

	r.HandleFunc("/drinks", drinkHandler.GetDrinks).Methods(http.MethodGet)
	r.Handle("/drinks-detail", guard(PermReadDrinksDetail)(http.HandlerFunc(drinkHandler.GetDrinksDetail))).Methods(http.MethodGet)
	r.Handle("/drinks", guard(PermCreateDrinks)(http.HandlerFunc(drinkHandler.CreateDrink))).Methods(http.MethodPost)
	r.Handle("/drinks/{id:[0-9]+}", guard(PermUpdateDrinks)(http.HandlerFunc(drinkHandler.UpdateDrink))).Methods(http.MethodPatch)
	r.Handle("/drinks/{id:[0-9]+}", guard(PermDeleteDrinks)(http.HandlerFunc(drinkHandler.DeleteDrink))).Methods(http.MethodDelete)

	origins := app.Config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(origins),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
		gorillaHandlers.ExposedHeaders([]string{"X-Request-ID"}),
	)

	if !app.Config.TrustProxy {
		return cors(r)
	}
	return gorillaHandlers.ProxyHeaders(cors(r))
}
