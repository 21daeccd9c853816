package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/swaggo/swag"
	"go.uber.org/zap"

	_ "driftwatch/docs"
	"driftwatch/internal/cache"
	"driftwatch/internal/catalog"
	"driftwatch/internal/metrics"
	"driftwatch/internal/repository"
	"driftwatch/internal/service"
	"driftwatch/internal/transport/rest/handler"
	"driftwatch/internal/transport/rest/middleware"
	"driftwatch/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService  *service.AuthService
	Orchestrator *service.OrchestratorService
	Aggregator   *service.AggregatorService
	Store        repository.ScoreStore
	Sessions     repository.SessionStore
	Catalog      *catalog.Catalog
	DriftBoard   cache.DriftBoardCache // nil without Redis
	WSHub        *ws.Hub
	Metrics      *metrics.Metrics
	Log          *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	modelHandler := handler.NewModelHandler(c.Orchestrator, c.Store, c.Aggregator)
	changeHandler := handler.NewChangeHandler(c.Store, c.DriftBoard)
	analyticsHandler := handler.NewAnalyticsHandler(c.Aggregator)
	sessionHandler := handler.NewSessionHandler(c.Orchestrator, c.Sessions)
	catalogHandler := handler.NewCatalogHandler(c.Catalog)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.Log)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)
	r.Use(middleware.RequestLogger(c.Log, c.Metrics))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.Handle("/metrics", c.Metrics.Handler()).Methods("GET")

	r.HandleFunc("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket route (token in query param)
	v1.HandleFunc("/ws/live", wsHandler.Live).Methods("GET")

	// Operator routes
	op := v1.NewRoute().Subrouter()
	op.Use(authMW.RequireOperator)

	op.HandleFunc("/auth/me", authHandler.Me).Methods("GET", "OPTIONS")

	op.HandleFunc("/models", modelHandler.List).Methods("GET", "OPTIONS")
	op.HandleFunc("/models/{model}/summary", modelHandler.Summary).Methods("GET", "OPTIONS")
	op.HandleFunc("/models/{model}/anomalies", modelHandler.Anomalies).Methods("GET", "OPTIONS")
	op.HandleFunc("/models/{model}/prompts/{promptId}/records", modelHandler.Records).Methods("GET", "OPTIONS")
	op.HandleFunc("/models/{model}/prompts/{promptId}/latest", modelHandler.Latest).Methods("GET", "OPTIONS")

	op.HandleFunc("/changes", changeHandler.List).Methods("GET", "OPTIONS")
	op.HandleFunc("/changes/top", changeHandler.Top).Methods("GET", "OPTIONS")

	op.HandleFunc("/analytics/heatmap", analyticsHandler.Heatmap).Methods("GET", "OPTIONS")
	op.HandleFunc("/analytics/correlation", analyticsHandler.Correlation).Methods("GET", "OPTIONS")

	op.HandleFunc("/sessions", sessionHandler.List).Methods("GET", "OPTIONS")
	op.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET", "OPTIONS")

	op.HandleFunc("/catalog", catalogHandler.List).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
