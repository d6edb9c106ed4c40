package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/rbx-watch/internal/config"
	"github.com/yegors/rbx-watch/internal/storage/sqlite"
	"github.com/yegors/rbx-watch/internal/tracker"
	"github.com/yegors/rbx-watch/internal/websocket"
	"github.com/yegors/rbx-watch/pkg/logger"
)

// Router handles HTTP routing
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	config   *config.Config
	logger   *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(trackerService *tracker.Service, store *sqlite.Store, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server, startedAt time.Time) *Router {
	return &Router{
		handler:  NewHandler(trackerService, store, cfg, log, startedAt),
		wsServer: wsServer,
		config:   cfg,
		logger:   log.Named("api-router"),
	}
}

// Routes builds the route tree
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/presence", rt.handler.GetPresence)
		r.Get("/status", rt.handler.GetStatus)
		r.Get("/events", rt.handler.GetEvents)
		r.Get("/health", rt.handler.GetHealth)

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", rt.handler.GetWatchlist)
			r.Post("/", rt.handler.AddWatchlistEntry)
			r.Delete("/{id}", rt.handler.RemoveWatchlistEntry)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws", rt.wsServer.HandleConnection)

	// Everything else is the dashboard, when one is configured
	if rt.config.Server.StaticFilesDir != "" {
		staticHandler := NewStaticFileHandler(rt.config.Server.StaticFilesDir, rt.logger)
		r.NotFound(staticHandler.ServeHTTP)
	}

	return r
}

// logRequests logs each request once it completes
func (rt *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Debug("Request handled",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Duration("duration", time.Since(start)),
		)
	})
}
