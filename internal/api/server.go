package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/metering/internal/api/handler"
	mw "github.com/edvin/metering/internal/api/middleware"
	"github.com/edvin/metering/internal/metrics"
)

// Services are the operations the API exposes.
type Services struct {
	Collection  handler.Collector
	Usage       handler.UsageReader
	SalesOrders handler.SalesOrders
}

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services Services
	adminKey string
	checks   map[string]metrics.ReadyFunc
}

// NewServer builds the router. checks are run by /readyz, keyed by the name
// reported in its body.
func NewServer(logger zerolog.Logger, services Services, adminKey string, checks map[string]metrics.ReadyFunc) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		adminKey: adminKey,
		checks:   checks,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.AdminKey(s.adminKey))

		collection := handler.NewCollection(s.services.Collection)
		r.Get("/last_collected", collection.LastCollected)
		r.Post("/collect_usage", collection.CollectUsage)

		usage := handler.NewUsage(s.services.Usage)
		r.Get("/get_usage", usage.Get)

		salesOrder := handler.NewSalesOrder(s.services.SalesOrders)
		r.Post("/sales_order", salesOrder.Commit)
		r.Post("/sales_draft", salesOrder.Draft)
		r.Post("/sales_historic", salesOrder.Historic)
		r.Post("/sales_range", salesOrder.Range)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := map[string]string{}
	healthy := true
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
