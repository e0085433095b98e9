package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/leadtriage/internal/http/middleware"
	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// HealthChecker reports whether lead persistence is currently failing.
type HealthChecker interface {
	Degraded() bool
}

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	LeadsHandler    *leads.Handler
	Health          HealthChecker
	MetricsHandler  http.Handler
	AdminAuthSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Health))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.LeadsHandler != nil {
		r.Route("/admin/leads", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/", cfg.LeadsHandler.ListLeads)
			admin.Get("/stats", cfg.LeadsHandler.Stats)
			admin.Get("/{leadID}", cfg.LeadsHandler.GetLead)
			admin.Patch("/{leadID}", cfg.LeadsHandler.UpdateLead)
		})
	}

	return r
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if checker != nil && checker.Degraded() {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
