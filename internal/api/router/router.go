package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/bloodlab-platform/internal/analytics"
	"github.com/wolfman30/bloodlab-platform/internal/auth"
	"github.com/wolfman30/bloodlab-platform/internal/blog"
	"github.com/wolfman30/bloodlab-platform/internal/booking"
	"github.com/wolfman30/bloodlab-platform/internal/cart"
	"github.com/wolfman30/bloodlab-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/bloodlab-platform/internal/http/middleware"
	"github.com/wolfman30/bloodlab-platform/internal/payments"
	"github.com/wolfman30/bloodlab-platform/internal/reminders"
	"github.com/wolfman30/bloodlab-platform/internal/reports"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes unmounted.
type Config struct {
	Logger *logging.Logger
	Gate   *auth.Gate

	AuthHandler      *auth.Handler
	CartHandler      *cart.Handler
	BookingHandler   *booking.Handler
	CatalogHandler   *handlers.CatalogHandler
	PaymentsHandler  *payments.Handler
	AnalyticsHandler *analytics.Handler
	BlogHandler      *blog.Handler
	ReportsHandler   *reports.Handler

	AdminReports       *reports.Handler
	AdminUsers         *handlers.AdminUsersHandler
	AdminDashboard     *handlers.AdminDashboardHandler
	AdminNotifications *handlers.AdminNotificationsHandler
	RemindersHandler   *reminders.Handler

	// AuthLimiter throttles OTP and password attempts per client IP.
	AuthLimiter        *httpmiddleware.RateLimiter
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.Gate != nil {
		r.Use(cfg.Gate.Middleware)
	}

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.AuthHandler != nil {
		var authLimit func(http.Handler) http.Handler
		if cfg.AuthLimiter != nil {
			authLimit = httpmiddleware.RateLimit(cfg.AuthLimiter)
		}
		r.Route("/api/auth", func(r chi.Router) { cfg.AuthHandler.Routes(r, authLimit) })
		r.Post("/api/signup", cfg.AuthHandler.Signup)
		r.Post("/signup", cfg.AuthHandler.Signup)
		r.With(auth.RequireUser).Get("/api/me", cfg.AuthHandler.Me)
	}

	if cfg.CatalogHandler != nil {
		r.Route("/api/tests", cfg.CatalogHandler.Routes)
	}
	if cfg.CartHandler != nil {
		r.Route("/api/cart", cfg.CartHandler.Routes)
	}
	if cfg.BookingHandler != nil || cfg.ReportsHandler != nil {
		r.Route("/api/bookings", func(r chi.Router) {
			if cfg.BookingHandler != nil {
				cfg.BookingHandler.Routes(r)
			}
			if cfg.ReportsHandler != nil {
				cfg.ReportsHandler.Routes(r)
			}
		})
	}
	if cfg.PaymentsHandler != nil {
		r.Route("/api/pay", cfg.PaymentsHandler.Routes)
	}
	if cfg.AnalyticsHandler != nil {
		r.With(auth.RequireUser).Get("/api/healthscore/{userID}", cfg.AnalyticsHandler.HealthScore)
	}
	if cfg.BlogHandler != nil {
		r.Get("/api/blogs", cfg.BlogHandler.List)
		r.Get("/blog/{slug}", cfg.BlogHandler.Post)
	}

	// Admin routes (protected by JWT)
	r.Route("/api/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.AdminDashboard != nil {
			admin.Get("/dashboard", cfg.AdminDashboard.GetDashboardOverview)
		}
		if cfg.BookingHandler != nil || cfg.AdminReports != nil {
			admin.Route("/bookings", func(r chi.Router) {
				if cfg.BookingHandler != nil {
					cfg.BookingHandler.AdminRoutes(r)
				}
				if cfg.AdminReports != nil {
					cfg.AdminReports.Routes(r)
				}
			})
		}
		if cfg.AdminUsers != nil {
			admin.Route("/users", cfg.AdminUsers.Routes)
		}
		if cfg.CatalogHandler != nil {
			admin.Route("/tests", cfg.CatalogHandler.AdminRoutes)
		}
		if cfg.AnalyticsHandler != nil {
			admin.Route("/analytics", cfg.AnalyticsHandler.AdminRoutes)
		}
		if cfg.RemindersHandler != nil {
			admin.Route("/reminders", cfg.RemindersHandler.Routes)
		}
		if cfg.AdminNotifications != nil {
			admin.Post("/notifications/test", cfg.AdminNotifications.SendTest)
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
