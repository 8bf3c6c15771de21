package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/bloodlab-platform/internal/analytics"
	"github.com/wolfman30/bloodlab-platform/internal/api/router"
	"github.com/wolfman30/bloodlab-platform/internal/app/bootstrap"
	"github.com/wolfman30/bloodlab-platform/internal/auth"
	"github.com/wolfman30/bloodlab-platform/internal/blog"
	"github.com/wolfman30/bloodlab-platform/internal/booking"
	"github.com/wolfman30/bloodlab-platform/internal/cart"
	"github.com/wolfman30/bloodlab-platform/internal/catalog"
	appconfig "github.com/wolfman30/bloodlab-platform/internal/config"
	"github.com/wolfman30/bloodlab-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/bloodlab-platform/internal/http/middleware"
	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/observability/metrics"
	"github.com/wolfman30/bloodlab-platform/internal/payments"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/internal/reminders"
	"github.com/wolfman30/bloodlab-platform/internal/reports"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

type appMetrics struct {
	booking   *metrics.BookingMetrics
	reminders *metrics.ReminderMetrics
	notify    *metrics.NotifyMetrics
}

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bloodlab API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for sessions and carts", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	if n, err := stores.Records.SeedTests(ctx); err != nil {
		logger.Error("failed to seed test catalog", "error", err)
		os.Exit(1)
	} else if n > 0 {
		logger.Info("seeded test catalog", "count", n)
	}

	metricsHandler, m := setupMetrics()
	sink, channel := bootstrap.BuildNotifySink(ctx, cfg, logger, m.notify)

	secure := cfg.IsProduction()
	sessions := auth.NewSessionStore(redisClient, cfg.SessionTTL)
	gate := auth.NewGate(sessions, logger)
	authSvc := auth.NewService(stores.Records, sessions, auth.NewOTPStore(redisClient, cfg.OTPTTL, cfg.IsProduction()), sink, logger)
	carts := cart.NewRedisStore(redisClient, stores.Records, catalog.DefaultPromos(), cfg.CartTTL)
	bookingSvc := booking.NewService(stores.Records, gate, cfg.Location(), m.booking, logger)
	analyticsSvc := analytics.NewService(stores.Analytics)

	razorpay := payments.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger)
	if razorpay == nil {
		logger.Warn("razorpay keys missing; payments fall back to UPI", "vpa", cfg.UPIVPA)
	}
	paymentsSvc := payments.NewService(stores.Records, razorpay, cfg.UPIVPA, gate, logger)

	posts := blog.New(cfg.BlogDir)
	if err := posts.Seed(); err != nil {
		logger.Warn("failed to seed blog", "dir", cfg.BlogDir, "error", err)
	}

	reportStore := setupReports(ctx, cfg, stores.Records, logger)

	scheduler := setupReminders(cfg, stores, sessions, sink, m.reminders, logger)
	var runner *reminders.Runner
	if cfg.RemindersEnabled {
		runner, err = reminders.NewRunner(scheduler, reminders.RunnerConfig{
			GenerateSchedule: cfg.ReminderGenerateSchedule,
			DispatchSchedule: cfg.ReminderDispatchSchedule,
			Location:         cfg.Location(),
		}, logger)
		if err != nil {
			logger.Error("invalid reminder schedule", "error", err)
			os.Exit(1)
		}
		runner.Start()
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Gate:               gate,
		AuthHandler:        auth.NewHandler(authSvc, logger, secure),
		CartHandler:        cart.NewHandler(carts, logger, secure),
		BookingHandler:     booking.NewHandler(bookingSvc, carts, logger, secure),
		CatalogHandler:     handlers.NewCatalogHandler(stores.Records, logger),
		PaymentsHandler:    payments.NewHandler(paymentsSvc, logger),
		AnalyticsHandler:   analytics.NewHandler(analyticsSvc, gate, logger),
		BlogHandler:        blog.NewHandler(posts, logger),
		ReportsHandler:     reports.NewHandler(reportStore, gate, logger),
		AdminReports:       reports.NewAdminHandler(reportStore, logger),
		AdminUsers:         handlers.NewAdminUsersHandler(stores.Records, logger),
		AdminDashboard:     handlers.NewAdminDashboardHandler(analyticsSvc, stores.Records, scheduler, cfg.Location(), logger),
		AdminNotifications: handlers.NewAdminNotificationsHandler(sink, channel, logger),
		RemindersHandler:   reminders.NewHandler(scheduler, logger),
		AuthLimiter:        httpmiddleware.NewRateLimiter(ctx, 0.2, 5),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin endpoints will reject every request")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if runner != nil {
		if err := runner.Stop(shutdownCtx); err != nil {
			logger.Warn("reminder runner did not stop cleanly", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, appMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := appMetrics{
		booking:   metrics.NewBookingMetrics(reg),
		reminders: metrics.NewReminderMetrics(reg),
		notify:    metrics.NewNotifyMetrics(reg),
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// setupReports returns a report store; without a bucket or AWS config every
// report call answers ErrDisabled.
func setupReports(ctx context.Context, cfg *appconfig.Config, store *records.Store, logger *logging.Logger) *reports.Store {
	if cfg.ReportsBucket == "" {
		logger.Info("report uploads disabled; REPORTS_BUCKET not set")
		return reports.NewStore(nil, "", store, logger)
	}
	awsCfg, err := bootstrap.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config; report uploads disabled", "error", err)
		return reports.NewStore(nil, "", store, logger)
	}
	return reports.NewStore(bootstrap.NewS3Client(awsCfg, cfg), cfg.ReportsBucket, store, logger)
}

func setupReminders(cfg *appconfig.Config, stores *bootstrap.Stores, sessions reminders.Sessions, sink notify.Sink, m *metrics.ReminderMetrics, logger *logging.Logger) *reminders.Scheduler {
	loc := cfg.Location()
	gen := reminders.NewGenerator(stores.Records, stores.Events, sessions, loc, m, logger)
	disp := reminders.NewDispatcher(stores.Records, stores.Events, sessions, sink, reminders.DispatcherConfig{
		SinkTimeout: cfg.ReminderSinkTimeout,
		Concurrency: cfg.ReminderDispatchConcurrency,
	}, m, logger)
	return reminders.NewScheduler(gen, disp, m, logger)
}
