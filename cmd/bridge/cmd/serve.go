package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opengovern/resilient-bridge/v2/adapters"
	"github.com/opengovern/resilient-bridge/v2/webhook"
)

// ErrNoWebhookProviders is returned when the configuration mounts no provider.
var ErrNoWebhookProviders = errors.New("no webhook provider is enabled")

func newServeCmd(global *globalOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive provider webhooks",
		Long: `Start the webhook receiver.

Every enabled provider is reachable at POST {BRIDGE_WEBHOOK_PATH}/{provider}.
POST {BRIDGE_WEBHOOK_PATH}/ picks the provider from the request headers or body.
Prometheus metrics are served at /metrics and a liveness probe at /healthz.

Providers without a secret are skipped unless BRIDGE_ALLOW_UNSIGNED is set.`,
		Example: `  GITHUB_WEBHOOK_SECRET=s3cret bridge serve
  bridge serve --addr :9000 --env-file prod.env`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(global.envFiles...)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return runServe(cmd.Context(), cfg, newLogger(cfg, global.verbose))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides BRIDGE_ADDR)")
	return cmd
}

func runServe(ctx context.Context, cfg Config, logger *log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	handler, err := NewServer(cfg, logger, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Addr).Info("Webhook receiver listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down webhook receiver")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// NewServer builds the HTTP handler: the webhook router, /metrics and /healthz.
// Collectors are registered on reg.
func NewServer(cfg Config, logger *log.Logger, reg *prometheus.Registry) (http.Handler, error) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt, err := newWebhookRouter(cfg, logger, webhook.NewMetrics(reg))
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Route(cfg.WebhookPath, rt.RegisterRoutes)
	return r, nil
}

func newWebhookRouter(cfg Config, logger *log.Logger, metrics *webhook.Metrics) (*webhook.Router, error) {
	entry := logger.WithField("component", "webhook")
	rt := webhook.NewRouter()
	mounted := 0
	for _, p := range adapters.WebhookProviders(cfg.Webhooks.secrets()) {
		if !cfg.mounts(p.Name()) {
			continue
		}
		if !signed(p) && !cfg.AllowUnsigned {
			entry.WithField("provider", p.Name()).Info("Skipping webhook provider without a secret")
			continue
		}
		rt.Add(webhook.NewDispatcher(p,
			webhook.WithLogger(entry),
			webhook.WithMetrics(metrics),
			webhook.WithContinueOnError(cfg.ContinueOnError),
		))
		mounted++
	}
	if mounted == 0 {
		return nil, ErrNoWebhookProviders
	}
	return rt, nil
}

func signed(p webhook.Provider) bool {
	v := p.Verifier()
	return v != nil && v.Configured()
}

// requestLogger logs every request once it has been answered.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				return
			}
			logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("Handled request")
		})
	}
}
