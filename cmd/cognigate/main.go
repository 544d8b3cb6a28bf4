/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Cognigate is the constrained-execution-runtime control plane: rate/quota
// admission, execution context construction, active-execution tracking, and
// rule-driven escalation, exposed to the rest of the host process as Go
// packages and to operators as a small admin HTTP surface.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/cognigate/runtime/internal/config"
	"github.com/cognigate/runtime/pkg/audit"
	cbhttp "github.com/cognigate/runtime/pkg/infrastructure/http"
	"github.com/cognigate/runtime/pkg/governance/admission"
	"github.com/cognigate/runtime/pkg/governance/escalation"
	"github.com/cognigate/runtime/pkg/governance/tracker"
	"github.com/cognigate/runtime/pkg/httpapi"
	"github.com/cognigate/runtime/pkg/httpapi/middleware"
	"github.com/cognigate/runtime/pkg/notification"
	"github.com/cognigate/runtime/pkg/shared/logging"
)

func main() {
	configPath := flag.String("config", "/etc/cognigate/config.yaml", "Path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	log = log.WithName("cognigate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(err, "cognigate exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logr.Logger) error {
	reg := prometheus.NewRegistry()
	metrics := httpapi.NewMetrics(reg)

	ctrl := admission.NewController()
	ctrl.SetGlobalOverride(toOverride(cfg.RateLimits.GlobalOverride))
	for tenantID, o := range cfg.RateLimits.TenantOverrides {
		ctrl.SetTenantOverrides(tenantID, toOverride(o))
	}

	execTracker := tracker.New(log.WithName("tracker"), metrics)

	db, err := sql.Open("pgx", cfg.Audit.DSN)
	if err != nil {
		return fmt.Errorf("opening audit database: %w", err)
	}
	defer db.Close()

	if err := audit.Migrate(db); err != nil {
		return fmt.Errorf("running audit migrations: %w", err)
	}
	repo := audit.NewPostgresRepository(db, "pgx")
	store := audit.NewBufferedStore(repo, log.WithName("audit"), cfg.Audit.BatchSize, cfg.Audit.FlushInterval)
	defer store.Close()

	onTimeout := terminationCallback(execTracker, store, metrics, log)
	engine := escalation.New(log.WithName("escalation"), onTimeout)

	rules := newRuleWatcher(engine, cfg.Escalation.RulesFile, log)
	if err := rules.Load(); err != nil {
		return fmt.Errorf("loading escalation rules: %w", err)
	}
	go func() {
		if err := rules.Watch(ctx); err != nil {
			log.Error(err, "escalation rules watcher stopped")
		}
	}()

	if cfg.RateLimits.OverridesFile != "" {
		overrides := newOverridesWatcher(ctrl, cfg.RateLimits.OverridesFile, log)
		if err := overrides.Load(); err != nil {
			log.Error(err, "initial tenant overrides load failed, continuing with config defaults")
		}
		go func() {
			if err := overrides.Watch(ctx); err != nil {
				log.Error(err, "tenant overrides watcher stopped")
			}
		}()
	}

	engine.StartScan(cfg.Escalation.ScanInterval)
	defer engine.Shutdown()

	notifier := buildNotifier(cfg, log)
	stopNotify := dispatchNotifications(ctx, engine, notifier, log)
	defer stopNotify()

	var idem *middleware.IdempotencyCache
	if cfg.Idempotency.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Idempotency.RedisAddr})
		idem = middleware.NewIdempotencyCache(client, int64(cfg.Idempotency.TTL.Seconds()))
	}

	router := httpapi.NewRouter(httpapi.ServerDeps{
		Admission:   ctrl,
		Escalations: engine,
		Idempotency: idem,
		Metrics:     metrics,
		Registry:    reg,
		Log:         log.WithName("httpapi"),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.AdminPort,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("admin HTTP surface listening", logging.NewFields().
			Component("cognigate").Operation("serve").KV("addr", srv.Addr).KeysAndValues()...)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	stopReconcile := reconcileMetrics(ctx, engine, metrics)
	defer stopReconcile()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logging.NewFields().
			Component("cognigate").Operation("shutdown").KV("signal", sig.String()).KeysAndValues()...)
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("admin HTTP server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "admin HTTP server shutdown did not complete cleanly")
	}

	return nil
}

func toOverride(o config.TierOverride) admission.Override {
	return admission.Override{
		RequestsPerMinute:    o.RequestsPerMinute,
		RequestsPerHour:      o.RequestsPerHour,
		BurstLimit:           o.BurstLimit,
		ExecutionsPerMinute:  o.ExecutionsPerMinute,
		ConcurrentExecutions: o.ConcurrentExecutions,
	}
}

// terminationCallback adapts escalation.TerminationCallback to the tracker
// and audit store: signal the execution's cancel handle, mark it terminated,
// and append an audit record, all best-effort — a callback may not return an
// error, so failures are logged rather than propagated.
func terminationCallback(t *tracker.Tracker, store *audit.BufferedStore, metrics *httpapi.Metrics, log logr.Logger) escalation.TerminationCallback {
	return func(executionID, reason string) {
		exec, ok := t.Get(executionID)
		if !ok {
			logging.Warn(log, "auto-termination requested for untracked execution",
				logging.NewFields().Component("cognigate").Operation("auto-terminate").Execution(executionID))
			return
		}
		if exec.Cancel != nil {
			if err := exec.Cancel.Signal(reason); err != nil {
				logging.Warn(log, "cancel handle failed during auto-termination",
					logging.NewFields().Component("cognigate").Operation("auto-terminate").
						Execution(executionID).Error(err))
			}
		}
		t.UpdateStatus(executionID, tracker.StatusTerminated)
		metrics.EscalationTimeouts.Inc()

		store.Write(context.Background(), audit.AuditRecord{
			ID:          uuid.New().String(),
			TenantID:    exec.TenantID,
			ExecutionID: executionID,
			IntentID:    exec.IntentID,
			EventType:   "escalation_auto_terminated",
			Severity:    audit.SeverityCritical,
			Message:     reason,
			CreatedAt:   time.Now(),
		})
	}
}

// buildNotifier selects the configured escalation delivery backend. Slack
// takes precedence when both are configured, since an operator who set a
// webhook URL wants escalations routed there, not silently written to disk.
func buildNotifier(cfg *config.Config, log logr.Logger) notification.Service {
	if cfg.Notification.SlackWebhookURL != "" {
		breaker := cbhttp.NewCircuitBreaker("slack-notification", &cbhttp.CircuitBreakerConfig{
			FailureThreshold:  5,
			RecoveryTimeout:   30 * time.Second,
			SuccessThreshold:  2,
			RequestTimeout:    5 * time.Second,
			RequestsPerSecond: 10,
			BurstLimit:        20,
		}, nil, log.WithName("slack-breaker"))
		return notification.NewSlackService(cfg.Notification.SlackWebhookURL, breaker, log)
	}
	return notification.NewFileDeliveryService(cfg.Notification.FileDeliveryDir)
}

// dispatchNotifications polls the engine's pending escalations and delivers
// exactly one notification per escalation id, the first time it's seen
// pending. A delivery failure is logged and retried on the next tick (the id
// is only remembered once Deliver succeeds).
func dispatchNotifications(ctx context.Context, e *escalation.Engine, svc notification.Service, log logr.Logger) func() {
	stop := make(chan struct{})
	notified := make(map[string]bool)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				for _, rec := range e.GetPending() {
					if notified[rec.ID] {
						continue
					}
					n := notification.Notification{
						EscalationID: rec.ID,
						ExecutionID:  rec.ExecutionID,
						TenantID:     rec.TenantID,
						Priority:     string(rec.Priority),
						EscalatedTo:  rec.EscalatedTo,
						Subject:      fmt.Sprintf("Escalation: %s", rec.Rule.Name),
						Body:         rec.Reason,
					}
					if err := svc.Deliver(ctx, n); err != nil {
						logging.Warn(log, "escalation notification delivery failed",
							logging.NewFields().Component("cognigate").Operation("notify").
								KV("escalation_id", rec.ID).Error(err))
						continue
					}
					notified[rec.ID] = true
				}
			}
		}
	}()
	return func() { close(stop) }
}

// reconcileMetrics periodically refreshes cognigate_escalations_active, the
// one gauge no single engine call site updates on its own (it reflects the
// whole active set, not a single transition). Admission decisions are
// observed by the RateLimitHeaders middleware and concurrent/tracked
// execution counts by tracker.Tracker itself; this loop only covers the
// aggregate escalation gauge.
func reconcileMetrics(ctx context.Context, e *escalation.Engine, m *httpapi.Metrics) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				byPriority := map[escalation.Priority]int{}
				for _, rec := range e.GetActive("") {
					byPriority[rec.Priority]++
				}
				m.EscalationsActive.Reset()
				for priority, count := range byPriority {
					m.EscalationsActive.WithLabelValues(string(priority)).Set(float64(count))
				}
			}
		}
	}()
	return func() { close(stop) }
}
