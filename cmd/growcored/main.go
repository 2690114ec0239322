// Command growcored runs the growspace coordinator daemon: persistent store,
// rules engine, irrigation scheduling, milestone notifications and a metrics
// endpoint.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"growcore/internal/analytics"
	"growcore/internal/blob"
	"growcore/internal/core"
	"growcore/internal/irrigation"
	"growcore/internal/notify"
)

func newLogger() (*zap.Logger, error) {
	if strings.EqualFold(os.Getenv("GROWCORE_ENV"), "production") {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// logActuator stands in until a real switch integration is configured.
type logActuator struct{ log *zap.Logger }

func (a logActuator) TurnOn(_ context.Context, entity string) error {
	a.log.Info("actuator on", zap.String("entity", entity))
	return nil
}

func (a logActuator) TurnOff(_ context.Context, entity string) error {
	a.log.Info("actuator off", zap.String("entity", entity))
	return nil
}

// logNotifier logs milestone and pump notifications instead of delivering.
type logNotifier struct{ log *zap.Logger }

func (n logNotifier) Send(_ context.Context, target, title, body string) error {
	n.log.Info("notification", zap.String("target", target), zap.String("title", title), zap.String("body", body))
	return nil
}

type pumpNotifier struct{ inner logNotifier }

func (p pumpNotifier) Send(ctx context.Context, title, body string) error {
	return p.inner.Send(ctx, "", title, body)
}

func main() {
	log, err := newLogger()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		log.Fatal("open persistent store", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	metrics := core.NewPrometheusMetricsRecorder(registry)

	harvests, err := analytics.NewSQLite(os.Getenv("GROWCORE_ANALYTICS_PATH"))
	if err != nil {
		log.Fatal("open harvest analytics", zap.Error(err))
	}
	defer func() { _ = harvests.Close() }()

	service := core.NewService(store,
		core.WithMetricsRecorder(metrics),
		core.WithHarvestRecorder(harvests),
	)

	blobStore, err := blob.Open(context.Background())
	if err != nil {
		log.Fatal("open blob store", zap.Error(err))
	}

	notifier := logNotifier{log: log.Named("notify")}
	milestones := notify.NewEngine(service, notifier, defaultMilestones(), notify.WithLogger(log))

	pumps := irrigation.NewManager(service, logActuator{log: log.Named("pump")},
		irrigation.WithLogger(log),
		irrigation.WithNotifier(pumpNotifier{inner: notifier}),
	)
	defer pumps.Close()
	for _, gs := range service.ListGrowspaces() {
		pumps.Ensure(gs.ID)
	}

	// Dehumidifier control (internal/envctl) is event driven off VPD sensor
	// readings. The daemon has no sensor feed; the host integration that
	// receives sensor events owns the envctl.Controller instances.

	if addr := os.Getenv("GROWCORE_METRICS_ADDR"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics endpoint listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	log.Info("growcored started")
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			if _, err := service.ArchiveSnapshot(context.Background(), blobStore, ""); err != nil {
				log.Warn("snapshot archive on shutdown failed", zap.Error(err))
			}
			return
		case <-ticker.C:
			if n := milestones.CheckMilestones(ctx); n > 0 {
				log.Info("milestones dispatched", zap.Int("count", n))
			}
		}
	}
}

func defaultMilestones() []notify.MilestoneRule {
	return []notify.MilestoneRule{
		{Stage: "veg", Day: 14, Title: "Veg check", Body: "{strain} ({phenotype}) is {day} days into veg"},
		{Stage: "flower", Day: 21, Title: "Early flower complete", Body: "{strain} ({phenotype}) reached flower day {day}"},
		{Stage: "flower", Day: 49, Title: "Harvest window", Body: "{strain} ({phenotype}) reached flower day {day}"},
		{Stage: "dry", Day: 7, Title: "Dry check", Body: "{strain} ({phenotype}) has been drying for {day} days"},
		{Stage: "cure", Day: 14, Title: "Cure check", Body: "{strain} ({phenotype}) has been curing for {day} days"},
	}
}
