// Package metrics exposes session progress over Prometheus: trial
// counts by type, trigger failures, and event timing jitter. The module
// runs an HTTP endpoint for the lifetime of the session.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skinnerbox/internal/model"
)

// Module observes trials and serves the scrape endpoint. It satisfies
// the session's support module and trial observer contracts.
type Module struct {
	addr     string
	registry *prometheus.Registry
	server   *http.Server

	trials       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	jitter       prometheus.Histogram
	trialSeconds prometheus.Histogram
}

func NewModule(addr string) *Module {
	registry := prometheus.NewRegistry()
	m := &Module{
		addr:     addr,
		registry: registry,
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skinnerbox_trials_total",
			Help: "Completed trials by trial type.",
		}, []string{"type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skinnerbox_event_failures_total",
			Help: "Event triggers that produced no end stamp, by event.",
		}, []string{"event"}),
		jitter: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skinnerbox_event_jitter_seconds",
			Help:    "Logged minus planned event start.",
			Buckets: prometheus.ExponentialBuckets(1e-4, 2, 12),
		}),
		trialSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skinnerbox_trial_duration_seconds",
			Help:    "Wall-clock trial duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	registry.MustRegister(m.trials, m.failures, m.jitter, m.trialSeconds)
	return m
}

func (m *Module) Name() string { return "metrics" }

// Registry exposes the module's registry for scraping in-process.
func (m *Module) Registry() *prometheus.Registry { return m.registry }

func (m *Module) Start(_ context.Context) error {
	if m.addr == "" {
		return nil
	}
	listener, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Handler: mux}
	go func() {
		_ = m.server.Serve(listener)
	}()
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := m.server.Shutdown(shutdownCtx)
	m.server = nil
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (m *Module) ObserveTrial(trial model.Trial) {
	m.trials.WithLabelValues(trial.TypeName).Inc()
	m.trialSeconds.Observe(trial.End - trial.Start)
	for _, event := range trial.Events {
		if event.Missing() {
			m.failures.WithLabelValues(event.Name).Inc()
			continue
		}
		m.jitter.Observe(event.LoggedStart - event.PlannedStart)
	}
}
