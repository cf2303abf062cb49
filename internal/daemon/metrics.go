package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/outreach/internal/bus"
	"github.com/matheus3301/outreach/internal/config"
	"github.com/matheus3301/outreach/internal/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRegistry creates the daemon's Prometheus registry with runtime
// collectors and gauges derived from the current snapshot.
func NewRegistry(st *state.Store, b *bus.Bus) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "outreach_campaigns_running",
			Help: "Campaigns currently running.",
		}, func() float64 {
			return float64(state.ComputeStats(st.Snapshot()).ActiveCampaigns)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "outreach_accounts_connected",
			Help: "Accounts currently connected.",
		}, func() float64 {
			return float64(state.ComputeStats(st.Snapshot()).ActiveAccounts)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "outreach_campaign_queued_messages",
			Help: "Sum of campaign queued counters.",
		}, func() float64 {
			return float64(state.ComputeStats(st.Snapshot()).QueuedMessages)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "outreach_bus_events_dropped_total",
			Help: "Events dropped because a subscriber was full.",
		}, func() float64 {
			return float64(b.Dropped())
		}),
	)
	return reg
}

// MetricsServer serves /metrics over HTTP. It is inert when no address is
// configured.
type MetricsServer struct {
	addr     string
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewMetricsServer prepares the endpoint described by cfg.Daemon.MetricsAddr.
func NewMetricsServer(cfg *config.Config, reg *prometheus.Registry, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &MetricsServer{
		addr:   cfg.Daemon.MetricsAddr,
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Start binds the listener and serves in the background.
func (m *MetricsServer) Start() error {
	if m.addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}
	m.listener = ln
	m.logger.Info("metrics endpoint listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or "" when disabled or not started.
func (m *MetricsServer) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Stop shuts the endpoint down.
func (m *MetricsServer) Stop(ctx context.Context) error {
	if m.listener == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}
