// Package metrics exposes Prometheus metrics and a health endpoint for the
// trading session.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading bot.
type Metrics struct {
	BarsTotal       prometheus.Counter
	DuplicateBars   prometheus.Counter
	FormingBars     prometheus.Counter
	SignalsTotal    *prometheus.CounterVec // labels: signal
	OrdersTotal     *prometheus.CounterVec // labels: side, mode
	OrdersRejected  *prometheus.CounterVec // labels: reason
	StreamRedials   prometheus.Counter
	SessionState    prometheus.Gauge // 0=initializing 1=running 2=exiting 3=stopped
	WealthGauge     prometheus.Gauge
	CurrentReturn   prometheus.Gauge
	CommissionsPaid prometheus.Gauge
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_bars_total",
			Help: "Total closed bars ingested into the window",
		}),
		DuplicateBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_duplicate_bars_total",
			Help: "Closed-bar retransmissions dropped by the aggregator",
		}),
		FormingBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_forming_bars_total",
			Help: "Forming (not yet closed) bar updates ignored",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_signals_total",
			Help: "Strategy signals by decision",
		}, []string{"signal"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_orders_total",
			Help: "Orders filled, by side and live/paper mode",
		}, []string{"side", "mode"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_orders_rejected_total",
			Help: "Orders rejected before or by the exchange, by reason",
		}, []string{"reason"}),
		StreamRedials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_stream_redials_total",
			Help: "Bar stream reconnection attempts",
		}),
		SessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_session_state",
			Help: "Trading loop state (0=initializing 1=running 2=exiting 3=stopped)",
		}),
		WealthGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_wealth",
			Help: "Current wealth in quote currency",
		}),
		CurrentReturn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_return_pct",
			Help: "Session return as a percentage of initial wealth",
		}),
		CommissionsPaid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_commissions_paid",
			Help: "Cumulative commission paid in quote currency",
		}),
	}

	prometheus.MustRegister(
		m.BarsTotal, m.DuplicateBars, m.FormingBars, m.SignalsTotal,
		m.OrdersTotal, m.OrdersRejected, m.StreamRedials, m.SessionState,
		m.WealthGauge, m.CurrentReturn, m.CommissionsPaid,
	)
	return m
}

// HealthStatus tracks liveness information served at /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	StreamConnected bool      `json:"stream_connected"`
	LastBarTime     time.Time `json:"last_bar_time"`
	RedisConnected  bool      `json:"redis_connected"`
	JournalOK       bool      `json:"journal_ok"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetStreamConnected(v bool) {
	h.mu.Lock()
	h.StreamConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBarTime(t time.Time) {
	h.mu.Lock()
	h.LastBarTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalOK(v bool) {
	h.mu.Lock()
	h.JournalOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
