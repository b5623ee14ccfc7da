// Package metrics exposes client counters in Prometheus format. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/chat"
)

// Metrics holds the client collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	received      *prometheus.CounterVec
	sent          *prometheus.CounterVec
	sendFailures  *prometheus.CounterVec
	expired       prometheus.Counter
	remoteDelFail prometheus.Counter
	seen          prometheus.Counter
	autoReplies   prometheus.Counter
	commandErrors prometheus.Counter
}

// New creates the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewGoCollector())
	return &Metrics{
		reg: reg,
		received: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wppcli_messages_received_total",
			Help: "Incoming messages applied to the chat store",
		}, []string{"kind"}),
		sent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wppcli_messages_sent_total",
			Help: "Outgoing messages accepted by the provider",
		}, []string{"kind"}),
		sendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wppcli_send_failures_total",
			Help: "Outgoing messages the provider rejected",
		}, []string{"kind"}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Name: "wppcli_messages_expired_total",
			Help: "Pending deletions consumed by the expiry sweep",
		}),
		remoteDelFail: f.NewCounter(prometheus.CounterOpts{
			Name: "wppcli_remote_delete_failures_total",
			Help: "Remote deletions that failed during expiry",
		}),
		seen: f.NewCounter(prometheus.CounterOpts{
			Name: "wppcli_messages_seen_total",
			Help: "Outgoing messages newly reported as seen",
		}),
		autoReplies: f.NewCounter(prometheus.CounterOpts{
			Name: "wppcli_auto_replies_total",
			Help: "Automatic replies sent",
		}),
		commandErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "wppcli_command_errors_total",
			Help: "Commands aborted by an unexpected error",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Received(kind chat.Kind) {
	if m != nil {
		m.received.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) Sent(kind chat.Kind) {
	if m != nil {
		m.sent.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) SendFailed(kind chat.Kind) {
	if m != nil {
		m.sendFailures.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) Expired() {
	if m != nil {
		m.expired.Inc()
	}
}

func (m *Metrics) RemoteDeleteFailed() {
	if m != nil {
		m.remoteDelFail.Inc()
	}
}

func (m *Metrics) Seen() {
	if m != nil {
		m.seen.Inc()
	}
}

func (m *Metrics) AutoReplied() {
	if m != nil {
		m.autoReplies.Inc()
	}
}

func (m *Metrics) CommandFailed() {
	if m != nil {
		m.commandErrors.Inc()
	}
}

// WatchGauge registers a gauge whose value is read from fn at scrape time.
func (m *Metrics) WatchGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Server is an optional /metrics listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
	log *zap.Logger
}

// Listen binds addr and returns a server ready to Serve.
func (m *Metrics) Listen(addr string, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
		log: log,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	s.log.Info("metrics listener started", zap.String("addr", s.Addr()))
	if err := s.srv.Serve(s.ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
