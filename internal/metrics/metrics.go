package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Registry holds the counters of the event layer and the status poller. It
// satisfies events.Observer and tracker.Observer.
type Registry struct {
	registry        *prometheus.Registry
	eventsDelivered *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	pollAttempts    prometheus.Counter
	pollOutcomes    *prometheus.CounterVec
}

func NewRegistry() *Registry {
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loankit_events_delivered_total",
		Help: "Decoded events delivered to subscribers",
	}, []string{"event"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loankit_event_decode_failures_total",
		Help: "Logs skipped because they did not decode",
	}, []string{"event"})

	attempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loankit_poll_attempts_total",
		Help: "Status queries issued by tracking sessions",
	})

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loankit_poll_outcomes_total",
		Help: "Finished tracking sessions by outcome",
	}, []string{"outcome"})

	r := prometheus.NewRegistry()
	r.MustRegister(delivered, failures, attempts, outcomes)

	return &Registry{
		registry:        r,
		eventsDelivered: delivered,
		decodeFailures:  failures,
		pollAttempts:    attempts,
		pollOutcomes:    outcomes,
	}
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Registry) EventDelivered(event string) {
	m.eventsDelivered.WithLabelValues(event).Inc()
}

func (m *Registry) DecodeFailed(event string) {
	m.decodeFailures.WithLabelValues(event).Inc()
}

func (m *Registry) PollAttempt() {
	m.pollAttempts.Inc()
}

func (m *Registry) PollOutcome(outcome string) {
	m.pollOutcomes.WithLabelValues(outcome).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Registry) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
