package events

import (
	"time"

	"go.uber.org/zap"
)

// Observer receives delivery counters. The metrics package provides the
// Prometheus implementation.
type Observer interface {
	EventDelivered(eventName string)
	DecodeFailed(eventName string)
}

type nopObserver struct{}

func (nopObserver) EventDelivered(string) {}
func (nopObserver) DecodeFailed(string)   {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver sets the delivery counter sink.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithPollInterval sets how often a subscription polls when the node does
// not support push notifications.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithMaxBlockSpan limits the number of blocks per eth_getLogs request.
// Zero means no limit.
func WithMaxBlockSpan(span uint64) Option {
	return func(m *Manager) {
		m.maxBlockSpan = span
	}
}

// WithBufferSize sets the per-subscription log channel capacity.
func WithBufferSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.bufferSize = n
		}
	}
}
