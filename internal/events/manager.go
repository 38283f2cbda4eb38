package events

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"loanKit/internal/apperr"
)

// ErrManagerClosed is returned by Subscribe after Close.
var ErrManagerClosed = errors.New("events: manager closed")

// Backend is the subset of a node client the manager needs. Both
// *ethclient.Client and *chain.Client satisfy it.
type Backend interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Manager owns the live log subscriptions of one contract and answers
// historical queries against it.
type Manager struct {
	address  string
	codec    *Codec
	backend  Backend
	logger   *zap.Logger
	observer Observer

	pollInterval time.Duration
	maxBlockSpan uint64
	bufferSize   int

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

type subscription struct {
	token   string
	filter  LogFilter
	verbose bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager builds a manager for the contract at address.
func NewManager(address common.Address, codec *Codec, backend Backend, opts ...Option) *Manager {
	m := &Manager{
		address:      strings.ToLower(address.Hex()),
		codec:        codec,
		backend:      backend,
		logger:       zap.NewNop(),
		observer:     nopObserver{},
		pollInterval: 2 * time.Second,
		bufferSize:   128,
		subs:         make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Address returns the lower-cased contract address.
func (m *Manager) Address() string { return m.address }

// Codec returns the codec used for filters and decoding.
func (m *Manager) Codec() *Codec { return m.codec }

// Len returns the number of active subscriptions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Subscribe delivers matching logs to callback as untyped events.
func (m *Manager) Subscribe(ctx context.Context, eventName string, values map[string]interface{}, callback func(DecodedLogEvent[Args], error), verbose bool) (string, error) {
	return SubscribeAs[Args](ctx, m, eventName, values, callback, verbose)
}

// SubscribeAs registers a live subscription for eventName. Logs are decoded
// into T and passed to callback in arrival order. Logs that fail to decode
// are skipped. A transport failure is passed to callback once as
// (zero, err) and ends the subscription.
func SubscribeAs[T any](ctx context.Context, m *Manager, eventName string, values map[string]interface{}, callback func(DecodedLogEvent[T], error), verbose bool) (string, error) {
	filter, err := m.filter(eventName, values)
	if err != nil {
		return "", fmt.Errorf("subscribe: %w", err)
	}
	if callback == nil {
		return "", fmt.Errorf("subscribe %s: %w", eventName, apperr.ErrInvalidCallback)
	}

	handle := func(log types.Log) bool {
		ev, err := DecodeAs[T](m.codec, log)
		if err != nil {
			m.decodeFailed(eventName, log, err)
			return false
		}
		callback(ev, nil)
		return true
	}
	fail := func(err error) {
		callback(DecodedLogEvent[T]{}, err)
	}
	return m.start(ctx, filter, verbose, handle, fail)
}

// GetLogs returns untyped events for eventName in the closed range r.
func (m *Manager) GetLogs(ctx context.Context, eventName string, r BlockRange, values map[string]interface{}) ([]DecodedLogEvent[Args], error) {
	return GetLogsAs[Args](ctx, m, eventName, r, values)
}

// GetLogsAs fetches every matching log in r, decodes it into T and returns
// the events ordered by block number then log index. Logs that fail to
// decode are left out.
func GetLogsAs[T any](ctx context.Context, m *Manager, eventName string, r BlockRange, values map[string]interface{}) ([]DecodedLogEvent[T], error) {
	if !m.codec.Has(eventName) {
		return nil, fmt.Errorf("get logs: %w: %q", apperr.ErrInvalidEventName, eventName)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("get logs %s: %w", eventName, err)
	}
	filter, err := m.filter(eventName, values)
	if err != nil {
		return nil, fmt.Errorf("get logs: %w", err)
	}

	raw, err := m.fetch(ctx, filter, r)
	if err != nil {
		return nil, fmt.Errorf("get logs %s: %w", eventName, err)
	}

	out := make([]DecodedLogEvent[T], 0, len(raw))
	for _, log := range raw {
		ev, err := DecodeAs[T](m.codec, log)
		if err != nil {
			m.decodeFailed(eventName, log, err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Unsubscribe stops the subscription behind token. Unknown or already
// removed tokens are ignored.
func (m *Manager) Unsubscribe(token string) {
	m.mu.Lock()
	s, ok := m.subs[token]
	delete(m.subs, token)
	m.mu.Unlock()

	if ok {
		s.cancel()
		m.logger.Debug("unsubscribed", zap.String("token", token), zap.String("event", s.filter.EventName))
	}
}

// Close stops every subscription and waits for their goroutines to exit.
// It must not be called from a subscription callback.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	subs := make([]*subscription, 0, len(m.subs))
	for token, s := range m.subs {
		subs = append(subs, s)
		delete(m.subs, token)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.cancel()
	}
	for _, s := range subs {
		<-s.done
	}
}

func (m *Manager) filter(eventName string, values map[string]interface{}) (LogFilter, error) {
	if !m.codec.Has(eventName) {
		return LogFilter{}, fmt.Errorf("%w: %q", apperr.ErrInvalidEventName, eventName)
	}
	return m.codec.Filter(m.address, eventName, values)
}

func (m *Manager) start(ctx context.Context, filter LogFilter, verbose bool, handle func(types.Log) bool, fail func(error)) (string, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return "", ErrManagerClosed
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		filter:  filter,
		verbose: verbose,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	var run func()
	logs := make(chan types.Log, m.bufferSize)
	sub, err := m.backend.SubscribeFilterLogs(ctx, filter.Query(nil, nil), logs)
	switch {
	case err == nil:
		run = func() { m.stream(runCtx, s, sub, logs, handle, fail) }
	case errors.Is(err, rpc.ErrNotificationsUnsupported):
		head, headErr := m.backend.BlockNumber(ctx)
		if headErr != nil {
			cancel()
			return "", fmt.Errorf("subscribe %s: head block: %w", filter.EventName, headErr)
		}
		m.logger.Info("node has no push support, polling logs",
			zap.String("event", filter.EventName),
			zap.Uint64("from", head+1),
			zap.Duration("interval", m.pollInterval),
		)
		run = func() { m.poll(runCtx, s, head+1, handle) }
	default:
		cancel()
		return "", fmt.Errorf("subscribe %s: %w", filter.EventName, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		if sub != nil {
			sub.Unsubscribe()
		}
		return "", ErrManagerClosed
	}
	for {
		s.token = uuid.NewString()
		if _, taken := m.subs[s.token]; !taken {
			break
		}
	}
	m.subs[s.token] = s
	m.mu.Unlock()

	go func() {
		defer close(s.done)
		run()
	}()

	m.logger.Debug("subscribed", zap.String("token", s.token), zap.String("event", filter.EventName), zap.String("address", filter.Address))
	return s.token, nil
}

func (m *Manager) stream(ctx context.Context, s *subscription, sub ethereum.Subscription, logs <-chan types.Log, handle func(types.Log) bool, fail func(error)) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-sub.Err():
			if ctx.Err() != nil {
				return
			}
			m.remove(s.token)
			if !ok || err == nil {
				m.logger.Info("subscription closed by node", zap.String("token", s.token), zap.String("event", s.filter.EventName))
				return
			}
			m.logger.Warn("subscription failed", zap.String("token", s.token), zap.String("event", s.filter.EventName), zap.Error(err))
			fail(err)
			return
		case log := <-logs:
			if ctx.Err() != nil {
				return
			}
			m.deliver(s, log, handle)
		}
	}
}

func (m *Manager) poll(ctx context.Context, s *subscription, next uint64, handle func(types.Log) bool) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		latest, err := m.backend.BlockNumber(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("poll head failed", zap.String("event", s.filter.EventName), zap.Error(err))
			}
			continue
		}
		if latest < next {
			continue
		}

		logs, err := m.fetch(ctx, s.filter, BlockRange{From: next, To: latest})
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("poll logs failed",
					zap.String("event", s.filter.EventName),
					zap.Uint64("from", next),
					zap.Uint64("to", latest),
					zap.Error(err),
				)
			}
			continue
		}
		for _, log := range logs {
			if ctx.Err() != nil {
				return
			}
			m.deliver(s, log, handle)
		}
		next = latest + 1
	}
}

func (m *Manager) deliver(s *subscription, log types.Log, handle func(types.Log) bool) {
	if !handle(log) {
		return
	}
	m.observer.EventDelivered(s.filter.EventName)

	fields := []zap.Field{
		zap.String("event", s.filter.EventName),
		zap.Uint64("block", log.BlockNumber),
		zap.String("tx", log.TxHash.Hex()),
		zap.Uint("log_index", log.Index),
	}
	if s.verbose {
		m.logger.Info("event delivered", fields...)
		return
	}
	m.logger.Debug("event delivered", fields...)
}

func (m *Manager) remove(token string) {
	m.mu.Lock()
	s, ok := m.subs[token]
	delete(m.subs, token)
	m.mu.Unlock()
	if ok {
		s.cancel()
	}
}

func (m *Manager) decodeFailed(eventName string, log types.Log, err error) {
	m.observer.DecodeFailed(eventName)
	m.logger.Warn("skip undecodable log",
		zap.String("event", eventName),
		zap.Uint64("block", log.BlockNumber),
		zap.String("tx", log.TxHash.Hex()),
		zap.Uint("log_index", log.Index),
		zap.Error(err),
	)
}

// fetch runs eth_getLogs over r, split by maxBlockSpan, and sorts the
// result by (block, log index).
func (m *Manager) fetch(ctx context.Context, filter LogFilter, r BlockRange) ([]types.Log, error) {
	ranges, err := r.Split(m.maxBlockSpan)
	if err != nil {
		return nil, err
	}

	var out []types.Log
	for _, part := range ranges {
		q := filter.Query(new(big.Int).SetUint64(part.From), new(big.Int).SetUint64(part.To))
		logs, err := m.backend.FilterLogs(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("filter logs [%d, %d]: %w", part.From, part.To, err)
		}
		out = append(out, logs...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}
