package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcome is how a tracking session ended.
type Outcome int

const (
	OutcomeTerminal Outcome = iota + 1
	OutcomeTimedOut
	OutcomeFailed
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTerminal:
		return "terminal"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the final state of a session. Status holds the last observed
// status, which for OutcomeTerminal is the one that matched the predicate.
type Result struct {
	ID       string
	Outcome  Outcome
	Status   Status
	Err      error
	Attempts int
}

// Callback is invoked at most once per session: with (nil, status) when the
// predicate matches, or with (err, zero) when a status query fails. It is
// not invoked on timeout or cancellation.
type Callback func(err error, status Status)

// Config bounds a session. The deadline is Attempts × Period after start.
type Config struct {
	Period   time.Duration
	Attempts int
}

// DefaultConfig is 30 attempts one second apart.
func DefaultConfig() Config {
	return Config{Period: time.Second, Attempts: 30}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Period <= 0 {
		c.Period = d.Period
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	return c
}

// Observer receives poll counters.
type Observer interface {
	PollAttempt()
	PollOutcome(outcome string)
}

type nopObserver struct{}

func (nopObserver) PollAttempt()       {}
func (nopObserver) PollOutcome(string) {}

// Poller turns a status source into bounded, cancellable tracking sessions.
type Poller struct {
	source   StatusSource
	cfg      Config
	logger   *zap.Logger
	observer Observer
}

// Option configures a Poller.
type Option func(*Poller)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(p *Poller) {
		if o != nil {
			p.observer = o
		}
	}
}

func NewPoller(source StatusSource, cfg Config, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		cfg:      cfg.withDefaults(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type trackSettings struct {
	cfg       Config
	predicate Predicate
	callback  Callback
}

// TrackOption overrides per-call settings.
type TrackOption func(*trackSettings)

func WithPredicate(pred Predicate) TrackOption {
	return func(s *trackSettings) {
		if pred != nil {
			s.predicate = pred
		}
	}
}

func WithCallback(cb Callback) TrackOption {
	return func(s *trackSettings) { s.callback = cb }
}

func WithPeriod(d time.Duration) TrackOption {
	return func(s *trackSettings) {
		if d > 0 {
			s.cfg.Period = d
		}
	}
}

func WithAttempts(n int) TrackOption {
	return func(s *trackSettings) {
		if n > 0 {
			s.cfg.Attempts = n
		}
	}
}

// Session is one running tracking loop.
type Session struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	result Result
}

// ID returns the tracked id.
func (s *Session) ID() string { return s.id }

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Cancel stops polling. The session ends with OutcomeCanceled unless it has
// already ended.
func (s *Session) Cancel() { s.cancel() }

// Result returns the final result once Done is closed.
func (s *Session) Result() (Result, bool) {
	select {
	case <-s.done:
	default:
		return Result{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, true
}

// Wait blocks until the session ends or ctx is done. Cancelling ctx does
// not cancel the session.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		res, _ := s.Result()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Track starts polling id in the background. The session stops when ctx is
// cancelled, when Cancel is called, when the predicate matches, when a
// status query fails, or when the deadline passes.
func (p *Poller) Track(ctx context.Context, id string, opts ...TrackOption) *Session {
	settings := trackSettings{cfg: p.cfg, predicate: DefaultPredicate}
	for _, opt := range opts {
		opt(&settings)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Session{id: id, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		defer cancel()
		res := p.run(runCtx, id, settings)
		s.mu.Lock()
		s.result = res
		s.mu.Unlock()
	}()
	return s
}

func (p *Poller) run(ctx context.Context, id string, settings trackSettings) Result {
	logger := p.logger.With(zap.String("id", id))
	deadline := time.Now().Add(time.Duration(settings.cfg.Attempts) * settings.cfg.Period)
	res := Result{ID: id}

	finish := func(outcome Outcome) Result {
		res.Outcome = outcome
		p.observer.PollOutcome(outcome.String())
		logger.Debug("tracking finished",
			zap.String("outcome", outcome.String()),
			zap.String("status", string(res.Status.Code)),
			zap.Int("attempts", res.Attempts),
		)
		return res
	}

	for {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return finish(OutcomeCanceled)
		}

		res.Attempts++
		p.observer.PollAttempt()
		status, err := p.source.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				res.Err = ctx.Err()
				return finish(OutcomeCanceled)
			}
			res.Err = fmt.Errorf("status %s: %w", id, err)
			logger.Warn("status query failed", zap.Int("attempt", res.Attempts), zap.Error(err))
			if settings.callback != nil {
				settings.callback(res.Err, Status{})
			}
			return finish(OutcomeFailed)
		}
		res.Status = status

		if settings.predicate(status) {
			if settings.callback != nil {
				settings.callback(nil, status)
			}
			return finish(OutcomeTerminal)
		}
		if !time.Now().Before(deadline) {
			return finish(OutcomeTimedOut)
		}

		timer := time.NewTimer(settings.cfg.Period)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			return finish(OutcomeCanceled)
		case <-timer.C:
		}
	}
}
