package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type sequenceSource struct {
	mu      sync.Mutex
	codes   []Code
	calls   int
	failAt  int
	failErr error
}

func (s *sequenceSource) Status(_ context.Context, id string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return Status{}, s.failErr
	}
	code := s.codes[len(s.codes)-1]
	if s.calls <= len(s.codes) {
		code = s.codes[s.calls-1]
	}
	return Status{ID: id, Code: code}, nil
}

func (s *sequenceSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type callbackRecorder struct {
	mu       sync.Mutex
	calls    int
	lastErr  error
	lastCode Code
}

func (r *callbackRecorder) callback(err error, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastErr = err
	r.lastCode = status.Code
}

func waitResult(t *testing.T, s *Session) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("session did not finish: %v", err)
	}
	return res
}

func TestTrackFiresOnceOnThirdSample(t *testing.T) {
	source := &sequenceSource{codes: []Code{StatusPending, StatusPending, StatusSettling}}
	rec := &callbackRecorder{}
	poller := NewPoller(source, Config{Period: 5 * time.Millisecond, Attempts: 200})

	res := waitResult(t, poller.Track(context.Background(), "0xabc", WithCallback(rec.callback)))

	if res.Outcome != OutcomeTerminal {
		t.Fatalf("expected terminal, got %s", res.Outcome)
	}
	if res.Attempts != 3 || source.callCount() != 3 {
		t.Fatalf("expected 3 samples, got %d/%d", res.Attempts, source.callCount())
	}
	if rec.calls != 1 || rec.lastErr != nil || rec.lastCode != StatusSettling {
		t.Fatalf("callback mismatch: calls=%d err=%v code=%s", rec.calls, rec.lastErr, rec.lastCode)
	}
	if res.Status.Code != StatusSettling || res.Status.ID != "0xabc" {
		t.Fatalf("status mismatch: %+v", res.Status)
	}
}

func TestTrackTimesOutWithoutCallback(t *testing.T) {
	source := &sequenceSource{codes: []Code{StatusPending}}
	rec := &callbackRecorder{}
	poller := NewPoller(source, Config{Period: 5 * time.Millisecond, Attempts: 4})

	start := time.Now()
	res := waitResult(t, poller.Track(context.Background(), "id-1", WithCallback(rec.callback)))

	if res.Outcome != OutcomeTimedOut {
		t.Fatalf("expected timed out, got %s", res.Outcome)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("timed out before deadline: %s", elapsed)
	}
	if rec.calls != 0 {
		t.Fatalf("callback must not fire on timeout, fired %d times", rec.calls)
	}
	if res.Status.Code != StatusPending {
		t.Fatalf("last status mismatch: %s", res.Status.Code)
	}
}

func TestTrackCustomPredicate(t *testing.T) {
	source := &sequenceSource{codes: []Code{StatusPending, StatusSettling, StatusSettled}}
	poller := NewPoller(source, Config{Period: time.Millisecond, Attempts: 500})

	res := waitResult(t, poller.Track(context.Background(), "id", WithPredicate(CodeIs(StatusSettled, StatusFailed))))
	if res.Outcome != OutcomeTerminal || res.Status.Code != StatusSettled || res.Attempts != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTrackFailedQueryInvokesCallbackWithError(t *testing.T) {
	boom := errors.New("relay unavailable")
	source := &sequenceSource{codes: []Code{StatusPending}, failAt: 2, failErr: boom}
	rec := &callbackRecorder{}
	poller := NewPoller(source, Config{Period: time.Millisecond, Attempts: 100})

	res := waitResult(t, poller.Track(context.Background(), "id", WithCallback(rec.callback)))
	if res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if rec.calls != 1 || !errors.Is(rec.lastErr, boom) {
		t.Fatalf("callback mismatch: calls=%d err=%v", rec.calls, rec.lastErr)
	}
}

func TestTrackCancel(t *testing.T) {
	source := &sequenceSource{codes: []Code{StatusPending}}
	rec := &callbackRecorder{}
	poller := NewPoller(source, Config{Period: time.Hour, Attempts: 30})

	session := poller.Track(context.Background(), "id", WithCallback(rec.callback))
	if _, done := session.Result(); done {
		t.Fatalf("session should still be running")
	}
	session.Cancel()

	res := waitResult(t, session)
	if res.Outcome != OutcomeCanceled {
		t.Fatalf("expected canceled, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if rec.calls != 0 {
		t.Fatalf("callback must not fire on cancel")
	}
}

func TestTrackParentContextCancel(t *testing.T) {
	source := &sequenceSource{codes: []Code{StatusPending}}
	poller := NewPoller(source, Config{Period: time.Hour, Attempts: 30})

	ctx, cancel := context.WithCancel(context.Background())
	session := poller.Track(ctx, "id")
	cancel()

	select {
	case <-session.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not stop on parent cancel")
	}
	res, ok := session.Result()
	if !ok || res.Outcome != OutcomeCanceled {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseCode(t *testing.T) {
	code, err := ParseCode(" Settling ")
	if err != nil || code != StatusSettling {
		t.Fatalf("parse mismatch: %s %v", code, err)
	}
	if _, err := ParseCode("bogus"); err == nil {
		t.Fatalf("expected error for unknown code")
	}
}

func TestDefaultConfig(t *testing.T) {
	poller := NewPoller(StatusFunc(func(context.Context, string) (Status, error) {
		return Status{}, nil
	}), Config{})
	if poller.cfg.Period != time.Second || poller.cfg.Attempts != 30 {
		t.Fatalf("unexpected defaults: %+v", poller.cfg)
	}
}
