package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryExposesCounters(t *testing.T) {
	m := NewRegistry()
	m.EventDelivered("Paid")
	m.EventDelivered("Paid")
	m.DecodeFailed("Lent")
	m.PollAttempt()
	m.PollOutcome("terminal")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)

	for _, want := range []string{
		`loankit_events_delivered_total{event="Paid"} 2`,
		`loankit_event_decode_failures_total{event="Lent"} 1`,
		`loankit_poll_attempts_total 1`,
		`loankit_poll_outcomes_total{outcome="terminal"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, text)
		}
	}
}
