package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestJobCounters(t *testing.T) {
	Submissions.WithLabelValues("chanjing", "task").Inc()
	Polls.WithLabelValues("chanjing", "processing").Inc()
	InlinePollAttempts.WithLabelValues("chanjing").Observe(3)

	names := gatheredNames(t)
	expected := []string{
		"avatargw_submissions_total",
		"avatargw_polls_total",
		"avatargw_inline_poll_attempts",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("%s not found in gathered metrics", name)
		}
	}
}

func TestUpstreamAndHealth(t *testing.T) {
	UpstreamLatency.WithLabelValues("poll_hedra", "200").Observe(0.2)
	Notifications.WithLabelValues("transport").Inc()
	EventSubscribers.Set(2)
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)

	names := gatheredNames(t)
	for _, name := range []string{
		"avatargw_upstream_request_seconds",
		"avatargw_notifications_total",
		"avatargw_event_subscribers",
		"avatargw_health_check_status",
	} {
		if !names[name] {
			t.Errorf("%s not found in gathered metrics", name)
		}
	}
}

// Upstream latency is labeled by operation, not request path: paths carry
// task ids and would grow the series set without bound.
func TestUpstreamLatencyLabels(t *testing.T) {
	UpstreamLatency.WithLabelValues("submit_lipsync", "200").Observe(0.1)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "avatargw_upstream_request_seconds" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if _, ok := labels["path"]; ok {
				t.Errorf("unexpected path label: %v", labels)
			}
			if labels["op"] == "submit_lipsync" && labels["code"] == "200" {
				return
			}
		}
	}
	t.Error("avatargw_upstream_request_seconds{op=\"submit_lipsync\",code=\"200\"} not found")
}
