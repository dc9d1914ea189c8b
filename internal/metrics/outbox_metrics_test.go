package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := g.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func TestOutboxMetrics_RecordPublish(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordPublish(OutboxResultSent)
	m.RecordPublish(OutboxResultSent)
	m.RecordPublish(OutboxResultRetryError)

	if got := counterValue(t, m.publishAttempts.WithLabelValues(OutboxResultSent)); got != 2 {
		t.Fatalf("expected 2 sent attempts, got %f", got)
	}
	if got := counterValue(t, m.publishAttempts.WithLabelValues(OutboxResultRetryError)); got != 1 {
		t.Fatalf("expected 1 retry error, got %f", got)
	}
}

func TestOutboxMetrics_SetBacklog(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	m.SetBacklog(3, now.Add(-10*time.Second), now)
	if got := gaugeValue(t, m.pendingRecords); got != 3 {
		t.Fatalf("expected 3 pending records, got %f", got)
	}
	if got := gaugeValue(t, m.oldestPendingAge); got != 10 {
		t.Fatalf("expected oldest age 10s, got %f", got)
	}

	m.SetBacklog(0, time.Time{}, now)
	if got := gaugeValue(t, m.oldestPendingAge); got != 0 {
		t.Fatalf("expected age reset to 0, got %f", got)
	}

	m.SetBacklog(1, now.Add(time.Minute), now)
	if got := gaugeValue(t, m.oldestPendingAge); got != 0 {
		t.Fatalf("expected negative age clamped to 0, got %f", got)
	}
}

func TestOutboxMetrics_NilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.RecordPublish(OutboxResultFailed)
	m.SetBacklog(1, time.Now(), time.Now())
}
