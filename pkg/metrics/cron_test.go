package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsRunsAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "premium-expiry"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.IncFailure(job)
	m.AddAffected(job, 3)
	m.AddAffected(job, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterValue(t, mfs, "spark_cron_job_runs_total", map[string]string{"job": job, "outcome": OutcomeSuccess}); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := counterValue(t, mfs, "spark_cron_job_runs_total", map[string]string{"job": job, "outcome": OutcomeFailure}); got != 2 {
		t.Fatalf("expected failure=2, got %f", got)
	}
	if got := counterValue(t, mfs, "spark_cron_job_records_total", map[string]string{"job": job}); got != 3 {
		t.Fatalf("expected affected=3, got %f", got)
	}

	mf := findMetricFamily(mfs, "spark_cron_job_duration_seconds")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one duration series")
	}
	if sum := mf.GetMetric()[0].GetHistogram().GetSampleSum(); sum <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", sum)
	}
}

func TestNilRecordersAreSafe(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("job")
	cron.ObserveDuration("job", time.Second)

	NewCronJobMetrics(nil).IncFailure("job")

	var hooks *WebhookMetrics
	hooks.Observe("sale", OutcomeSuccess)
	NewWebhookMetrics(nil).Observe("sale", OutcomeSuccess)
}

func TestWebhookMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.Observe("sale", OutcomeSuccess)
	m.Observe("sale", OutcomeSuccess)
	m.Observe("", OutcomeRejected)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := counterValue(t, mfs, "billing_webhook_events_total", map[string]string{"type": "sale", "outcome": OutcomeSuccess}); got != 2 {
		t.Fatalf("expected sale success=2, got %f", got)
	}
	if got := counterValue(t, mfs, "billing_webhook_events_total", map[string]string{"type": "unknown", "outcome": OutcomeRejected}); got != 1 {
		t.Fatalf("expected unknown rejected=1, got %f", got)
	}
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q has no series %s", name, fmt.Sprint(labels))
	return 0
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
