package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("outbox-retention", 200*time.Millisecond, nil)
	m.ObserveRun("outbox-retention", time.Second, errors.New("db gone"))
	m.ObserveRun("supplier-rating", 10*time.Millisecond, nil)

	require.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("outbox-retention", outcomeSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("outbox-retention", outcomeFailure)))
	require.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("supplier-rating")), float64(0))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	sum, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "outbox-retention")
	require.NoError(t, err)
	require.InDelta(t, 1.2, sum, 0.0001)
}

func TestCronJobMetricsRows(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.AddRows("outbox-retention", "outbox_events", 12)
	m.AddRows("outbox-retention", "outbox_dlq", 0)
	m.AddRows("", "users", 3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got, err := fetchCounterValue(mfs, "cron_job_rows_total", "table", "outbox_events")
	require.NoError(t, err)
	require.Equal(t, float64(12), got)
	_, err = fetchCounterValue(mfs, "cron_job_rows_total", "table", "outbox_dlq")
	require.Error(t, err, "zero deltas should not create a series")
	got, err = fetchCounterValue(mfs, "cron_job_rows_total", "job", "unknown")
	require.NoError(t, err)
	require.Equal(t, float64(3), got)
}

func TestNilCronMetrics(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("x", time.Second, nil)
	m.AddRows("x", "y", 1)
	NewCronJobMetrics(nil).ObserveRun("x", time.Second, nil)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	m, err := findSeries(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	m, err := findSeries(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return m.GetHistogram().GetSampleSum(), nil
}

func findSeries(mfs []*dto.MetricFamily, name, label, value string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, m := range mf.GetMetric() {
		if matchesLabel(m.GetLabel(), label, value) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("metric %q has no series with %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, l := range labels {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}
