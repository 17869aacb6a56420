package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine-api/internal/models"
)

func TestMetricsServiceDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordVerdict(models.EducationSecondary, models.VerdictConditional)
	m.RecordVerdict(models.EducationSecondary, models.VerdictConditional)
	m.RecordTransition(models.EnrollmentStatePending, models.EnrollmentStateConfirmed)
	m.RecordFormulaError()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.Equal(t, 2.0, gatheredValue(t, m, "classification_verdicts_total", map[string]string{"level": "SECONDARY", "verdict": "CONDITIONAL"}))
	assert.Equal(t, 1.0, gatheredValue(t, m, "enrollment_transitions_total", map[string]string{"from": "PENDING", "to": "CONFIRMED"}))
	assert.Equal(t, 1.0, gatheredValue(t, m, "formula_evaluation_errors_total", nil))
	assert.Equal(t, 0.5, gatheredValue(t, m, "cache_hit_ratio", nil))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "classification_verdicts_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordVerdict(models.EducationPrimary, models.VerdictTransitions)
	m.RecordTransition(models.EnrollmentStatePending, models.EnrollmentStateCancelled)
	m.RecordFormulaError()
	m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func gatheredValue(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
