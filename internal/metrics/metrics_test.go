package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/gstgraph/internal/model"
)

func TestRecordSnapshot(t *testing.T) {
	s := &model.Snapshot{
		Version: 7,
		Reconciliation: model.ReconciliationResult{Summary: model.ReconciliationSummary{
			ByStatus: map[model.MismatchStatus]int{model.StatusMissingInGSTR2B: 3},
		}},
		Patterns: model.PatternResult{Summary: model.PatternSummary{
			ByType: map[model.PatternType]int{model.PatternCircular: 1},
		}},
		Alerts: []model.Alert{
			{Severity: model.SeverityCritical},
			{Severity: model.SeverityCritical},
			{Severity: model.SeverityHigh},
		},
	}

	RecordSnapshot(s)

	assert.Equal(t, 7.0, testutil.ToFloat64(snapshotVersion))
	assert.Equal(t, 3.0, testutil.ToFloat64(mismatchesGauge.WithLabelValues("MISSING_IN_GSTR2B")))
	assert.Equal(t, 1.0, testutil.ToFloat64(patternsGauge.WithLabelValues("CIRCULAR")))
	assert.Equal(t, 2.0, testutil.ToFloat64(alertsGauge.WithLabelValues("CRITICAL")))
}

func TestRecordBuild(t *testing.T) {
	before := testutil.ToFloat64(buildsTotal.WithLabelValues("failure"))
	RecordBuild(false, 0.2)
	assert.Equal(t, before+1, testutil.ToFloat64(buildsTotal.WithLabelValues("failure")))
}
