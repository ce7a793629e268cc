package metrics_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/subrelay/internal/metrics"
	"github.com/kiranshivaraju/subrelay/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveJob_RunningAndFinished(t *testing.T) {
	before := testutil.ToFloat64(metrics.JobsFinishedTotal.WithLabelValues("failed"))

	metrics.ObserveJob(models.JobView{JobID: uuid.New(), Status: models.JobStatusRunning, Progress: 33})
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.JobsRunning))
	assert.Equal(t, float64(33), testutil.ToFloat64(metrics.JobProgress))

	metrics.ObserveJob(models.JobView{JobID: uuid.New(), Status: models.JobStatusFailed, Progress: 33})
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.JobsRunning))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JobsFinishedTotal.WithLabelValues("failed")))
}

func TestObserveStage_CountsFailures(t *testing.T) {
	before := testutil.ToFloat64(metrics.StageFailuresTotal.WithLabelValues("translate", "Timeout"))

	metrics.ObserveStage("translate", 2*time.Second, "")
	metrics.ObserveStage("translate", time.Second, models.ErrorKindTimeout)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.StageFailuresTotal.WithLabelValues("translate", "Timeout")))
}
