package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStage(t *testing.T) {
	beforeOK := testutil.ToFloat64(StageCompleted.WithLabelValues("rendering"))
	beforeFail := testutil.ToFloat64(StageFailed.WithLabelValues("storing", "STORAGE_UNAVAILABLE"))

	ObserveStage("rendering", time.Now(), "")
	ObserveStage("storing", time.Now().Add(-time.Second), "STORAGE_UNAVAILABLE")

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(StageCompleted.WithLabelValues("rendering")))
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(StageFailed.WithLabelValues("storing", "STORAGE_UNAVAILABLE")))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(StageDuration), 2)
}
