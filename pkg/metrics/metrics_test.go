package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		RemindersFired,
		DispatchFailures,
		TickDuration,
		MalformedEvents,
		CleanupJobs,
		VotesRetracted,
		ReactionsHandled,
		CircuitBreakerState,
		NotifierCalls,
	}

	for _, c := range collectors {
		assert.NotNil(t, c)
	}
}

func TestRemindersFiredByTier(t *testing.T) {
	before := testutil.ToFloat64(RemindersFired.WithLabelValues("halfway"))
	RemindersFired.WithLabelValues("halfway").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RemindersFired.WithLabelValues("halfway")))
}
