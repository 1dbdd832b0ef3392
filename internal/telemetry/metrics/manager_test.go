package metrics_test

import (
	"testing"

	"github.com/2beens/ironlog/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_metricsRegistered(t *testing.T) {
	manager, registry := metrics.NewTestManagerAndRegistry()
	require.NotNil(t, manager)
	require.NotNil(t, registry)

	manager.CounterSetsAdded.Inc()
	manager.CounterSummariesCacheHits.Add(2)
	manager.GaugeLifeSignal.Set(1)

	assert.Equal(t, float64(1), testutil.ToFloat64(manager.CounterSetsAdded))
	assert.Equal(t, float64(2), testutil.ToFloat64(manager.CounterSummariesCacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(manager.GaugeLifeSignal))

	// the manager registers on the same registry the metrics endpoint serves from
	count, err := testutil.GatherAndCount(
		registry,
		"backend_test_server_workout_sets_added",
		"backend_test_server_summaries_cache_hits",
		"backend_test_server_life_signal",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
