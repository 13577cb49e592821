package drift

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowStats(t *testing.T) {
	w := newWindow(5)
	for i := 1; i <= 5; i++ {
		w.push(float64(i))
	}
	require.Equal(t, 5, w.count)
	assert.InDelta(t, 3.0, w.mean, 1e-9)

	// Eviction keeps the window bounded and shifts the mean.
	w.push(10)
	w.push(10)
	assert.Equal(t, 5, w.count)
	assert.Greater(t, w.mean, 3.0)
}

func TestWindowEvictionMatchesNaiveStats(t *testing.T) {
	w := newWindow(4)
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}
	for _, v := range values {
		w.push(v)
	}

	tail := values[len(values)-4:]
	var sum float64
	for _, v := range tail {
		sum += v
	}
	mean := sum / 4
	var m2 float64
	for _, v := range tail {
		m2 += (v - mean) * (v - mean)
	}
	wantVar := m2 / 3

	assert.InDelta(t, mean, w.mean, 1e-9)
	assert.InDelta(t, wantVar, w.variance(), 1e-9)
}

func TestNoDriftWhenStable(t *testing.T) {
	tr := NewTracker(50, 10)
	for i := 0; i < 100; i++ {
		// Small deterministic wobble around 100.
		tr.Push(MetricReturns, 100.0+math.Sin(float64(i))*1.0, uint64(i))
	}
	sev := tr.ComputeOverall()
	assert.LessOrEqual(t, sev, SeverityLow)
	assert.InDelta(t, 1.0, tr.PositionMultiplier(), 0.11)
}

func TestSeverityIncreasesAfterShift(t *testing.T) {
	tr := DefaultWindows()
	for i := 0; i < 100; i++ {
		tr.UpdateFromMarket(
			0.01+math.Sin(float64(i))*0.001,
			0.001,
			0.001,
			0.0001,
			0.5,
			uint64(i),
		)
	}
	before := tr.ComputeOverall()
	multBefore := tr.PositionMultiplier()

	// Shift every metric 3x to 10x for 20 observations.
	for i := 100; i < 120; i++ {
		tr.UpdateFromMarket(0.1, 0.01, 0.01, 0.001, 5.0, uint64(i))
	}
	after := tr.ComputeOverall()
	multAfter := tr.PositionMultiplier()

	assert.Greater(t, after, before, "severity must increase after regime shift")
	if after >= SeverityModerate {
		assert.Less(t, multAfter, multBefore)
	}
}

func TestComputeOverallIsTheOnlyAggregationPoint(t *testing.T) {
	tr := DefaultWindows()
	for i := 0; i < 100; i++ {
		tr.UpdateFromMarket(0.01, 0.001, 0.001, 0.0001, 0.5, uint64(i))
	}
	tr.ComputeOverall()
	require.Equal(t, SeverityNone, tr.Overall())

	// Pushing shifted data must not move the aggregate until the next
	// ComputeOverall call.
	for i := 100; i < 120; i++ {
		tr.UpdateFromMarket(0.2, 0.02, 0.02, 0.002, 8.0, uint64(i))
	}
	assert.Equal(t, SeverityNone, tr.Overall())

	assert.Greater(t, tr.ComputeOverall(), SeverityNone)
}

func TestSeverityMultipliersMonotone(t *testing.T) {
	tiers := []Severity{SeverityNone, SeverityLow, SeverityModerate, SeveritySevere, SeverityCritical}
	for i := 1; i < len(tiers); i++ {
		assert.LessOrEqual(t,
			tiers[i].PositionMultiplier(), tiers[i-1].PositionMultiplier(),
			"%s vs %s", tiers[i], tiers[i-1])
	}
	assert.Equal(t, 1.0, SeverityNone.PositionMultiplier())
	assert.Equal(t, 0.0, SeverityCritical.PositionMultiplier())
}

func TestRecommendedActionsBySeverity(t *testing.T) {
	tr := DefaultWindows()
	tr.overall = SeverityModerate
	kinds := map[ActionKind]bool{}
	for _, a := range tr.RecommendedActions() {
		kinds[a.Kind] = true
	}
	assert.True(t, kinds[ActionReduceExposure])
	assert.True(t, kinds[ActionWidenNoTradeZone])

	tr.overall = SeverityCritical
	kinds = map[ActionKind]bool{}
	for _, a := range tr.RecommendedActions() {
		kinds[a.Kind] = true
	}
	assert.True(t, kinds[ActionHaltNewPositions])
	assert.True(t, kinds[ActionCloseExisting])
}

func TestUnknownMetricDropped(t *testing.T) {
	tr := DefaultWindows()
	tr.Push("not_a_metric", 1.0, 5)
	assert.Equal(t, uint64(5), tr.LastUpdateTs())
	assert.Empty(t, tr.Reports())
}
