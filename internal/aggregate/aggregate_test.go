package aggregate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

var base = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func ev(i int, v tutor.Verdict, spent time.Duration, tags ...string) tutor.TaskEvent {
	return tutor.TaskEvent{
		ID:        fmt.Sprintf("e%d", i),
		TaskID:    fmt.Sprintf("task-%d", i),
		ProjectID: "01_cli",
		Timestamp: base.Add(time.Duration(i) * time.Hour),
		Outcome:   v.Outcome(),
		TimeSpent: spent,
		IssueTags: tags,
		Verdict:   v,
	}
}

func TestAggregateEmpty(t *testing.T) {
	snap := Aggregate(nil, DefaultWindow())
	assert.True(t, snap.Neutral())
	assert.Equal(t, tutor.TrendFlat, snap.Trend)
	assert.Equal(t, tutor.FrustrationNone, snap.FrustrationLevel)
	assert.Empty(t, snap.RecurringIssues)
	assert.Zero(t, snap.Frustration)
}

func TestAggregateFiltersMalformed(t *testing.T) {
	events := []tutor.TaskEvent{
		{TaskID: "", Timestamp: base, Outcome: tutor.OutcomePass},
		{TaskID: "x", Outcome: tutor.OutcomePass},
		{TaskID: "y", Timestamp: base, Outcome: "unknown"},
		ev(1, tutor.VerdictShipIt, 10*time.Minute),
	}
	snap := Aggregate(events, DefaultWindow())
	assert.Equal(t, 1, snap.Events)
	assert.Equal(t, 1.0, snap.PassRate)

	onlyBad := Aggregate(events[:3], DefaultWindow())
	assert.True(t, onlyBad.Neutral())
}

func TestRecurringIssues(t *testing.T) {
	events := []tutor.TaskEvent{
		ev(1, tutor.VerdictNeedsWork, 30*time.Minute, "missing-error-handling"),
		ev(2, tutor.VerdictNeedsWork, 30*time.Minute, "missing-error-handling", "no-types"),
		ev(3, tutor.VerdictNeedsWork, 30*time.Minute, "missing-error-handling"),
	}
	snap := Aggregate(events, DefaultWindow())
	require.Equal(t, []string{"missing-error-handling"}, snap.RecurringIssues)
	assert.Equal(t, []string{"missing-error-handling", "no-types"}, snap.TopIssues)
	assert.Equal(t, 3, snap.ConsecutiveFails)
	assert.Equal(t, tutor.OutcomePartial, snap.StreakOutcome)
	assert.Equal(t, 3, snap.StreakLength)
}

func TestRecurringOnlyWithinWindow(t *testing.T) {
	events := []tutor.TaskEvent{
		ev(1, tutor.VerdictNeedsWork, 0, "naming"),
		ev(2, tutor.VerdictNeedsWork, 0, "naming"),
		ev(3, tutor.VerdictShipIt, 0),
		ev(4, tutor.VerdictShipIt, 0),
		ev(5, tutor.VerdictShipIt, 0, "naming"),
	}
	snap := Aggregate(events, DefaultWindow())
	assert.Empty(t, snap.RecurringIssues)
	assert.Equal(t, []string{"naming"}, snap.TopIssues)
}

func TestTrend(t *testing.T) {
	improving := []tutor.TaskEvent{
		ev(1, tutor.VerdictMajorIssues, 0),
		ev(2, tutor.VerdictMajorIssues, 0),
		ev(3, tutor.VerdictNeedsWork, 0),
		ev(4, tutor.VerdictShipIt, 0),
		ev(5, tutor.VerdictShipIt, 0),
		ev(6, tutor.VerdictShipIt, 0),
	}
	assert.Equal(t, tutor.TrendImproving, Aggregate(improving, DefaultWindow()).Trend)

	degrading := []tutor.TaskEvent{
		ev(1, tutor.VerdictShipIt, 0),
		ev(2, tutor.VerdictShipIt, 0),
		ev(3, tutor.VerdictShipIt, 0),
		ev(4, tutor.VerdictNeedsWork, 0),
		ev(5, tutor.VerdictMajorIssues, 0),
		ev(6, tutor.VerdictMajorIssues, 0),
	}
	assert.Equal(t, tutor.TrendDegrading, Aggregate(degrading, DefaultWindow()).Trend)

	short := degrading[:3]
	assert.Equal(t, tutor.TrendFlat, Aggregate(short, DefaultWindow()).Trend)
}

func TestFrustrationMonotone(t *testing.T) {
	w := DefaultWindow()
	prev := -1.0
	for fails := 0; fails <= 6; fails++ {
		f := Frustration(fails, 0.5, w)
		assert.Greater(t, f, prev, "fails=%d", fails)
		assert.Less(t, f, 1.0)
		prev = f
	}

	prev = -1.0
	for _, over := range []float64{0, 0.25, 0.5, 1, 2, 4} {
		f := Frustration(2, over, w)
		assert.Greater(t, f, prev, "overtime=%v", over)
		prev = f
	}

	assert.Zero(t, Frustration(0, 0, w))
	assert.Zero(t, Frustration(-3, -1, w))
}

func TestFrustrationFromEvents(t *testing.T) {
	quick := []tutor.TaskEvent{
		ev(1, tutor.VerdictMajorIssues, 20*time.Minute),
	}
	slow := []tutor.TaskEvent{
		ev(1, tutor.VerdictMajorIssues, 20*time.Minute),
		ev(2, tutor.VerdictMajorIssues, 70*time.Minute),
		ev(3, tutor.VerdictMajorIssues, 90*time.Minute),
	}
	a := Aggregate(quick, DefaultWindow())
	b := Aggregate(slow, DefaultWindow())
	assert.Less(t, a.Frustration, b.Frustration)
	assert.Equal(t, tutor.FrustrationHigh, b.FrustrationLevel)

	recovered := append(slow, ev(4, tutor.VerdictShipIt, 10*time.Minute))
	assert.Zero(t, Aggregate(recovered, DefaultWindow()).Frustration)
}

func TestAvgTimeRatioUsesEventBudget(t *testing.T) {
	e := ev(1, tutor.VerdictShipIt, 30*time.Minute)
	e.ExpectedTime = 15 * time.Minute
	snap := Aggregate([]tutor.TaskEvent{e}, DefaultWindow())
	assert.InDelta(t, 2.0, snap.AvgTimeRatio, 1e-9)

	snap = Aggregate([]tutor.TaskEvent{ev(2, tutor.VerdictShipIt, 15*time.Minute)}, DefaultWindow())
	assert.InDelta(t, 0.5, snap.AvgTimeRatio, 1e-9)
}

func TestAvgTimeRatioSkipsUntimed(t *testing.T) {
	events := []tutor.TaskEvent{
		ev(1, tutor.VerdictShipIt, 0),
		ev(2, tutor.VerdictShipIt, 15*time.Minute),
		ev(3, tutor.VerdictShipIt, 0),
	}
	snap := Aggregate(events, DefaultWindow())
	assert.InDelta(t, 0.5, snap.AvgTimeRatio, 1e-9)
	assert.Equal(t, 1, snap.TimedEvents)

	untimed := []tutor.TaskEvent{ev(1, tutor.VerdictShipIt, 0), ev(2, tutor.VerdictShipIt, 0)}
	snap = Aggregate(untimed, DefaultWindow())
	assert.Zero(t, snap.AvgTimeRatio)
	assert.Zero(t, snap.TimedEvents)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, tutor.FrustrationNone, Level(0.1))
	assert.Equal(t, tutor.FrustrationMild, Level(0.3))
	assert.Equal(t, tutor.FrustrationHigh, Level(0.9))
}
