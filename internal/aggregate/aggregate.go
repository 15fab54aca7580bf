// Package aggregate derives performance signals from a learner's task log.
//
// Everything here is a pure function of its input: no hidden state, no errors.
// Malformed events are skipped rather than failing the whole aggregation.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Window configures how much history feeds each signal.
type Window struct {
	// Recent is W: a tag is recurring when it appears in at least two of the last W events.
	Recent int `yaml:"recent"`
	// TopK bounds the TopIssues list.
	TopK int `yaml:"top_k"`
	// Expected is the time budget used when an event carries none.
	Expected time.Duration `yaml:"expected"`
	// FailWeight and OvertimeWeight scale the frustration exponent.
	FailWeight     float64 `yaml:"fail_weight"`
	OvertimeWeight float64 `yaml:"overtime_weight"`
}

// DefaultWindow mirrors the three-review coaching cadence.
func DefaultWindow() Window {
	return Window{
		Recent:         3,
		TopK:           3,
		Expected:       30 * time.Minute,
		FailWeight:     0.6,
		OvertimeWeight: 0.8,
	}
}

func (w Window) normalized() Window {
	d := DefaultWindow()
	if w.Recent <= 0 {
		w.Recent = d.Recent
	}
	if w.TopK <= 0 {
		w.TopK = d.TopK
	}
	if w.Expected <= 0 {
		w.Expected = d.Expected
	}
	if w.FailWeight <= 0 {
		w.FailWeight = d.FailWeight
	}
	if w.OvertimeWeight <= 0 {
		w.OvertimeWeight = d.OvertimeWeight
	}
	return w
}

const (
	trendDelta     = 0.2
	mildThreshold  = 0.3
	highThreshold  = 0.6
	recurringFloor = 2
)

// Aggregate computes a PerformanceSnapshot from events in log order.
// Empty or entirely malformed input yields a neutral snapshot.
func Aggregate(events []tutor.TaskEvent, w Window) tutor.PerformanceSnapshot {
	w = w.normalized()
	valid := Filter(events)

	snap := tutor.PerformanceSnapshot{
		Trend:            tutor.TrendFlat,
		FrustrationLevel: tutor.FrustrationNone,
		RecurringIssues:  []string{},
		TopIssues:        []string{},
	}
	if len(valid) == 0 {
		return snap
	}

	snap.Events = len(valid)
	snap.PassRate = meanScore(valid)
	snap.StreakOutcome, snap.StreakLength = trailingStreak(valid)
	snap.ConsecutiveFails = trailingFails(valid)
	snap.RecurringIssues = recurring(valid, w.Recent)
	snap.TopIssues = topIssues(valid, w.TopK)
	snap.AvgTimeRatio, snap.TimedEvents = avgTimeRatio(valid, w.Expected)
	snap.Trend = trend(valid, w.Recent)

	overtime := 0.0
	for _, e := range valid[len(valid)-snap.ConsecutiveFails:] {
		if e.Timed() {
			overtime += math.Max(0, timeRatio(e, w.Expected)-1)
		}
	}
	snap.Frustration = Frustration(snap.ConsecutiveFails, overtime, w)
	snap.FrustrationLevel = Level(snap.Frustration)
	return snap
}

// Filter drops malformed events, keeping log order.
func Filter(events []tutor.TaskEvent) []tutor.TaskEvent {
	out := make([]tutor.TaskEvent, 0, len(events))
	for _, e := range events {
		if e.Valid() {
			out = append(out, e)
		}
	}
	return out
}

// Frustration maps a trailing failing run onto [0,1). It is non-decreasing in both
// the number of consecutive non-passing reviews and the accumulated time overrun
// across that run, so coaches can reason about degrees instead of a single cutoff.
func Frustration(consecutiveFails int, overtime float64, w Window) float64 {
	w = w.normalized()
	if consecutiveFails < 0 {
		consecutiveFails = 0
	}
	if overtime < 0 {
		overtime = 0
	}
	x := w.FailWeight*float64(consecutiveFails) + w.OvertimeWeight*overtime
	return 1 - math.Exp(-x)
}

// Level buckets a frustration score.
func Level(score float64) tutor.FrustrationLevel {
	switch {
	case score >= highThreshold:
		return tutor.FrustrationHigh
	case score >= mildThreshold:
		return tutor.FrustrationMild
	}
	return tutor.FrustrationNone
}

func meanScore(events []tutor.TaskEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range events {
		sum += e.Outcome.Score()
	}
	return sum / float64(len(events))
}

func trailingStreak(events []tutor.TaskEvent) (tutor.Outcome, int) {
	last := events[len(events)-1].Outcome
	n := 0
	for i := len(events) - 1; i >= 0 && events[i].Outcome == last; i-- {
		n++
	}
	return last, n
}

func trailingFails(events []tutor.TaskEvent) int {
	n := 0
	for i := len(events) - 1; i >= 0 && events[i].Outcome != tutor.OutcomePass; i-- {
		n++
	}
	return n
}

func lastN(events []tutor.TaskEvent, n int) []tutor.TaskEvent {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

func recurring(events []tutor.TaskEvent, w int) []string {
	counts := make(map[string]int)
	for _, e := range lastN(events, w) {
		for _, tag := range tutor.NormalizeTags(e.IssueTags) {
			counts[tag]++
		}
	}
	out := []string{}
	for tag, n := range counts {
		if n >= recurringFloor {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

func topIssues(events []tutor.TaskEvent, k int) []string {
	counts := make(map[string]int)
	for _, e := range events {
		for _, tag := range tutor.NormalizeTags(e.IssueTags) {
			counts[tag]++
		}
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > k {
		tags = tags[:k]
	}
	return tags
}

func timeRatio(e tutor.TaskEvent, fallback time.Duration) float64 {
	expected := e.ExpectedTime
	if expected <= 0 {
		expected = fallback
	}
	return float64(e.TimeSpent) / float64(expected)
}

// avgTimeRatio averages over timed events only. An event with no measured time
// says nothing about pace.
func avgTimeRatio(events []tutor.TaskEvent, fallback time.Duration) (float64, int) {
	sum, n := 0.0, 0
	for _, e := range events {
		if !e.Timed() {
			continue
		}
		sum += timeRatio(e, fallback)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func trend(events []tutor.TaskEvent, w int) tutor.Trend {
	if len(events) <= w {
		return tutor.TrendFlat
	}
	recent := events[len(events)-w:]
	start := len(events) - 2*w
	if start < 0 {
		start = 0
	}
	prior := events[start : len(events)-w]

	delta := meanScore(recent) - meanScore(prior)
	switch {
	case delta > trendDelta:
		return tutor.TrendImproving
	case delta < -trendDelta:
		return tutor.TrendDegrading
	}
	return tutor.TrendFlat
}
