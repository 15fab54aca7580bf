package coach

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// DefaultInterval is how many completed reviews trigger an automatic coaching cycle.
const DefaultInterval = 3

// Cadence decides when coaching runs automatically.
type Cadence struct {
	Interval int
}

// Due reports whether a coaching cycle is owed after reviewsSinceCoaching completed
// reviews. The caller resets its counter when the cycle runs, so each interval
// triggers exactly once.
func (c Cadence) Due(reviewsSinceCoaching int) bool {
	n := c.Interval
	if n <= 0 {
		n = DefaultInterval
	}
	return reviewsSinceCoaching >= n
}

var keywords = []struct {
	tag   string
	words []string
}{
	{TagTooHard, []string{"too hard", "too difficult", "can't do", "cannot do", "stuck", "over my head"}},
	{TagTooEasy, []string{"too easy", "trivial", "not challenging"}},
	{TagUnclearFeedback, []string{"unclear feedback", "vague feedback", "review is vague", "review was vague", "don't know what to fix"}},
	{TagHarsh, []string{"harsh", "nitpick", "too strict", "discouraging"}},
	{TagTooVerbose, []string{"too verbose", "too long", "wall of text", "too much text"}},
	{TagTooBrief, []string{"too brief", "too short", "more detail"}},
	{TagConfusing, []string{"confus", "don't understand", "doesn't make sense", "makes no sense"}},
	{TagLost, []string{"lost", "overwhelm", "no idea where"}},
	{TagBored, []string{"bored", "boring", "repetitive"}},
	{TagTooSlow, []string{"too slow", "moving slowly", "speed up"}},
	{TagTooFast, []string{"too fast", "rushed", "slow down"}},
}

// Classify guesses the issue tag from free text. It returns "" when nothing matches.
func Classify(text string) string {
	t := strings.ToLower(text)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(t, w) {
				return k.tag
			}
		}
	}
	return ""
}

// Known reports whether tag is answered by any coach.
func Known(tag string) bool {
	for _, rs := range rulesFor {
		if _, ok := rs.reported[tag]; ok {
			return true
		}
	}
	return false
}

// ForIssue picks the coaches that own tag, or every coach when the tag is empty or
// unknown.
func ForIssue(coaches []*Coach, tag string) []*Coach {
	var out []*Coach
	for _, c := range coaches {
		if c.Owns(tag) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return coaches
	}
	return out
}

// RunSet evaluates coaches in parallel and returns their directives in coach order.
// Coaches share nothing; results are only combined here.
func RunSet(ctx context.Context, coaches []*Coach, snap tutor.PerformanceSnapshot, history []tutor.Directive) ([]tutor.Directive, error) {
	results := make([][]tutor.Directive, len(coaches))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range coaches {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("evaluate %s coach: %w", c.Role(), err)
			}
			results[i] = c.Evaluate(snap, history)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []tutor.Directive
	for _, ds := range results {
		out = append(out, ds...)
	}
	return out, nil
}
