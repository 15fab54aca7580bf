package directive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

const header = `## Coaching directives
Your coach issued these from this learner's recent results. Each governs one aspect of
your behavior; follow them over any general guidance above.`

// ComposeContext appends the agent's active directives, most recent first, after its
// base role instructions. The output depends only on the arguments.
//
// It does not know the review clock, so it cannot expire anything: pass the set
// through Live first.
func ComposeContext(agent tutor.AgentRole, base string, active []tutor.Directive) string {
	picked := ForAgent(agent, active)
	if len(picked) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "\n"))
	b.WriteString("\n\n")
	b.WriteString(header)
	b.WriteString("\n")
	for _, d := range picked {
		fmt.Fprintf(&b, "\n- [%s: %s] %s", d.Axis, d.Setting, d.Text)
		if d.Rationale != "" {
			fmt.Fprintf(&b, "\n  Why: %s", d.Rationale)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// ForAgent returns one directive per axis for agent, most recently created first.
func ForAgent(agent tutor.AgentRole, active []tutor.Directive) []tutor.Directive {
	byAxis := make(map[tutor.Axis]tutor.Directive)
	for _, d := range active {
		if d.TargetAgent != agent {
			continue
		}
		if cur, ok := byAxis[d.Axis]; !ok || d.NewerThan(cur) {
			byAxis[d.Axis] = d
		}
	}

	out := make([]tutor.Directive, 0, len(byAxis))
	for _, d := range byAxis {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Axis < out[j].Axis
	})
	return out
}
