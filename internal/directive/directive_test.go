package directive

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func dir(id string, agent tutor.AgentRole, axis tutor.Axis, setting string, age time.Duration, cycle int) tutor.Directive {
	return tutor.Directive{
		ID:              id,
		Coach:           agent,
		TargetAgent:     agent,
		Axis:            axis,
		Setting:         setting,
		Text:            "be " + setting,
		Rationale:       "because",
		CreatedAt:       now.Add(-age),
		CreatedCycle:    cycle,
		ReinforcedCycle: cycle,
		Expiry:          tutor.ExpiryPolicy{Cycles: 6},
	}
}

func TestMergeLastWriterWins(t *testing.T) {
	older := dir("a", tutor.RoleTeacher, tutor.AxisExplanationDepth, "deeper", time.Hour, 3)
	newer := dir("b", tutor.RoleTeacher, tutor.AxisExplanationDepth, "brief", 0, 6)

	next, retired := Merge([]tutor.Directive{older}, []tutor.Directive{newer}, 6)
	require.Len(t, next, 1)
	assert.Equal(t, "b", next[0].ID)
	require.Len(t, retired, 1)
	assert.Equal(t, tutor.RetireSuperseded, retired[0].Reason)
	assert.Equal(t, "a", retired[0].Directive.ID)

	// An older incoming directive never displaces a newer active one.
	next, retired = Merge([]tutor.Directive{newer}, []tutor.Directive{older}, 6)
	require.Len(t, next, 1)
	assert.Equal(t, "b", next[0].ID)
	assert.Empty(t, retired)
}

func TestMergeTieBreaksOnID(t *testing.T) {
	x := dir("x", tutor.RoleChallenger, tutor.AxisTaskDifficulty, "decrease", 0, 3)
	y := dir("y", tutor.RoleChallenger, tutor.AxisTaskDifficulty, "increase", 0, 3)

	next, _ := Merge(nil, []tutor.Directive{y, x}, 3)
	require.Len(t, next, 1)
	assert.Equal(t, "y", next[0].ID)
}

func TestMergeReinforcementKeepsIdentity(t *testing.T) {
	d := dir("a", tutor.RoleReviewer, tutor.AxisFocusAreas, "errors", time.Hour, 3)
	again := d
	again.ReinforcedCycle = 6

	next, retired := Merge([]tutor.Directive{d}, []tutor.Directive{again}, 6)
	require.Len(t, next, 1)
	assert.Empty(t, retired)
	assert.Equal(t, "a", next[0].ID)
	assert.Equal(t, 6, next[0].ReinforcedCycle)
	assert.Equal(t, 3, next[0].CreatedCycle)
}

func TestMergeExpiresUnreinforced(t *testing.T) {
	stale := dir("old", tutor.RoleCurriculum, tutor.AxisPacing, "slower", 2*time.Hour, 3)
	fresh := dir("new", tutor.RoleCurriculum, tutor.AxisSequencing, "remediate", time.Hour, 8)

	next, retired := Merge([]tutor.Directive{stale, fresh}, nil, 9)
	require.Len(t, next, 1)
	assert.Equal(t, "new", next[0].ID)
	require.Len(t, retired, 1)
	assert.Equal(t, tutor.RetireExpired, retired[0].Reason)
	assert.Equal(t, 9, retired[0].RetiredAt)
}

func TestMergeRejectsInadmissible(t *testing.T) {
	wrongAgent := dir("w", "council", tutor.AxisPacing, "slower", 0, 1)
	wrongAxis := dir("z", tutor.RoleTeacher, tutor.AxisPacing, "slower", 0, 1)
	blank := dir("b", tutor.RoleTeacher, tutor.AxisExplanationStyle, "more_examples", 0, 1)
	blank.Text = ""

	next, retired := Merge(nil, []tutor.Directive{wrongAgent, wrongAxis, blank}, 1)
	assert.Empty(t, next)
	assert.Empty(t, retired)
}

func TestMergeNeverLeavesConflicts(t *testing.T) {
	var incoming []tutor.Directive
	settings := []string{"decrease", "increase", "decrease", "increase"}
	for i, s := range settings {
		incoming = append(incoming, dir(string(rune('a'+i)), tutor.RoleChallenger, tutor.AxisTaskDifficulty, s, time.Duration(i)*time.Minute, 1))
	}
	// Duplicate slots already present in the active set are collapsed as well.
	active := []tutor.Directive{
		dir("p", tutor.RoleTeacher, tutor.AxisExplanationDepth, "deeper", time.Hour, 1),
		dir("q", tutor.RoleTeacher, tutor.AxisExplanationDepth, "brief", 30*time.Minute, 1),
	}

	next, retired := Merge(active, incoming, 1)
	assert.Empty(t, Conflicts(next))
	assert.Len(t, next, 2)
	assert.Len(t, retired, 4)
	for _, d := range next {
		if d.TargetAgent == tutor.RoleTeacher {
			assert.Equal(t, "q", d.ID)
		}
	}
}

func TestComposeContextDeterministic(t *testing.T) {
	active := []tutor.Directive{
		dir("a", tutor.RoleTeacher, tutor.AxisExplanationDepth, "deeper", time.Hour, 3),
		dir("b", tutor.RoleTeacher, tutor.AxisExplanationStyle, "more_examples", 0, 3),
		dir("c", tutor.RoleChallenger, tutor.AxisTaskDifficulty, "decrease", 0, 3),
	}
	reversed := []tutor.Directive{active[2], active[1], active[0]}

	first := ComposeContext(tutor.RoleTeacher, "You are a teacher.", active)
	second := ComposeContext(tutor.RoleTeacher, "You are a teacher.", reversed)
	assert.Equal(t, first, second)

	assert.True(t, strings.HasPrefix(first, "You are a teacher.\n\n## Coaching directives"))
	assert.Less(t, strings.Index(first, "explanation_style"), strings.Index(first, "explanation_depth"),
		"most recent directive comes first")
	assert.NotContains(t, first, "task_difficulty")
}

func TestComposeContextWithoutDirectives(t *testing.T) {
	assert.Equal(t, "base", ComposeContext(tutor.RoleReviewer, "base", nil))
}

func TestComposeContextOneDirectivePerAxis(t *testing.T) {
	active := []tutor.Directive{
		dir("a", tutor.RoleTeacher, tutor.AxisExplanationDepth, "deeper", time.Hour, 3),
		dir("b", tutor.RoleTeacher, tutor.AxisExplanationDepth, "brief", 0, 6),
	}
	out := ComposeContext(tutor.RoleTeacher, "base", active)
	assert.Contains(t, out, "[explanation_depth: brief]")
	assert.NotContains(t, out, "[explanation_depth: deeper]")
}

func TestComposeAfterLiveDropsExpired(t *testing.T) {
	stale := dir("a", tutor.RoleTeacher, tutor.AxisExplanationDepth, "deeper", time.Hour, 1)
	fresh := dir("b", tutor.RoleTeacher, tutor.AxisExplanationStyle, "more_examples", 0, 6)
	active := []tutor.Directive{stale, fresh}

	raw := ComposeContext(tutor.RoleTeacher, "base", active)
	assert.Contains(t, raw, "[explanation_depth: deeper]")

	out := ComposeContext(tutor.RoleTeacher, "base", Live(active, 7))
	assert.NotContains(t, out, "[explanation_depth: deeper]")
	assert.Contains(t, out, "[explanation_style: more_examples]")
}

func TestLive(t *testing.T) {
	active := []tutor.Directive{
		dir("a", tutor.RoleTeacher, tutor.AxisExplanationDepth, "deeper", time.Hour, 0),
		dir("b", tutor.RoleTeacher, tutor.AxisExplanationStyle, "more_examples", 0, 5),
	}
	live := Live(active, 6)
	require.Len(t, live, 1)
	assert.Equal(t, "b", live[0].ID)
}
