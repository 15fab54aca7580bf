// Package directive keeps the active directive set consistent and renders it into
// agent instructions.
//
// The set is a key-value map from (agent, axis) to exactly one directive. Every
// change goes through Merge, so two directives can never disagree about the same
// axis of the same agent.
package directive

import (
	"slices"
	"sort"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// Merge folds incoming coach output into the active set at the given review cycle.
// Within an axis the most recently created directive wins; a directive re-emitted
// with its existing ID is a reinforcement. Directives that went unreinforced for
// their full lifetime are expired afterwards. Both results are sorted.
func Merge(active, incoming []tutor.Directive, cycle int) (next []tutor.Directive, retired []tutor.RetiredDirective) {
	slots := make(map[tutor.DirectiveKey]tutor.Directive, len(active))

	place := func(d tutor.Directive) {
		cur, ok := slots[d.Key()]
		switch {
		case !ok:
			slots[d.Key()] = d
		case cur.ID == d.ID:
			if d.ReinforcedCycle < cur.ReinforcedCycle {
				d.ReinforcedCycle = cur.ReinforcedCycle
			}
			slots[d.Key()] = d
		case d.NewerThan(cur):
			retired = append(retired, tutor.RetiredDirective{Directive: cur, Reason: tutor.RetireSuperseded, RetiredAt: cycle})
			slots[d.Key()] = d
		}
	}

	for _, d := range sorted(active) {
		place(d)
	}
	for _, d := range sorted(incoming) {
		if !Admissible(d) {
			continue
		}
		place(d)
	}

	for key, d := range slots {
		if d.Expired(cycle) {
			retired = append(retired, tutor.RetiredDirective{Directive: d, Reason: tutor.RetireExpired, RetiredAt: cycle})
			delete(slots, key)
		}
	}

	next = make([]tutor.Directive, 0, len(slots))
	for _, d := range slots {
		next = append(next, d)
	}
	sortCanonical(next)
	sort.SliceStable(retired, func(i, j int) bool {
		a, b := retired[i].Directive, retired[j].Directive
		if a.TargetAgent != b.TargetAgent || a.Axis != b.Axis {
			return keyLess(a, b)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return next, retired
}

// Admissible reports whether a directive may enter the active set: it must target a
// primary agent on one of that agent's axes and carry text.
func Admissible(d tutor.Directive) bool {
	if !d.TargetAgent.Valid() || d.Text == "" || d.ID == "" {
		return false
	}
	return slices.Contains(tutor.AxesFor(d.TargetAgent), d.Axis)
}

// Live drops directives that have expired by the given review cycle. Reviews can
// advance the clock between coaching runs, so readers filter before composing.
func Live(active []tutor.Directive, cycle int) []tutor.Directive {
	out := make([]tutor.Directive, 0, len(active))
	for _, d := range active {
		if !d.Expired(cycle) {
			out = append(out, d)
		}
	}
	return out
}

// Conflicts returns the keys holding more than one directive. A set produced by
// Merge never has any.
func Conflicts(active []tutor.Directive) []tutor.DirectiveKey {
	seen := make(map[tutor.DirectiveKey]int)
	for _, d := range active {
		seen[d.Key()]++
	}
	var out []tutor.DirectiveKey
	for k, n := range seen {
		if n > 1 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Agent != out[j].Agent {
			return roleIndex(out[i].Agent) < roleIndex(out[j].Agent)
		}
		return out[i].Axis < out[j].Axis
	})
	return out
}

func sorted(ds []tutor.Directive) []tutor.Directive {
	out := slices.Clone(ds)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortCanonical(ds []tutor.Directive) {
	sort.Slice(ds, func(i, j int) bool { return keyLess(ds[i], ds[j]) })
}

func keyLess(a, b tutor.Directive) bool {
	if a.TargetAgent != b.TargetAgent {
		return roleIndex(a.TargetAgent) < roleIndex(b.TargetAgent)
	}
	return a.Axis < b.Axis
}

func roleIndex(r tutor.AgentRole) int {
	return slices.Index(tutor.PrimaryRoles(), r)
}
