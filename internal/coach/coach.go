// Package coach turns performance snapshots into directives for the primary agents.
//
// There is one coach per primary agent. A coach only ever writes directives for its
// own agent, at most one per axis per evaluation, and is a pure function of the
// snapshot and the directives it issued before.
package coach

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

const (
	TriggerCadence = "cadence"
	TriggerIssue   = "issue"
)

// DefaultExpiryCycles is how many review cycles a directive survives without being
// reinforced.
const DefaultExpiryCycles = 6

// directiveSpace namespaces directive IDs so the same finding at the same cycle
// always gets the same ID.
var directiveSpace = uuid.MustParse("6f1c9a52-3b0e-4f1d-9a4e-2c8d7b5e1a30")

// Options configures a coach.
type Options struct {
	ExpiryCycles int
	Now          func() time.Time
}

// Coach evaluates the signals relevant to one primary agent.
type Coach struct {
	role   tutor.AgentRole
	rules  ruleset
	expiry tutor.ExpiryPolicy
	now    func() time.Time
}

// New returns the coach for role. It panics on a non-primary role, which is a
// programming error.
func New(role tutor.AgentRole, opts Options) *Coach {
	rules, ok := rulesFor[role]
	if !ok {
		panic(fmt.Sprintf("coach: no rules for role %q", role))
	}
	if opts.ExpiryCycles <= 0 {
		opts.ExpiryCycles = DefaultExpiryCycles
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coach{
		role:   role,
		rules:  rules,
		expiry: tutor.ExpiryPolicy{Cycles: opts.ExpiryCycles},
		now:    opts.Now,
	}
}

// All returns one coach per primary agent in canonical order.
func All(opts Options) []*Coach {
	var out []*Coach
	for _, r := range tutor.PrimaryRoles() {
		out = append(out, New(r, opts))
	}
	return out
}

// Role is the primary agent this coach targets.
func (c *Coach) Role() tutor.AgentRole { return c.role }

// Owns reports whether tag is an issue this coach answers.
func (c *Coach) Owns(tag string) bool {
	_, ok := c.rules.reported[tag]
	return ok
}

// Evaluate returns the directives this coach wants active for the snapshot, sorted by
// axis. When the learner reported an issue this coach owns, only that report is
// answered; otherwise the performance rules apply. A directive still active in
// history with the same setting is re-emitted under its existing identity with its
// reinforcement cycle advanced.
func (c *Coach) Evaluate(snap tutor.PerformanceSnapshot, history []tutor.Directive) []tutor.Directive {
	if snap.Neutral() {
		return nil
	}

	trigger := TriggerCadence
	found := c.answerReports(snap)
	if len(found) > 0 {
		trigger = TriggerIssue
	} else {
		found = c.applyRules(snap)
	}

	axes := make([]tutor.Axis, 0, len(found))
	for axis := range found {
		axes = append(axes, axis)
	}
	sort.Slice(axes, func(i, j int) bool { return axes[i] < axes[j] })

	out := make([]tutor.Directive, 0, len(axes))
	for _, axis := range axes {
		out = append(out, c.directive(axis, found[axis], snap, history, trigger))
	}
	return out
}

func (c *Coach) answerReports(snap tutor.PerformanceSnapshot) map[tutor.Axis]finding {
	found := make(map[tutor.Axis]finding)
	tags := append([]string(nil), snap.ReportedIssues...)
	sort.Strings(tags)
	for _, tag := range tags {
		for _, f := range c.rules.reported[tag] {
			if _, taken := found[f.axis]; taken {
				continue
			}
			f.evidence = map[string]string{"reported": tag}
			found[f.axis] = f
		}
	}
	return found
}

func (c *Coach) applyRules(snap tutor.PerformanceSnapshot) map[tutor.Axis]finding {
	found := make(map[tutor.Axis]finding)
	for _, r := range c.rules.signals {
		if _, taken := found[r.axis]; taken {
			continue
		}
		if f, ok := r.match(snap); ok {
			f.axis = r.axis
			found[r.axis] = f
		}
	}
	return found
}

func (c *Coach) directive(axis tutor.Axis, f finding, snap tutor.PerformanceSnapshot, history []tutor.Directive, trigger string) tutor.Directive {
	prov := tutor.Provenance{Trigger: trigger, Evidence: f.evidence}

	for _, h := range history {
		if h.Coach != c.role || h.TargetAgent != c.role || h.Axis != axis || h.Setting != f.setting {
			continue
		}
		if h.Expired(snap.Cycle) {
			continue
		}
		h.Text = f.text
		h.Rationale = f.rationale
		h.Provenance = prov
		if snap.Cycle > h.ReinforcedCycle {
			h.ReinforcedCycle = snap.Cycle
		}
		return h
	}

	seed := fmt.Sprintf("%s|%s|%s|%d", c.role, axis, f.setting, snap.Cycle)
	return tutor.Directive{
		ID:              uuid.NewSHA1(directiveSpace, []byte(seed)).String(),
		Coach:           c.role,
		TargetAgent:     c.role,
		Axis:            axis,
		Setting:         f.setting,
		Text:            f.text,
		Rationale:       f.rationale,
		CreatedAt:       c.now().UTC(),
		CreatedCycle:    snap.Cycle,
		ReinforcedCycle: snap.Cycle,
		Expiry:          c.expiry,
		Provenance:      prov,
	}
}
