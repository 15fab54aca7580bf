package coach

import (
	"fmt"
	"strings"

	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

type finding struct {
	axis      tutor.Axis
	setting   string
	text      string
	rationale string
	evidence  map[string]string
}

type rule struct {
	axis  tutor.Axis
	match func(tutor.PerformanceSnapshot) (finding, bool)
}

// ruleset holds a coach's performance rules, in priority order, and its answers to
// learner-reported issue tags.
type ruleset struct {
	signals  []rule
	reported map[string][]finding
}

// Issue tags a learner can report.
const (
	TagLost            = "lost"
	TagBored           = "bored"
	TagTooSlow         = "too-slow"
	TagTooFast         = "too-fast"
	TagConfusing       = "confusing"
	TagTooVerbose      = "too-verbose"
	TagTooBrief        = "too-brief"
	TagTooHard         = "too-hard"
	TagTooEasy         = "too-easy"
	TagHarsh           = "harsh"
	TagUnclearFeedback = "unclear-feedback"
)

const (
	failRun       = 3
	passRun       = 3
	slowRatio     = 1.5
	quickRatio    = 0.75
	strongPass    = 0.8
	challengeFail = 2
	recurringMany = 2
)

func passStreak(s tutor.PerformanceSnapshot) bool {
	return s.StreakOutcome == tutor.OutcomePass && s.StreakLength >= passRun
}

// quick reports a pass streak finished well under budget. It needs measured time.
func quick(s tutor.PerformanceSnapshot) bool {
	return passStreak(s) && s.TimedEvents > 0 && s.AvgTimeRatio <= quickRatio
}

func evidence(s tutor.PerformanceSnapshot) map[string]string {
	return map[string]string{
		"pass_rate":         fmt.Sprintf("%.2f", s.PassRate),
		"consecutive_fails": fmt.Sprint(s.ConsecutiveFails),
		"avg_time_ratio":    fmt.Sprintf("%.2f", s.AvgTimeRatio),
		"timed_events":      fmt.Sprint(s.TimedEvents),
		"trend":             string(s.Trend),
		"frustration":       string(s.FrustrationLevel),
		"recurring":         strings.Join(s.RecurringIssues, ","),
	}
}

func hit(setting, text, rationale string, s tutor.PerformanceSnapshot) (finding, bool) {
	return finding{setting: setting, text: text, rationale: rationale, evidence: evidence(s)}, true
}

var rulesFor = map[tutor.AgentRole]ruleset{
	tutor.RoleCurriculum: {
		signals: []rule{
			{tutor.AxisPacing, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if s.ConsecutiveFails >= failRun || s.AvgTimeRatio >= slowRatio {
					return hit("slower",
						"Slow the pace. Do not advance the learner until the current project's basics hold up in review.",
						fmt.Sprintf("%d reviews in a row without a pass, time ratio %.2f", s.ConsecutiveFails, s.AvgTimeRatio), s)
				}
				return finding{}, false
			}},
			{tutor.AxisPacing, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if quick(s) {
					return hit("faster",
						"Pick up the pace. Recommend advancing as soon as the gate is open and skip optional review steps.",
						fmt.Sprintf("%d passes in a row, finishing at %.2f of the time budget", s.StreakLength, s.AvgTimeRatio), s)
				}
				return finding{}, false
			}},
			{tutor.AxisSequencing, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if len(s.RecurringIssues) >= recurringMany {
					return hit("remediate",
						fmt.Sprintf("Schedule remediation on %s before new material.", strings.Join(s.RecurringIssues, ", ")),
						"several issues keep recurring across recent reviews", s)
				}
				return finding{}, false
			}},
		},
		reported: map[string][]finding{
			TagLost: {
				{axis: tutor.AxisPacing, setting: "slower", text: "Slow down and restate where the learner is in the project before recommending anything new.", rationale: "learner reported feeling lost"},
				{axis: tutor.AxisSequencing, setting: "remediate", text: "Revisit the fundamentals of the current project before moving on.", rationale: "learner reported feeling lost"},
			},
			TagBored: {
				{axis: tutor.AxisPacing, setting: "faster", text: "Move faster and favor the next meaningful milestone over repetition.", rationale: "learner reported boredom"},
			},
			TagTooSlow: {
				{axis: tutor.AxisPacing, setting: "faster", text: "Move faster and favor the next meaningful milestone over repetition.", rationale: "learner reported the pace is too slow"},
			},
			TagTooFast: {
				{axis: tutor.AxisPacing, setting: "slower", text: "Slow the pace and consolidate before advancing.", rationale: "learner reported the pace is too fast"},
			},
		},
	},

	tutor.RoleTeacher: {
		signals: []rule{
			{tutor.AxisExplanationDepth, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if len(s.RecurringIssues) > 0 {
					tags := strings.Join(s.RecurringIssues, ", ")
					return hit("deeper",
						fmt.Sprintf("Go deeper on %s: explain the underlying concept, show a worked example, and point out the usual mistake.", tags),
						fmt.Sprintf("%s recurred in recent reviews", tags), s)
				}
				return finding{}, false
			}},
			{tutor.AxisExplanationDepth, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if s.Trend == tutor.TrendImproving && len(s.RecurringIssues) == 0 && passStreak(s) {
					return hit("brief",
						"Keep explanations brief. The learner is improving; give the key idea and let them work.",
						"improving trend with a passing streak and no recurring issues", s)
				}
				return finding{}, false
			}},
			{tutor.AxisExplanationStyle, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if s.Trend == tutor.TrendDegrading {
					return hit("more_examples",
						"Lead with concrete code examples before any theory.",
						"review results are getting worse", s)
				}
				return finding{}, false
			}},
		},
		reported: map[string][]finding{
			TagConfusing: {
				{axis: tutor.AxisExplanationDepth, setting: "deeper", text: "Explain step by step, define every term you use, and check each step is verifiable.", rationale: "learner reported explanations are confusing"},
				{axis: tutor.AxisExplanationStyle, setting: "more_examples", text: "Lead with concrete code examples before any theory.", rationale: "learner reported explanations are confusing"},
			},
			TagTooVerbose: {
				{axis: tutor.AxisExplanationDepth, setting: "brief", text: "Keep explanations short. One concept, one example, no digressions.", rationale: "learner reported explanations are too long"},
			},
			TagTooBrief: {
				{axis: tutor.AxisExplanationDepth, setting: "deeper", text: "Give fuller explanations with the reasoning behind each step.", rationale: "learner reported explanations are too short"},
			},
		},
	},

	tutor.RoleChallenger: {
		signals: []rule{
			{tutor.AxisTaskDifficulty, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if s.FrustrationLevel == tutor.FrustrationHigh || s.ConsecutiveFails >= challengeFail {
					return hit("decrease",
						"Assign a smaller, more focused task that can be finished and reviewed quickly.",
						fmt.Sprintf("%d reviews in a row without a pass, frustration %s", s.ConsecutiveFails, s.FrustrationLevel), s)
				}
				return finding{}, false
			}},
			{tutor.AxisTaskDifficulty, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if quick(s) {
					return hit("increase",
						"Raise the difficulty: larger scope, fewer hints, one production concern added.",
						fmt.Sprintf("%d passes in a row well under the time budget", s.StreakLength), s)
				}
				return finding{}, false
			}},
			{tutor.AxisScaffolding, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if s.FrustrationLevel == tutor.FrustrationMild || s.FrustrationLevel == tutor.FrustrationHigh {
					return hit("more",
						"Include a starting skeleton and name the first function to write.",
						fmt.Sprintf("frustration is %s", s.FrustrationLevel), s)
				}
				return finding{}, false
			}},
		},
		reported: map[string][]finding{
			TagTooHard: {
				{axis: tutor.AxisTaskDifficulty, setting: "decrease", text: "Assign a smaller, more focused task that can be finished and reviewed quickly.", rationale: "learner reported tasks are too hard"},
			},
			TagTooEasy: {
				{axis: tutor.AxisTaskDifficulty, setting: "increase", text: "Raise the difficulty: larger scope, fewer hints, one production concern added.", rationale: "learner reported tasks are too easy"},
			},
		},
	},

	tutor.RoleReviewer: {
		signals: []rule{
			{tutor.AxisFocusAreas, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if len(s.RecurringIssues) > 0 && s.Trend != tutor.TrendImproving {
					tags := strings.Join(s.RecurringIssues, ",")
					return hit(tags,
						fmt.Sprintf("Check %s first in every review and say plainly whether it is fixed.", strings.Join(s.RecurringIssues, ", ")),
						"the same issues keep coming back without improvement", s)
				}
				return finding{}, false
			}},
			{tutor.AxisStrictness, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if s.Trend == tutor.TrendDegrading && s.FrustrationLevel == tutor.FrustrationHigh {
					return hit("encouraging",
						"Be encouraging. Name what works before what is broken and keep must-fix items to blockers.",
						"results are getting worse and frustration is high", s)
				}
				return finding{}, false
			}},
			{tutor.AxisStrictness, func(s tutor.PerformanceSnapshot) (finding, bool) {
				if s.Trend == tutor.TrendImproving && s.PassRate >= strongPass {
					return hit("stricter",
						"Hold a higher bar. Flag production concerns as must-fix, not suggestions.",
						fmt.Sprintf("improving with a pass rate of %.2f", s.PassRate), s)
				}
				return finding{}, false
			}},
		},
		reported: map[string][]finding{
			TagHarsh: {
				{axis: tutor.AxisStrictness, setting: "encouraging", text: "Be encouraging. Name what works before what is broken and keep must-fix items to blockers.", rationale: "learner reported reviews feel harsh"},
			},
			TagUnclearFeedback: {
				{axis: tutor.AxisFocusAreas, setting: "actionable", text: "Every point must name the file and function and say exactly what to change.", rationale: "learner reported feedback is unclear"},
			},
		},
	},
}
