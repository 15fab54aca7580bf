package tutor

import (
	"slices"
	"sort"
	"time"
)

// AgentRole identifies one of the four primary agents.
type AgentRole string

const (
	RoleCurriculum AgentRole = "curriculum"
	RoleTeacher    AgentRole = "teacher"
	RoleChallenger AgentRole = "challenger"
	RoleReviewer   AgentRole = "reviewer"
)

// PrimaryRoles returns the primary agent roles in canonical order.
func PrimaryRoles() []AgentRole {
	return []AgentRole{RoleCurriculum, RoleTeacher, RoleChallenger, RoleReviewer}
}

// Valid reports whether r names a primary agent.
func (r AgentRole) Valid() bool {
	return slices.Contains(PrimaryRoles(), r)
}

// Axis is a named dimension of an agent's behavior that a directive can set.
type Axis string

const (
	AxisPacing           Axis = "pacing"
	AxisSequencing       Axis = "sequencing"
	AxisExplanationDepth Axis = "explanation_depth"
	AxisExplanationStyle Axis = "explanation_style"
	AxisTaskDifficulty   Axis = "task_difficulty"
	AxisScaffolding      Axis = "scaffolding"
	AxisStrictness       Axis = "strictness"
	AxisFocusAreas       Axis = "focus_areas"
)

// AxesFor returns the behavioral axes a role exposes to its coach.
func AxesFor(role AgentRole) []Axis {
	switch role {
	case RoleCurriculum:
		return []Axis{AxisPacing, AxisSequencing}
	case RoleTeacher:
		return []Axis{AxisExplanationDepth, AxisExplanationStyle}
	case RoleChallenger:
		return []Axis{AxisTaskDifficulty, AxisScaffolding}
	case RoleReviewer:
		return []Axis{AxisStrictness, AxisFocusAreas}
	}
	return nil
}

// Preferences are the learner's stated learning-style preferences.
type Preferences struct {
	TaskSize         string `json:"task_size" yaml:"task_size"`                 // small, medium, large
	ExplanationDepth string `json:"explanation_depth" yaml:"explanation_depth"` // brief, detailed, deep-dive
	LearningStyle    string `json:"learning_style" yaml:"learning_style"`       // examples, theory-first, trial-error
	Pace             string `json:"pace" yaml:"pace"`                           // slow, normal, fast
}

// DefaultPreferences returns the preferences a learner starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		TaskSize:         "medium",
		ExplanationDepth: "detailed",
		LearningStyle:    "examples",
		Pace:             "normal",
	}
}

// LearnerProfile is the durable identity and progress pointer of one learner.
type LearnerProfile struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Goals          []string    `json:"goals"`
	SkillLevel     string      `json:"skill_level"`
	Preferences    Preferences `json:"preferences"`
	CurrentProject string      `json:"current_project"`
	CurrentTask    string      `json:"current_task"`
	CurrentTaskID  string      `json:"current_task_id"`
	// CurrentTaskAssignedAt is when the current task was handed out; zero when unknown.
	CurrentTaskAssignedAt time.Time `json:"current_task_assigned_at"`
	// CurrentTaskExpected is the Challenger's estimate for the current task.
	CurrentTaskExpected time.Duration `json:"current_task_expected,omitempty"`
	ProjectsCompleted   []string      `json:"projects_completed"`
	CreatedAt           time.Time     `json:"created_at"`
}

// Outcome is the pass/fail result of one reviewed task.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomePartial Outcome = "partial"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomePass || o == OutcomeFail || o == OutcomePartial
}

// Score maps an outcome onto [0,1] for averaging.
func (o Outcome) Score() float64 {
	switch o {
	case OutcomePass:
		return 1
	case OutcomePartial:
		return 0.5
	}
	return 0
}

// Verdict is the Reviewer agent's judgement of a submission.
type Verdict string

const (
	VerdictShipIt      Verdict = "ship_it"
	VerdictNeedsWork   Verdict = "needs_work"
	VerdictMajorIssues Verdict = "major_issues"
)

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	return v == VerdictShipIt || v == VerdictNeedsWork || v == VerdictMajorIssues
}

// Outcome maps a verdict to the outcome recorded in the task log.
func (v Verdict) Outcome() Outcome {
	switch v {
	case VerdictShipIt:
		return OutcomePass
	case VerdictNeedsWork:
		return OutcomePartial
	}
	return OutcomeFail
}

// ReviewVerdict is the structured result of one Reviewer invocation.
type ReviewVerdict struct {
	Verdict   Verdict  `json:"verdict"`
	Feedback  string   `json:"feedback"`
	IssueTags []string `json:"issue_tags"`
	StartHere string   `json:"start_here,omitempty"`
	MustFix   []string `json:"must_fix,omitempty"`
	ShouldFix []string `json:"should_fix,omitempty"`
}

// TaskEvent records one reviewed submission. Events are immutable once written.
type TaskEvent struct {
	ID            string        `json:"id"`
	TaskID        string        `json:"task_id"`
	Task          string        `json:"task,omitempty"`
	ProjectID     string        `json:"project_id"`
	Timestamp     time.Time     `json:"timestamp"`
	Outcome       Outcome       `json:"outcome"`
	TimeSpent     time.Duration `json:"time_spent"`
	ExpectedTime  time.Duration `json:"expected_time,omitempty"`
	IssueTags     []string      `json:"issue_tags"`
	Verdict       Verdict       `json:"verdict"`
	VerdictDetail string        `json:"verdict_detail"`
}

// Timed reports whether the event carries a measured time on task.
func (e TaskEvent) Timed() bool { return e.TimeSpent > 0 }

// Valid reports whether the event is well-formed enough to aggregate.
func (e TaskEvent) Valid() bool {
	return e.TaskID != "" && !e.Timestamp.IsZero() && e.Outcome.Valid() && e.TimeSpent >= 0
}

// NormalizeTags sorts and de-duplicates tags, dropping blanks.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Trend is the direction of recent performance.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendFlat      Trend = "flat"
	TrendDegrading Trend = "degrading"
)

// FrustrationLevel buckets the continuous frustration score.
type FrustrationLevel string

const (
	FrustrationNone FrustrationLevel = "none"
	FrustrationMild FrustrationLevel = "mild"
	FrustrationHigh FrustrationLevel = "high"
)

// PerformanceSnapshot is derived from the task log; it is never the source of truth.
type PerformanceSnapshot struct {
	Events           int      `json:"events"`
	PassRate         float64  `json:"pass_rate"`
	StreakOutcome    Outcome  `json:"streak_outcome,omitempty"`
	StreakLength     int      `json:"streak_length"`
	ConsecutiveFails int      `json:"consecutive_fails"`
	RecurringIssues  []string `json:"recurring_issues"`
	TopIssues        []string `json:"top_issues"`
	AvgTimeRatio     float64  `json:"avg_time_ratio"`
	// TimedEvents counts the events AvgTimeRatio was computed from.
	TimedEvents      int              `json:"timed_events"`
	Trend            Trend            `json:"trend"`
	Frustration      float64          `json:"frustration"`
	FrustrationLevel FrustrationLevel `json:"frustration_level"`

	// Cycle is the learner's review clock when the snapshot was taken.
	Cycle int `json:"cycle"`
	// ReportedIssues carries the tags of a learner-reported issue into coach evaluation.
	ReportedIssues []string `json:"reported_issues,omitempty"`
}

// Neutral reports whether the snapshot carries no signal at all.
func (s PerformanceSnapshot) Neutral() bool {
	return s.Events == 0 && len(s.ReportedIssues) == 0
}

// Reported reports whether the learner explicitly reported tag.
func (s PerformanceSnapshot) Reported(tag string) bool {
	return slices.Contains(s.ReportedIssues, tag)
}

// ExpiryPolicy bounds a directive's active lifetime in review cycles.
type ExpiryPolicy struct {
	Cycles int `json:"cycles"`
}

// Provenance records why a directive exists. An approval step can gate on it later.
type Provenance struct {
	Trigger  string            `json:"trigger"` // cadence, issue
	IssueID  string            `json:"issue_id,omitempty"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

// Directive is a time-bounded behavioral instruction for one primary agent.
type Directive struct {
	ID              string       `json:"id"`
	Coach           AgentRole    `json:"coach"`
	TargetAgent     AgentRole    `json:"target_agent"`
	Axis            Axis         `json:"axis"`
	Setting         string       `json:"setting"`
	Text            string       `json:"text"`
	Rationale       string       `json:"rationale"`
	CreatedAt       time.Time    `json:"created_at"`
	CreatedCycle    int          `json:"created_cycle"`
	ReinforcedCycle int          `json:"reinforced_cycle"`
	Expiry          ExpiryPolicy `json:"expiry"`
	Provenance      Provenance   `json:"provenance"`
}

// DirectiveKey identifies the (agent, axis) slot a directive occupies.
type DirectiveKey struct {
	Agent AgentRole
	Axis  Axis
}

// Key returns the slot this directive occupies.
func (d Directive) Key() DirectiveKey {
	return DirectiveKey{Agent: d.TargetAgent, Axis: d.Axis}
}

// Expired reports whether the directive went unreinforced for its full lifetime.
func (d Directive) Expired(cycle int) bool {
	if d.Expiry.Cycles <= 0 {
		return false
	}
	return cycle-d.ReinforcedCycle >= d.Expiry.Cycles
}

// NewerThan orders directives for last-writer-wins.
func (d Directive) NewerThan(o Directive) bool {
	if !d.CreatedAt.Equal(o.CreatedAt) {
		return d.CreatedAt.After(o.CreatedAt)
	}
	return d.ID > o.ID
}

// RetireReason says why a directive left the active set.
type RetireReason string

const (
	RetireSuperseded RetireReason = "superseded"
	RetireExpired    RetireReason = "expired"
)

// RetiredDirective is kept for audit after a directive leaves the active set.
type RetiredDirective struct {
	Directive Directive    `json:"directive"`
	Reason    RetireReason `json:"reason"`
	RetiredAt int          `json:"retired_at_cycle"`
}

// LearnerIssue is a problem the learner reported explicitly.
type LearnerIssue struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Tag        string      `json:"tag,omitempty"`
	Coaches    []AgentRole `json:"coaches"`
	ReportedAt time.Time   `json:"reported_at"`
}

// RecordVersion is the schema version written by this build.
const RecordVersion = 1

// LearnerRecord is the single persisted record per learner.
type LearnerRecord struct {
	Version              int                `json:"version"`
	Profile              LearnerProfile     `json:"profile"`
	Events               []TaskEvent        `json:"events"`
	Active               []Directive        `json:"active_directives"`
	Retired              []RetiredDirective `json:"retired_directives"`
	Issues               []LearnerIssue     `json:"issues"`
	ReviewsSinceCoaching int                `json:"reviews_since_coaching"`
	ReviewClock          int                `json:"review_clock"`
	CoachingRuns         int                `json:"coaching_runs"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// NewRecord creates an empty record for a freshly onboarded learner.
func NewRecord(profile LearnerProfile) *LearnerRecord {
	return &LearnerRecord{
		Version: RecordVersion,
		Profile: profile,
		Events:  []TaskEvent{},
		Active:  []Directive{},
		Retired: []RetiredDirective{},
		Issues:  []LearnerIssue{},
	}
}

// ProjectEvents returns the events recorded against one project, in log order.
func (r *LearnerRecord) ProjectEvents(projectID string) []TaskEvent {
	var out []TaskEvent
	for _, e := range r.Events {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out
}

// ActiveFor returns the active directives targeting one agent.
func (r *LearnerRecord) ActiveFor(role AgentRole) []Directive {
	var out []Directive
	for _, d := range r.Active {
		if d.TargetAgent == role {
			out = append(out, d)
		}
	}
	return out
}

// IssuedBy returns the active directives emitted by one coach.
func (r *LearnerRecord) IssuedBy(coach AgentRole) []Directive {
	var out []Directive
	for _, d := range r.Active {
		if d.Coach == coach {
			out = append(out, d)
		}
	}
	return out
}
