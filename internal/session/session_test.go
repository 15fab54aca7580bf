package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbenjam1n/tutorloop/internal/agent"
	"github.com/sbenjam1n/tutorloop/internal/coach"
	"github.com/sbenjam1n/tutorloop/internal/directive"
	"github.com/sbenjam1n/tutorloop/internal/gate"
	"github.com/sbenjam1n/tutorloop/internal/queue"
	"github.com/sbenjam1n/tutorloop/internal/store"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

const (
	taskReply      = `{"task":"Build read_config that reports a missing file","acceptance_criteria":["missing file exits 1"],"estimated_minutes":30}`
	needsWorkReply = `{"verdict":"needs_work","feedback":"read_config crashes on a missing file","issue_tags":["missing-error-handling"]}`
	shipItReply    = `{"verdict":"ship_it","feedback":"works and handles errors","issue_tags":[]}`
	lessonReply    = `{"topic":"errors","concept":"Raise a custom exception.","steps":[{"action":"define ConfigError","verify":"import it"}]}`
	decisionReply  = `{"decision":"stay","rationale":"one task left","next_action":"finish the CLI"}`
)

// fakeLLM answers by role, recognized from the system instructions, and keeps
// every system text it was given.
type fakeLLM struct {
	mu      sync.Mutex
	replies map[tutor.AgentRole]string
	errs    map[tutor.AgentRole]error
	systems map[tutor.AgentRole][]string
	hook    func(tutor.AgentRole)
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		replies: map[tutor.AgentRole]string{
			tutor.RoleChallenger: taskReply,
			tutor.RoleReviewer:   needsWorkReply,
			tutor.RoleTeacher:    lessonReply,
			tutor.RoleCurriculum: decisionReply,
		},
		errs:    make(map[tutor.AgentRole]error),
		systems: make(map[tutor.AgentRole][]string),
	}
}

func (f *fakeLLM) Generate(ctx context.Context, system, prompt string) (string, error) {
	role := roleOf(system)
	f.mu.Lock()
	f.systems[role] = append(f.systems[role], system)
	reply, err, hook := f.replies[role], f.errs[role], f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(role)
	}
	return reply, err
}

func (f *fakeLLM) set(role tutor.AgentRole, reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[role] = reply
}

func (f *fakeLLM) lastSystem(role tutor.AgentRole) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.systems[role]
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

func roleOf(system string) tutor.AgentRole {
	for _, r := range agent.Roles() {
		if strings.HasPrefix(system, r.Instructions) {
			return r.ID
		}
	}
	return ""
}

type fakePublisher struct {
	mu         sync.Mutex
	events     []queue.EventMessage
	directives []queue.DirectiveMessage
	err        error
}

func (p *fakePublisher) PushEvent(ctx context.Context, msg queue.EventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return "1-0", p.err
}

func (p *fakePublisher) PushDirectives(ctx context.Context, msg queue.DirectiveMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.directives = append(p.directives, msg)
	return "1-0", p.err
}

type fixture struct {
	s     *Session
	store *store.Memory
	llm   *fakeLLM
	pub   *fakePublisher
	exit  int
	root  string
	// clock advances a minute on every read.
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("def read_config(path):\n    return open(path).read()\n"), 0644))

	f := &fixture{store: store.NewMemory(), llm: newFakeLLM(), pub: &fakePublisher{}, root: root}
	f.clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, err := New(Options{
		Store:     f.store,
		Generator: f.llm,
		Runner: gate.RunnerFunc(func(ctx context.Context, command, cwd string) (gate.Result, error) {
			return gate.Result{Command: command, ExitCode: f.exit}, nil
		}),
		Publisher:   f.pub,
		ProjectRoot: root,
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Minute)
			return f.clock
		},
	})
	require.NoError(t, err)
	f.s = s
	return f
}

func (f *fixture) onboard(t *testing.T) {
	t.Helper()
	_, err := f.s.Onboard(context.Background(), Enrollment{ID: "ada", Name: "Ada", Goals: []string{"ship LLM tools"}})
	require.NoError(t, err)
}

func (f *fixture) load(t *testing.T) *tutor.LearnerRecord {
	t.Helper()
	rec, err := f.store.Load(context.Background(), "ada")
	require.NoError(t, err)
	return rec
}

func TestOnboard(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)

	rec := f.load(t)
	assert.Equal(t, "01_cli_file_processor", rec.Profile.CurrentProject)
	assert.Equal(t, tutor.DefaultPreferences(), rec.Profile.Preferences)
	assert.Empty(t, rec.Events)

	_, err := f.s.Onboard(context.Background(), Enrollment{ID: "ada"})
	assert.ErrorIs(t, err, tutor.ErrLearnerExists)

	_, err = f.s.Onboard(context.Background(), Enrollment{ID: "  "})
	assert.Error(t, err)
}

func TestNextTaskSetsCurrentTask(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)

	task, err := f.s.NextTask(context.Background(), "ada")
	require.NoError(t, err)
	assert.NotEmpty(t, task.TaskID)

	rec := f.load(t)
	assert.Equal(t, task.Task, rec.Profile.CurrentTask)
	assert.Equal(t, task.TaskID, rec.Profile.CurrentTaskID)
	assert.Contains(t, f.llm.lastSystem(tutor.RoleChallenger), "LEARNER: Ada")
}

func TestReviewRequiresTask(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	_, err := f.s.SubmitForReview(context.Background(), "ada", Submission{Code: "x = 1"})
	assert.ErrorIs(t, err, ErrNoTask)
}

func TestReviewReadsWorkspace(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	_, err := f.s.NextTask(context.Background(), "ada")
	require.NoError(t, err)

	res, err := f.s.SubmitForReview(context.Background(), "ada", Submission{})
	require.NoError(t, err)
	assert.Equal(t, tutor.OutcomePartial, res.Event.Outcome)
	assert.Equal(t, []string{"missing-error-handling"}, res.Event.IssueTags)
	assert.Nil(t, res.Coaching)
}

func TestRecurringIssueReachesTeacher(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()
	_, err := f.s.NextTask(ctx, "ada")
	require.NoError(t, err)

	var last *ReviewResult
	for i := 0; i < 3; i++ {
		last, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "def read_config(path): return open(path).read()"})
		require.NoError(t, err)
	}
	require.NotNil(t, last.Coaching)
	assert.Equal(t, coach.TriggerCadence, last.Coaching.Trigger)

	rec := f.load(t)
	assert.Empty(t, directive.Conflicts(rec.Active))

	var deeper *tutor.Directive
	for i, d := range rec.Active {
		if d.TargetAgent == tutor.RoleTeacher && d.Axis == tutor.AxisExplanationDepth {
			deeper = &rec.Active[i]
		}
	}
	require.NotNil(t, deeper)
	assert.Equal(t, "deeper", deeper.Setting)
	assert.Equal(t, 3, deeper.CreatedCycle)

	_, err = f.s.Lesson(ctx, "ada", "")
	require.NoError(t, err)
	system := f.llm.lastSystem(tutor.RoleTeacher)
	assert.Contains(t, system, "## Coaching directives")
	assert.Contains(t, system, "Go deeper on missing-error-handling")
	assert.NotContains(t, system, "[task_difficulty:")
}

func TestCadenceFiresOncePerInterval(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()
	_, err := f.s.NextTask(ctx, "ada")
	require.NoError(t, err)

	var fired []int
	for i := 1; i <= 7; i++ {
		res, err := f.s.SubmitForReview(ctx, "ada", Submission{Code: "pass"})
		require.NoError(t, err)
		if res.Coaching != nil {
			fired = append(fired, i)
		}
		if i == 4 {
			// An issue runs its own cycle and leaves the review counter alone.
			_, err := f.s.ReportIssue(ctx, "ada", "too hard", coach.TagTooHard)
			require.NoError(t, err)
			assert.Equal(t, 1, f.load(t).ReviewsSinceCoaching)
		}
	}
	assert.Equal(t, []int{3, 6}, fired)

	rec := f.load(t)
	assert.Equal(t, 3, rec.CoachingRuns)
	assert.Equal(t, 1, rec.ReviewsSinceCoaching)
	assert.Equal(t, 7, rec.ReviewClock)
	assert.Len(t, rec.Events, 7)

	assert.Len(t, f.pub.events, 7)
	require.Len(t, f.pub.directives, 3)
	assert.Equal(t, []int{3, 4, 6}, []int{f.pub.directives[0].Cycle, f.pub.directives[1].Cycle, f.pub.directives[2].Cycle})
	assert.Equal(t, coach.TriggerIssue, f.pub.directives[1].Trigger)
	assert.Equal(t, len(f.pub.directives[0].Added), f.pub.directives[0].Active)
}

func TestShipItClearsTask(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()
	_, err := f.s.NextTask(ctx, "ada")
	require.NoError(t, err)
	f.llm.set(tutor.RoleReviewer, shipItReply)

	res, err := f.s.SubmitForReview(ctx, "ada", Submission{Code: "ok"})
	require.NoError(t, err)
	assert.Equal(t, tutor.OutcomePass, res.Event.Outcome)

	rec := f.load(t)
	assert.Empty(t, rec.Profile.CurrentTask)
	assert.Equal(t, []string{"Build read_config that reports a missing file"}, completedTasks(rec, "01_cli_file_processor"))
}

func TestReviewMeasuresTimeOnTask(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()
	_, err := f.s.NextTask(ctx, "ada")
	require.NoError(t, err)

	rec := f.load(t)
	assigned := rec.Profile.CurrentTaskAssignedAt
	require.False(t, assigned.IsZero())
	assert.Equal(t, 30*time.Minute, rec.Profile.CurrentTaskExpected)

	// The interactive menu sends only a description.
	f.clock = f.clock.Add(20 * time.Minute)
	res, err := f.s.SubmitForReview(ctx, "ada", Submission{Description: "handles the missing file now"})
	require.NoError(t, err)
	assert.Greater(t, res.Event.TimeSpent, 20*time.Minute)
	assert.Less(t, res.Event.TimeSpent, 30*time.Minute)
	assert.Equal(t, 30*time.Minute, res.Event.ExpectedTime)

	f.llm.set(tutor.RoleReviewer, shipItReply)
	res, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "ok", TimeSpent: 45 * time.Minute, Expected: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, res.Event.TimeSpent)
	assert.Equal(t, time.Hour, res.Event.ExpectedTime)

	rec = f.load(t)
	assert.True(t, rec.Profile.CurrentTaskAssignedAt.IsZero())
	assert.Zero(t, rec.Profile.CurrentTaskExpected)
}

func TestPaceNeedsMeasuredTime(t *testing.T) {
	ctx := context.Background()
	shipThree := func(t *testing.T, f *fixture, forget bool) *tutor.LearnerRecord {
		f.onboard(t)
		f.llm.set(tutor.RoleReviewer, shipItReply)
		for i := 0; i < 3; i++ {
			_, err := f.s.NextTask(ctx, "ada")
			require.NoError(t, err)
			if forget {
				_, err = f.store.Update(ctx, "ada", func(r *tutor.LearnerRecord) error {
					r.Profile.CurrentTaskAssignedAt = time.Time{}
					r.Profile.CurrentTaskExpected = 0
					return nil
				})
				require.NoError(t, err)
			}
			f.clock = f.clock.Add(10 * time.Minute)
			_, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "ok"})
			require.NoError(t, err)
		}
		rec := f.load(t)
		require.Equal(t, 1, rec.CoachingRuns)
		return rec
	}

	t.Run("untimed", func(t *testing.T) {
		rec := shipThree(t, newFixture(t), true)
		for _, e := range rec.Events {
			assert.Zero(t, e.TimeSpent)
		}
		for _, d := range rec.Active {
			assert.NotEqual(t, tutor.AxisPacing, d.Axis)
			assert.NotEqual(t, tutor.AxisTaskDifficulty, d.Axis)
		}
	})

	t.Run("timed", func(t *testing.T) {
		rec := shipThree(t, newFixture(t), false)
		got := make(map[tutor.Axis]string)
		for _, d := range rec.Active {
			got[d.Axis] = d.Setting
		}
		assert.Equal(t, "faster", got[tutor.AxisPacing])
		assert.Equal(t, "increase", got[tutor.AxisTaskDifficulty])
	})
}

func TestTooHardReachesOnlyChallenger(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()

	res, err := f.s.ReportIssue(ctx, "ada", "these tasks are way too hard for me", "")
	require.NoError(t, err)
	assert.Equal(t, coach.TagTooHard, res.Issue.Tag)
	assert.Equal(t, []tutor.AgentRole{tutor.RoleChallenger}, res.Issue.Coaches)
	require.NotNil(t, res.Coaching)
	require.Len(t, res.Coaching.Added, 1)

	rec := f.load(t)
	require.Len(t, rec.Active, 1)
	d := rec.Active[0]
	assert.Equal(t, tutor.RoleChallenger, d.TargetAgent)
	assert.Equal(t, tutor.AxisTaskDifficulty, d.Axis)
	assert.Equal(t, "decrease", d.Setting)
	assert.Equal(t, coach.TriggerIssue, d.Provenance.Trigger)
	assert.Equal(t, res.Issue.ID, d.Provenance.IssueID)
	assert.Equal(t, 0, rec.ReviewsSinceCoaching)
	require.Len(t, rec.Issues, 1)

	_, err = f.s.NextTask(ctx, "ada")
	require.NoError(t, err)
	assert.Contains(t, f.llm.lastSystem(tutor.RoleChallenger), "Assign a smaller, more focused task")

	_, err = f.s.Lesson(ctx, "ada", "pathlib")
	require.NoError(t, err)
	assert.NotContains(t, f.llm.lastSystem(tutor.RoleTeacher), "## Coaching directives")
}

func TestInstructionsShowLiveDirectives(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()

	_, err := f.s.ReportIssue(ctx, "ada", "too hard", coach.TagTooHard)
	require.NoError(t, err)

	text, err := f.s.Instructions(ctx, "ada", tutor.RoleChallenger)
	require.NoError(t, err)
	assert.Contains(t, text, "[task_difficulty: decrease]")

	text, err = f.s.Instructions(ctx, "ada", tutor.RoleTeacher)
	require.NoError(t, err)
	assert.NotContains(t, text, "## Coaching directives")

	_, err = f.s.Instructions(ctx, "ada", tutor.AgentRole("council"))
	assert.Error(t, err)
	assert.Empty(t, f.llm.systems)
}

func TestReportIssueRequiresText(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	_, err := f.s.ReportIssue(context.Background(), "ada", "   ", "")
	assert.Error(t, err)
}

func TestGenerationFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()
	_, err := f.s.NextTask(ctx, "ada")
	require.NoError(t, err)
	before := f.load(t)

	f.llm.set(tutor.RoleReviewer, `{"verdict":"lgtm"}`)
	_, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "x"})
	require.Error(t, err)
	assert.True(t, tutor.IsRetryable(err))

	f.llm.mu.Lock()
	f.llm.errs[tutor.RoleReviewer] = errors.New("connection refused")
	f.llm.mu.Unlock()
	_, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "x"})
	require.Error(t, err)

	after := f.load(t)
	assert.Empty(t, after.Events)
	assert.Equal(t, before.ReviewClock, after.ReviewClock)
	assert.Equal(t, before.Profile, after.Profile)
	assert.Empty(t, f.pub.events)
}

func TestCancelledReviewLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	_, err := f.s.NextTask(context.Background(), "ada")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := f.s.SubmitForReview(context.Background(), "ada", Submission{Code: "x"})
		require.NoError(t, err)
	}
	before := f.load(t)

	// The third review would trigger coaching; cancel while the Reviewer runs.
	ctx, cancel := context.WithCancel(context.Background())
	f.llm.hook = func(role tutor.AgentRole) {
		if role == tutor.RoleReviewer {
			cancel()
		}
	}
	_, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "x"})
	assert.ErrorIs(t, err, context.Canceled)

	after := f.load(t)
	assert.Len(t, after.Events, len(before.Events))
	assert.Equal(t, before.ReviewsSinceCoaching, after.ReviewsSinceCoaching)
	assert.Empty(t, after.Active)
	assert.Zero(t, after.CoachingRuns)
}

func TestCompleteProjectGate(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()

	c, err := f.s.CompleteProject(ctx, "ada")
	require.NoError(t, err)
	assert.False(t, c.Gate.Open)
	assert.Contains(t, c.Gate.Reasons, "no reviewed submissions for this project yet")

	_, err = f.s.NextTask(ctx, "ada")
	require.NoError(t, err)
	f.llm.set(tutor.RoleReviewer, shipItReply)
	_, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "ok"})
	require.NoError(t, err)

	f.exit = 1
	c, err = f.s.CompleteProject(ctx, "ada")
	require.NoError(t, err)
	assert.False(t, c.Gate.Open)
	assert.Equal(t, "01_cli_file_processor", f.load(t).Profile.CurrentProject)

	f.exit = 0
	c, err = f.s.CompleteProject(ctx, "ada")
	require.NoError(t, err)
	require.True(t, c.Gate.Open, c.Gate.Reasons)
	require.NotNil(t, c.Next)

	rec := f.load(t)
	assert.Equal(t, c.Next.ID, rec.Profile.CurrentProject)
	assert.Equal(t, []string{"01_cli_file_processor"}, rec.Profile.ProjectsCompleted)
	assert.Empty(t, rec.Profile.CurrentTask)
}

func TestReadOnlyCommands(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()
	before := f.load(t)

	decision, err := f.s.CurriculumCheck(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, agent.DecisionStay, decision.Decision)

	f.llm.set(tutor.RoleTeacher, "Line 2 never closes the file.")
	answer, err := f.s.Chat(ctx, "ada", "why does it leak?")
	require.NoError(t, err)
	assert.Equal(t, "Line 2 never closes the file.", answer)

	checks, err := f.s.RunChecks(ctx, "ada")
	require.NoError(t, err)
	assert.Len(t, checks, 2)

	assert.Equal(t, before.ReviewClock, f.load(t).ReviewClock)
	assert.Equal(t, before.Profile, f.load(t).Profile)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()
	_, err := f.s.NextTask(ctx, "ada")
	require.NoError(t, err)
	_, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "x"})
	require.NoError(t, err)

	st, err := f.s.Status(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Position)
	assert.Equal(t, 1, st.Snapshot.Events)
	assert.Equal(t, 2, st.NextCoaching)
	assert.False(t, st.ReviewGate.Open)

	_, err = f.s.Status(ctx, "nobody")
	assert.ErrorIs(t, err, tutor.ErrLearnerNotFound)
}

func TestCorruptRecordStopsSession(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	f.store.Corrupt("ada", []byte(`{"version":1}`))

	_, err := f.s.NextTask(context.Background(), "ada")
	var corrupt *tutor.StateCorruptionError
	assert.ErrorAs(t, err, &corrupt)
}

func TestGardenRetiresExpired(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()

	stale := tutor.Directive{
		ID: "stale", Coach: tutor.RoleTeacher, TargetAgent: tutor.RoleTeacher,
		Axis: tutor.AxisExplanationDepth, Setting: "brief", Text: "Keep it short.",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Expiry: tutor.ExpiryPolicy{Cycles: 2},
	}
	_, err := f.store.Update(ctx, "ada", func(r *tutor.LearnerRecord) error {
		r.Active = []tutor.Directive{stale}
		r.ReviewClock = 5
		r.Issues = append(r.Issues, tutor.LearnerIssue{ID: "i1", Text: "something odd", ReportedAt: time.Now()})
		return nil
	})
	require.NoError(t, err)

	findings, err := f.s.Garden(ctx, true)
	require.NoError(t, err)
	categories := map[string]bool{}
	for _, fd := range findings {
		categories[fd.Category] = true
	}
	assert.True(t, categories["expired_directive"])
	assert.True(t, categories["unanswered_issue"])
	assert.Len(t, f.load(t).Active, 1)

	_, err = f.s.Garden(ctx, false)
	require.NoError(t, err)
	rec := f.load(t)
	assert.Empty(t, rec.Active)
	require.Len(t, rec.Retired, 1)
	assert.Equal(t, tutor.RetireExpired, rec.Retired[0].Reason)
}

func TestGardenKeepsRetiredBounded(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()

	old := tutor.Directive{
		Coach: tutor.RoleReviewer, TargetAgent: tutor.RoleReviewer,
		Axis: tutor.AxisStrictness, Setting: "stricter", Text: "Hold a higher bar.",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	stale := old
	stale.ID = "stale"
	stale.Expiry = tutor.ExpiryPolicy{Cycles: 2}
	_, err := f.store.Update(ctx, "ada", func(r *tutor.LearnerRecord) error {
		for i := 0; i < maxRetired; i++ {
			d := old
			d.ID = fmt.Sprintf("old-%d", i)
			r.Retired = append(r.Retired, tutor.RetiredDirective{Directive: d, Reason: tutor.RetireSuperseded})
		}
		r.Active = []tutor.Directive{stale}
		r.ReviewClock = 5
		return nil
	})
	require.NoError(t, err)

	_, err = f.s.Garden(ctx, false)
	require.NoError(t, err)
	rec := f.load(t)
	require.Len(t, rec.Retired, maxRetired)
	assert.Equal(t, "old-1", rec.Retired[0].Directive.ID)
	assert.Equal(t, "stale", rec.Retired[maxRetired-1].Directive.ID)
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate("naïve café résumé", 4)
	assert.Equal(t, "naïv...", got)
	assert.True(t, utf8.ValidString(got))
}

func TestExportProgress(t *testing.T) {
	f := newFixture(t)
	f.onboard(t)
	ctx := context.Background()
	_, err := f.s.NextTask(ctx, "ada")
	require.NoError(t, err)
	_, err = f.s.SubmitForReview(ctx, "ada", Submission{Code: "x"})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), ".tutor")
	path, err := f.s.ExportProgress(ctx, "ada", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	report := string(data)
	assert.True(t, strings.HasPrefix(report, "# Ada\n"))
	assert.Contains(t, report, "- [>] 1. CLI File Processor")
	assert.Contains(t, report, "| needs_work | missing-error-handling |")
	assert.Contains(t, report, "_No active directives._")
}
